package writer

import (
	"github.com/SteelMorgan/log-forwarder/internal/domain"
	"github.com/SteelMorgan/log-forwarder/internal/retry"
)

func noRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 1
	return cfg
}

func sampleEvents() []domain.Event {
	return []domain.Event{
		{File: "/var/log/app.log", Offset: 4, Line: "foo", Host: "web-1", Fields: map[string]string{"type": "app"}},
		{File: "/var/log/app.log", Offset: 9, Line: "bar", Host: "web-1", Fields: map[string]string{"type": "app"}},
	}
}
