package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FORWARDER_HOSTNAME", "web-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "web-1" {
		t.Errorf("Hostname = %q", cfg.Hostname)
	}
	if cfg.SpoolSize != 1024 {
		t.Errorf("SpoolSize = %d", cfg.SpoolSize)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.Output != OutputStdout {
		t.Errorf("Output = %q", cfg.Output)
	}
	if cfg.CloudWatchLogStream != "web-1" {
		t.Errorf("CloudWatchLogStream should default to the host name, got %q", cfg.CloudWatchLogStream)
	}
	if got := cfg.ClickHouseQualifiedTable(); got != "logs.forwarder_events" {
		t.Errorf("ClickHouseQualifiedTable() = %q", got)
	}

	retryCfg := cfg.RetryConfig()
	if retryCfg.MaxAttempts != 3 || retryCfg.InitialDelay != 100*time.Millisecond || retryCfg.MaxDelay != 5*time.Second {
		t.Errorf("unexpected retry config: %+v", retryCfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FORWARDER_HOSTNAME", "web-2")
	t.Setenv("SPOOL_SIZE", "50")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("OUTPUT", "ClickHouse")
	t.Setenv("CLICKHOUSE_TABLE", "other.events")
	t.Setenv("RETRY_MAX_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SpoolSize != 50 || cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("unexpected engine settings: %d %v", cfg.SpoolSize, cfg.PollInterval)
	}
	if cfg.Output != OutputClickHouse {
		t.Errorf("Output = %q", cfg.Output)
	}
	if got := cfg.ClickHouseQualifiedTable(); got != "other.events" {
		t.Errorf("ClickHouseQualifiedTable() = %q", got)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("invalid integer must fall back to default, got %d", cfg.RetryMaxAttempts)
	}
}

func validConfig() *Config {
	return &Config{
		FilesConfigPath:     "configs/forwarder.yaml",
		Hostname:            "web-1",
		SpoolSize:           10,
		PollInterval:        time.Second,
		OffsetDBPath:        "forwarder.db",
		Output:              OutputStdout,
		ClickHouseHost:      "localhost",
		ClickHousePort:      9000,
		ClickHouseDB:        "logs",
		ClickHouseTable:     "forwarder_events",
		CloudWatchLogStream: "web-1",
		RetryMaxAttempts:    3,
		RetryInitialDelay:   100 * time.Millisecond,
		RetryMaxDelay:       5 * time.Second,
		MetricsPort:         9102,
		OTLPProtocol:        "grpc",
		TraceSampleRatio:    1,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero spool", mutate: func(c *Config) { c.SpoolSize = 0 }, wantErr: "SPOOL_SIZE"},
		{name: "zero poll interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: "POLL_INTERVAL_MS"},
		{name: "unknown output", mutate: func(c *Config) { c.Output = "kafka" }, wantErr: "OUTPUT"},
		{name: "clickhouse bad port", mutate: func(c *Config) {
			c.Output = OutputClickHouse
			c.ClickHousePort = 70000
		}, wantErr: "CLICKHOUSE_PORT"},
		{name: "cloudwatch without group", mutate: func(c *Config) { c.Output = OutputCloudWatch }, wantErr: "CLOUDWATCH_LOG_GROUP"},
		{name: "cloudwatch with group", mutate: func(c *Config) {
			c.Output = OutputCloudWatch
			c.CloudWatchLogGroup = "/forwarder"
		}},
		{name: "retry delays", mutate: func(c *Config) { c.RetryMaxDelay = time.Millisecond }, wantErr: "RETRY_MAX_DELAY_MS"},
		{name: "metrics disabled", mutate: func(c *Config) { c.MetricsPort = 0 }},
		{name: "bad otlp protocol", mutate: func(c *Config) {
			c.TracingEnabled = true
			c.OTLPProtocol = "udp"
		}, wantErr: "OTLP_PROTOCOL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestParseFileGroups(t *testing.T) {
	doc := `
files:
  - paths: ["/var/log/messages", " /var/log/*.log ", ""]
    fields: {type: syslog}
  - paths: ["/srv/app.log"]
`
	groups, err := ParseFileGroups([]byte(doc))
	if err != nil {
		t.Fatalf("ParseFileGroups() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if got := groups[0].Paths; len(got) != 2 || got[1] != "/var/log/*.log" {
		t.Errorf("unexpected paths: %q", got)
	}
	if groups[0].Fields["type"] != "syslog" {
		t.Errorf("unexpected fields: %v", groups[0].Fields)
	}
	if groups[1].Fields != nil {
		t.Errorf("expected no fields for second group, got %v", groups[1].Fields)
	}
}

func TestParseFileGroupsJSON(t *testing.T) {
	groups, err := ParseFileGroups([]byte(`{"files": [{"paths": ["/a.log"], "fields": {"env": "dev"}}]}`))
	if err != nil {
		t.Fatalf("ParseFileGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0].Fields["env"] != "dev" {
		t.Errorf("unexpected groups: %+v", groups)
	}
}

func TestParseFileGroupsErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "invalid yaml", doc: "files: [::"},
		{name: "no groups", doc: "files: []"},
		{name: "group without paths", doc: "files:\n  - fields: {type: x}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFileGroups([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFileGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forwarder.yaml")
	if err := os.WriteFile(path, []byte("files:\n  - paths: [/var/log/syslog]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	groups, err := LoadFileGroups(path)
	if err != nil {
		t.Fatalf("LoadFileGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0].Paths[0] != "/var/log/syslog" {
		t.Errorf("unexpected groups: %+v", groups)
	}

	if _, err := LoadFileGroups(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
