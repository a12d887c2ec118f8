package writer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/SteelMorgan/log-forwarder/internal/domain"
)

// calculateEventHash identifies a line independently of the batch it was shipped in.
// Host, file and end offset are enough: a re-delivered line has the same three.
func calculateEventHash(event domain.Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|", event.Host)
	fmt.Fprintf(h, "%s|", event.File)
	fmt.Fprintf(h, "%d", event.Offset)
	return hex.EncodeToString(h.Sum(nil))
}
