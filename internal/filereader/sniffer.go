package filereader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Signature identifies an archive format by its leading bytes
type Signature struct {
	Name  string
	Magic []byte
}

// DefaultSignatures lists the compressed formats that are never parsed as lines
var DefaultSignatures = []Signature{
	{Name: "zip", Magic: []byte{0x50, 0x4b, 0x03, 0x04}},
	{Name: "lzw", Magic: []byte{0x1f, 0x9d}},
	{Name: "lzh", Magic: []byte{0x1f, 0xa0}},
	{Name: "gzip", Magic: []byte{0x1f, 0x8b, 0x08}},
}

// Sniffer detects archived files by comparing their first bytes with known signatures
type Sniffer struct {
	signatures []Signature
	probeLen   int
}

// NewSniffer creates a sniffer for the given signatures.
// With no signatures it uses DefaultSignatures.
func NewSniffer(signatures ...Signature) *Sniffer {
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}
	probeLen := 0
	for _, sig := range signatures {
		if len(sig.Magic) > probeLen {
			probeLen = len(sig.Magic)
		}
	}
	return &Sniffer{
		signatures: signatures,
		probeLen:   probeLen,
	}
}

// Sniff reads the start of the file and returns the name of the matching signature.
// A signature only matches when the file holds at least as many bytes as its magic.
// Leaves the file position undefined; callers seek before reading again.
func (s *Sniffer) Sniff(h Handle) (string, bool, error) {
	if s.probeLen == 0 {
		return "", false, nil
	}
	if _, err := h.Seek(0, io.SeekStart); err != nil {
		return "", false, fmt.Errorf("failed to seek to file start: %w", err)
	}

	probe := make([]byte, s.probeLen)
	n, err := io.ReadFull(h, probe)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, fmt.Errorf("failed to read file header: %w", err)
	}
	probe = probe[:n]

	for _, sig := range s.signatures {
		if len(sig.Magic) == 0 || len(probe) < len(sig.Magic) {
			continue
		}
		if bytes.Equal(probe[:len(sig.Magic)], sig.Magic) {
			return sig.Name, true, nil
		}
	}
	return "", false, nil
}
