package filereader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spf13/afero"

	"github.com/SteelMorgan/log-forwarder/internal/domain"
)

var errDisk = errors.New("input/output error")

// recordingAdapter keeps a copy of every batch it receives
type recordingAdapter struct {
	batches [][]domain.Event
	err     error
}

func (a *recordingAdapter) SendEvents(ctx context.Context, events []domain.Event) error {
	batch := make([]domain.Event, len(events))
	copy(batch, events)
	a.batches = append(a.batches, batch)
	return a.err
}

func (a *recordingAdapter) Close() error {
	return nil
}

func (a *recordingAdapter) lines(batch int) []string {
	var out []string
	for _, e := range a.batches[batch] {
		out = append(out, e.Line)
	}
	return out
}

// openMem writes content to path on fs and returns a read handle
func openMem(t *testing.T, fs afero.Fs, path, content string) afero.File {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// appendMem appends content to an existing file on fs
func appendMem(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open %s for append: %v", path, err)
	}
	defer f.Close()
	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatalf("failed to append to %s: %v", path, err)
	}
}

// flakyFile serves data and fails in place of io.EOF once it is exhausted.
// With failFirst set, the very first Read fails instead.
type flakyFile struct {
	*bytes.Reader
	failFirst bool
	reads     int
}

func newFlakyFile(data string) *flakyFile {
	return &flakyFile{Reader: bytes.NewReader([]byte(data))}
}

func (f *flakyFile) Read(p []byte) (int, error) {
	f.reads++
	if f.failFirst && f.reads == 1 {
		return 0, errDisk
	}
	n, err := f.Reader.Read(p)
	if errors.Is(err, io.EOF) && !f.failFirst {
		return n, errDisk
	}
	return n, err
}

func (f *flakyFile) Stat() (os.FileInfo, error) {
	return nil, errDisk
}
