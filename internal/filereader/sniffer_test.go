package filereader

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/spf13/afero"
)

func gzipped(t *testing.T, s string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.String()
}

func TestSnifferDefaultSignatures(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantFormat string
		wantMatch  bool
	}{
		{name: "plain text", content: "hello\nworld\n", wantMatch: false},
		{name: "empty file", content: "", wantMatch: false},
		{name: "zip", content: "PK\x03\x04rest-of-archive", wantFormat: "zip", wantMatch: true},
		{name: "lzw", content: "\x1f\x9dcompressed", wantFormat: "lzw", wantMatch: true},
		{name: "lzh", content: "\x1f\xa0compressed", wantFormat: "lzh", wantMatch: true},
		{name: "gzip magic only", content: "\x1f\x8b\x08", wantFormat: "gzip", wantMatch: true},
		{name: "gzip without deflate method", content: "\x1f\x8b\x00data", wantMatch: false},
		{name: "two byte lzw file", content: "\x1f\x9d", wantFormat: "lzw", wantMatch: true},
		{name: "truncated zip header", content: "PK\x03", wantMatch: false},
		{name: "zip magic later in file", content: "xxPK\x03\x04", wantMatch: false},
	}

	sniffer := NewSniffer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := openMem(t, afero.NewMemMapFs(), "/logs/file", tt.content)

			format, ok, err := sniffer.Sniff(f)
			if err != nil {
				t.Fatalf("Sniff() error = %v", err)
			}
			if ok != tt.wantMatch {
				t.Errorf("Sniff() match = %v, want %v", ok, tt.wantMatch)
			}
			if format != tt.wantFormat {
				t.Errorf("Sniff() format = %q, want %q", format, tt.wantFormat)
			}
		})
	}
}

func TestSnifferRealGzip(t *testing.T) {
	f := openMem(t, afero.NewMemMapFs(), "/logs/old.log.gz", gzipped(t, "line\n"))

	format, ok, err := NewSniffer().Sniff(f)
	if err != nil {
		t.Fatalf("Sniff() error = %v", err)
	}
	if !ok || format != "gzip" {
		t.Errorf("got (%q, %v), want (\"gzip\", true)", format, ok)
	}
}

func TestSnifferCustomSignatures(t *testing.T) {
	zstd := Signature{Name: "zstd", Magic: []byte{0x28, 0xb5, 0x2f, 0xfd}}
	sniffer := NewSniffer(zstd)

	f := openMem(t, afero.NewMemMapFs(), "/logs/a.zst", "\x28\xb5\x2f\xfdframe")
	if format, ok, _ := sniffer.Sniff(f); !ok || format != "zstd" {
		t.Errorf("got (%q, %v), want (\"zstd\", true)", format, ok)
	}

	g := openMem(t, afero.NewMemMapFs(), "/logs/a.gz", "\x1f\x8b\x08")
	if _, ok, _ := sniffer.Sniff(g); ok {
		t.Error("gzip must not match when only zstd is registered")
	}
}

func TestSnifferReadError(t *testing.T) {
	f := newFlakyFile("PK\x03\x04")
	f.failFirst = true

	_, ok, err := NewSniffer().Sniff(f)
	if err == nil {
		t.Fatal("expected an error")
	}
	if ok {
		t.Error("a failed probe must not classify the file as archived")
	}
}
