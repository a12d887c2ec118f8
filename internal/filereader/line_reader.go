package filereader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

// LineReader reads complete lines from a file starting at a committed offset.
//
// Lines end on LF or CRLF. A CR that is not followed by LF is kept as content.
// A trailing fragment with no terminator is never returned: after reading, the
// file is positioned right after the last returned line, so the fragment is
// scanned again from its start on the next call.
type LineReader struct {
	file     Handle
	start    int64
	maxLines int
	offset   int64
	read     int
	err      error
}

// NewLineReader creates a reader returning at most maxLines lines from offset
func NewLineReader(file Handle, offset int64, maxLines int) *LineReader {
	return &LineReader{
		file:     file,
		start:    offset,
		maxLines: maxLines,
		offset:   offset,
	}
}

// Lines yields each complete line with the offset right after its terminator.
// The sequence is single use.
func (r *LineReader) Lines() iter.Seq2[string, int64] {
	return func(yield func(string, int64) bool) {
		if _, err := r.file.Seek(r.start, io.SeekStart); err != nil {
			r.err = fmt.Errorf("failed to seek to offset %d: %w", r.start, err)
			return
		}
		defer r.rewind()

		br := bufio.NewReader(r.file)
		for r.read < r.maxLines {
			line, n, err := readLine(br)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					r.err = err
				}
				return
			}
			r.offset += n
			r.read++
			if !yield(line, r.offset) {
				return
			}
		}
	}
}

// Offset returns the position right after the last returned line
func (r *LineReader) Offset() int64 {
	return r.offset
}

// Count returns the number of lines returned so far
func (r *LineReader) Count() int {
	return r.read
}

// Err returns the first I/O error hit while reading, if any
func (r *LineReader) Err() error {
	return r.err
}

// rewind moves the file back to the end of the last complete line,
// undoing whatever the buffered reader fetched ahead
func (r *LineReader) rewind() {
	if _, err := r.file.Seek(r.offset, io.SeekStart); err != nil && r.err == nil {
		r.err = fmt.Errorf("failed to seek back to offset %d: %w", r.offset, err)
	}
}

// readLine returns the next LF-terminated line without its terminator and the
// number of bytes consumed. io.EOF means no complete line is available.
func readLine(br *bufio.Reader) (string, int64, error) {
	raw, err := br.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", 0, io.EOF
		}
		return "", 0, fmt.Errorf("failed to read line: %w", err)
	}
	n := int64(len(raw))
	line := raw[:len(raw)-1]
	// CR directly before LF belongs to the terminator, any other CR is content
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return string(line), n, nil
}
