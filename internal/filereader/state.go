package filereader

import (
	"io"
	"os"
)

// Handle is an open log file. afero.File and *os.File both satisfy it.
type Handle interface {
	io.Reader
	io.Seeker
	Stat() (os.FileInfo, error)
}

// FileState tracks one log file between cycles
type FileState struct {
	Path   string            // Canonical path, reported in every event
	File   Handle            // Open handle, owned by the state while a cycle runs
	Offset int64             // Last committed position, always on a line boundary or EOF
	Fields map[string]string // Static fields attached to every event of this file
}

// NewFileState creates a state for an already opened file
func NewFileState(path string, file Handle, offset int64, fields map[string]string) *FileState {
	return &FileState{
		Path:   path,
		File:   file,
		Offset: offset,
		Fields: fields,
	}
}

// Size returns the current length of the underlying file
func (s *FileState) Size() (int64, error) {
	info, err := s.File.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
