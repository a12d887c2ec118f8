package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/SteelMorgan/log-forwarder/internal/config"
	"github.com/SteelMorgan/log-forwarder/internal/filereader"
	"github.com/SteelMorgan/log-forwarder/internal/metrics"
	"github.com/SteelMorgan/log-forwarder/internal/offset"
)

// trackedFile is an open file being forwarded
type trackedFile struct {
	handle afero.File
	state  *filereader.FileState
}

// ForwarderService discovers files, runs read cycles on every poll and
// persists offsets of the cycles that were delivered
type ForwarderService struct {
	fs       afero.Fs
	groups   []config.FileGroup
	reader   *filereader.FileReader
	store    offset.OffsetStore
	interval time.Duration

	files     map[string]*trackedFile
	order     []string
	persisted map[string]int64
}

// NewForwarderService creates a new forwarder service
func NewForwarderService(fs afero.Fs, groups []config.FileGroup, reader *filereader.FileReader, store offset.OffsetStore, interval time.Duration) (*ForwarderService, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("file reader is required")
	}
	if store == nil {
		return nil, fmt.Errorf("offset store is required")
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("at least one file group is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	return &ForwarderService{
		fs:        fs,
		groups:    groups,
		reader:    reader,
		store:     store,
		interval:  interval,
		files:     make(map[string]*trackedFile),
		persisted: make(map[string]int64),
	}, nil
}

// Start polls until ctx is cancelled. Poll failures are logged and retried on the next tick.
func (s *ForwarderService) Start(ctx context.Context) error {
	log.Info().
		Dur("interval", s.interval).
		Int("groups", len(s.groups)).
		Int("spool_size", s.reader.SpoolSize()).
		Msg("Forwarder service starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Forwarder service context cancelled")
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *ForwarderService) poll(ctx context.Context) {
	if err := s.Poll(ctx); err != nil && ctx.Err() == nil {
		log.Error().
			Err(err).
			Msg("Poll failed, retrying on next tick")
	}
}

// Poll refreshes the file set and runs read cycles until the files are drained
func (s *ForwarderService) Poll(ctx context.Context) error {
	s.refresh(ctx)

	states := s.states()
	if len(states) == 0 {
		return nil
	}

	for {
		shipped, err := s.reader.ReadFiles(ctx, states)
		if err != nil {
			return err
		}
		if err := s.persist(ctx); err != nil {
			return err
		}
		if shipped < s.reader.SpoolSize() || ctx.Err() != nil {
			return nil
		}
		log.Debug().
			Int("events", shipped).
			Msg("Spool was full, running another cycle")
	}
}

// Stop closes all open files. It must not be called while Start is running.
func (s *ForwarderService) Stop() error {
	log.Info().
		Int("files", len(s.files)).
		Msg("Forwarder service stopping")

	for _, path := range s.order {
		s.untrack(path)
	}
	s.order = nil
	metrics.FilesWatched.Set(0)
	return nil
}

// refresh opens newly matched files, reopens truncated ones and closes vanished ones
func (s *ForwarderService) refresh(ctx context.Context) {
	seen := make(map[string]bool, len(s.files))
	order := make([]string, 0, len(s.order))

	for _, group := range s.groups {
		for _, path := range s.match(group) {
			if seen[path] {
				continue
			}

			tracked, ok := s.files[path]
			if ok && s.truncated(tracked) {
				s.untrack(path)
				ok = false
			}
			if !ok {
				var err error
				tracked, err = s.track(ctx, path, group.Fields)
				if err != nil {
					log.Warn().
						Err(err).
						Str("file", path).
						Msg("Failed to open file, will retry")
					continue
				}
			}

			seen[path] = true
			order = append(order, path)
		}
	}

	for _, path := range s.order {
		if !seen[path] {
			log.Info().
				Str("file", path).
				Msg("File no longer matched, closing")
			s.untrack(path)
		}
	}

	s.order = order
	metrics.FilesWatched.Set(float64(len(s.order)))
}

// match expands the group's patterns into the canonical paths of regular files
func (s *ForwarderService) match(group config.FileGroup) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range group.Paths {
		matches, err := afero.Glob(s.fs, pattern)
		if err != nil {
			log.Warn().
				Err(err).
				Str("pattern", pattern).
				Msg("Invalid file pattern")
			continue
		}
		for _, m := range matches {
			info, err := s.fs.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			path, err := s.canonical(m)
			if err != nil {
				log.Warn().
					Err(err).
					Str("file", m).
					Msg("Failed to resolve file path")
				continue
			}
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}
	return paths
}

// canonical returns the absolute path of name with symlinks resolved on the OS filesystem
func (s *ForwarderService) canonical(name string) (string, error) {
	path, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	if _, ok := s.fs.(*afero.OsFs); ok {
		return filepath.EvalSymlinks(path)
	}
	return path, nil
}

// truncated reports whether the file at the tracked path is now shorter than its offset
func (s *ForwarderService) truncated(tracked *trackedFile) bool {
	info, err := s.fs.Stat(tracked.state.Path)
	if err != nil {
		return false
	}
	if info.Size() >= tracked.state.Offset {
		return false
	}
	log.Warn().
		Str("file", tracked.state.Path).
		Int64("offset", tracked.state.Offset).
		Int64("size", info.Size()).
		Msg("File truncated or replaced, reading from the start")
	return true
}

func (s *ForwarderService) track(ctx context.Context, path string, fields map[string]string) (*trackedFile, error) {
	stored, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load offset: %w", err)
	}

	handle, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}

	start := stored
	if info, err := handle.Stat(); err == nil && info.Size() < stored {
		log.Warn().
			Str("file", path).
			Int64("offset", stored).
			Int64("size", info.Size()).
			Msg("Stored offset is past the end of file, reading from the start")
		start = 0
	}

	tracked := &trackedFile{
		handle: handle,
		state:  filereader.NewFileState(path, handle, start, fields),
	}
	s.files[path] = tracked
	s.persisted[path] = stored

	log.Info().
		Str("file", path).
		Int64("offset", start).
		Msg("Tracking file")
	return tracked, nil
}

func (s *ForwarderService) untrack(path string) {
	tracked, ok := s.files[path]
	if !ok {
		return
	}
	if err := tracked.handle.Close(); err != nil {
		log.Warn().
			Err(err).
			Str("file", path).
			Msg("Failed to close file")
	}
	delete(s.files, path)
	delete(s.persisted, path)
}

func (s *ForwarderService) states() []*filereader.FileState {
	states := make([]*filereader.FileState, 0, len(s.order))
	for _, path := range s.order {
		states = append(states, s.files[path].state)
	}
	return states
}

// persist stores offsets that moved since they were last persisted
func (s *ForwarderService) persist(ctx context.Context) error {
	changed := make(map[string]int64)
	for _, path := range s.order {
		state := s.files[path].state
		if prev, ok := s.persisted[path]; ok && prev == state.Offset {
			continue
		}
		changed[path] = state.Offset
	}
	if len(changed) == 0 {
		return nil
	}

	if err := s.store.SetMany(ctx, changed); err != nil {
		metrics.OffsetPersistErrorsTotal.Inc()
		return fmt.Errorf("failed to persist %d offsets: %w", len(changed), err)
	}

	for path, off := range changed {
		s.persisted[path] = off
	}
	log.Debug().
		Int("files", len(changed)).
		Msg("Offsets persisted")
	return nil
}
