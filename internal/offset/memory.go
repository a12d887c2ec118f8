package offset

import (
	"context"
	"sync"
)

// MemoryStore keeps offsets in memory only. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	offsets map[string]int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{offsets: make(map[string]int64)}
}

func (s *MemoryStore) Get(ctx context.Context, filePath string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets[filePath], nil
}

func (s *MemoryStore) Set(ctx context.Context, filePath string, offset int64) error {
	return s.SetMany(ctx, map[string]int64{filePath: offset})
}

func (s *MemoryStore) SetMany(ctx context.Context, offsets map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range offsets {
		s.offsets[k] = v
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offsets, filePath)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.offsets))
	for k, v := range s.offsets {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
