package offset

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*BoltDBStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "offsets.db")
	store, err := NewBoltDBStore(path)
	if err != nil {
		t.Fatalf("NewBoltDBStore() error = %v", err)
	}
	return store, path
}

func TestBoltDBStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()

	got, err := store.Get(context.Background(), "/var/log/none.log")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != 0 {
		t.Errorf("expected 0 for unknown file, got %d", got)
	}
}

func TestBoltDBStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, path := newTestStore(t)

	if err := store.SetMany(ctx, map[string]int64{
		"/var/log/a.log": 42,
		"/var/log/b.log": 1 << 40,
	}); err != nil {
		t.Fatalf("SetMany() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewBoltDBStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	all, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 || all["/var/log/a.log"] != 42 || all["/var/log/b.log"] != 1<<40 {
		t.Errorf("unexpected offsets after reopen: %v", all)
	}
}

func TestBoltDBStoreSetManyIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	defer store.Close()

	if err := store.Set(ctx, "/a.log", 10); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	err := store.SetMany(ctx, map[string]int64{"/a.log": 20, "/b.log": -1})
	if err == nil {
		t.Fatal("expected error for negative offset")
	}

	got, _ := store.Get(ctx, "/a.log")
	if got != 10 {
		t.Errorf("failed transaction must not change offsets, got %d", got)
	}
	if got, _ := store.Get(ctx, "/b.log"); got != 0 {
		t.Errorf("expected no offset for /b.log, got %d", got)
	}
}

func TestBoltDBStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	defer store.Close()

	_ = store.Set(ctx, "/a.log", 5)
	if err := store.Delete(ctx, "/a.log"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	all, _ := store.List(ctx)
	if len(all) != 0 {
		t.Errorf("expected empty store, got %v", all)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.SetMany(ctx, map[string]int64{"/a.log": 3, "/b.log": 4})
	_ = store.Delete(ctx, "/b.log")

	all, _ := store.List(ctx)
	all["/c.log"] = 9 // List returns a copy

	if got, _ := store.Get(ctx, "/a.log"); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got, _ := store.Get(ctx, "/c.log"); got != 0 {
		t.Errorf("List must return a copy, got offset %d for /c.log", got)
	}
}
