package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]KV{
		"memory": NewMemory(),
		"sqlite": NewSQLite(db),
	}
}

func TestKVBasics(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
			if err := kv.Set(ctx, "a", "1"); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := kv.Set(ctx, "a", "2"); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}
			got, err := kv.Get(ctx, "a")
			if err != nil || got != "2" {
				t.Errorf("Expected 2, got %q (%v)", got, err)
			}
			if err := kv.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := kv.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestKVSetManyAndTakeMany(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := kv.Set(ctx, "stale", "x"); err != nil {
				t.Fatal(err)
			}
			err := kv.SetMany(ctx, map[string]string{"a": "1", "b": "2"}, []string{"stale"})
			if err != nil {
				t.Fatalf("SetMany failed: %v", err)
			}

			got, err := kv.TakeMany(ctx, []string{"a", "b", "stale", "c"})
			if err != nil {
				t.Fatalf("TakeMany failed: %v", err)
			}
			if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
				t.Errorf("Unexpected take result: %v", got)
			}

			again, err := kv.TakeMany(ctx, []string{"a", "b"})
			if err != nil {
				t.Fatalf("second TakeMany failed: %v", err)
			}
			if len(again) != 0 {
				t.Errorf("Expected nothing on second take, got %v", again)
			}
		})
	}
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "tryon.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := NewSQLite(db).Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	got, err := NewSQLite(db).Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Expected persisted value v, got %q (%v)", got, err)
	}
}
