package framestore

import (
	"errors"
	"testing"
)

func TestMemStoreLifecycle(t *testing.T) {
	store := NewMemStore(10)

	if _, err := store.Latest(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame on empty store, got %v", err)
	}

	f1 := store.Put([]byte("one"))
	f2 := store.Put([]byte("two"))

	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.ID != f2.ID {
		t.Errorf("Expected latest %s, got %s", f2.ID, latest.ID)
	}
	if !latest.NewerThan(f1) {
		t.Errorf("Expected %s to be newer than %s", latest.ID, f1.ID)
	}

	data, err := store.Read(f1.ID)
	if err != nil {
		t.Fatalf("Failed to read older frame: %v", err)
	}
	if string(data) != "one" {
		t.Errorf("Expected payload %q, got %q", "one", data)
	}
}

func TestMemStorePrune(t *testing.T) {
	store := NewMemStore(10)
	f1 := store.Put([]byte("f1"))
	f2 := store.Put([]byte("f2"))
	f3 := store.Put([]byte("f3"))

	removed, err := store.Prune(2)
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removal, got %d", removed)
	}
	if _, err := store.Read(f1.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected %s pruned, got err=%v", f1.ID, err)
	}
	for _, f := range []Frame{f2, f3} {
		if _, err := store.Read(f.ID); err != nil {
			t.Errorf("Expected %s to survive prune, got %v", f.ID, err)
		}
	}
}

func TestMemStoreCapacityEviction(t *testing.T) {
	store := NewMemStore(2)
	f1 := store.Put([]byte("f1"))
	store.Put([]byte("f2"))
	f3 := store.Put([]byte("f3"))

	if store.Len() != 2 {
		t.Errorf("Expected ring size 2, got %d", store.Len())
	}
	if _, err := store.Read(f1.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected oldest frame evicted, got err=%v", err)
	}
	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.ID != f3.ID {
		t.Errorf("Expected latest %s, got %s", f3.ID, latest.ID)
	}
}
