package memory

import (
	"testing"
)

func TestInMemoryStore_SubstringSearch(t *testing.T) {
	store := NewInMemoryStore()
	store.Store("s1", "The user prefers dark mode", nil)
	store.Store("s1", "Shipping address is in Berlin", nil)
	store.Store("s1", "Dark chocolate is a favorite", nil)

	results, err := store.Search("s1", "dark", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(results))
	}
	// insertion order preserved
	if results[0].Content != "The user prefers dark mode" {
		t.Errorf("unexpected first hit: %q", results[0].Content)
	}
	for _, r := range results {
		if r.Score != 1.0 {
			t.Errorf("expected constant score 1.0, got %v", r.Score)
		}
		if r.ID == "" {
			t.Error("expected generated memory id")
		}
	}
}

func TestInMemoryStore_SearchLimit(t *testing.T) {
	store := NewInMemoryStore()
	for i := 0; i < 5; i++ {
		store.Store("s1", "repeated note", nil)
	}

	results, _ := store.Search("s1", "note", 2)
	if len(results) != 2 {
		t.Errorf("limit not applied, got %d results", len(results))
	}
}

func TestInMemoryStore_EmptyQueryReturnsAll(t *testing.T) {
	store := NewInMemoryStore()
	store.Store("s1", "first", nil)
	store.Store("s1", "second", nil)

	results, _ := store.Search("s1", "", 0)
	if len(results) != 2 {
		t.Errorf("empty query should match everything, got %d", len(results))
	}
}

func TestInMemoryStore_SessionsIsolated(t *testing.T) {
	store := NewInMemoryStore()
	store.Store("s1", "belongs to s1", nil)

	results, _ := store.Search("s2", "belongs", 0)
	if len(results) != 0 {
		t.Errorf("memory leaked across sessions: %v", results)
	}
}

func TestInMemoryStore_MetadataCopied(t *testing.T) {
	store := NewInMemoryStore()
	md := map[string]any{"source": "chat"}
	store.Store("s1", "note", md)
	md["source"] = "mutated"

	results, _ := store.Search("s1", "note", 0)
	if len(results) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results))
	}
	if results[0].Metadata["source"] != "chat" {
		t.Error("store shares caller's metadata map")
	}
}
