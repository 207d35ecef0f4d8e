package search

import (
	"context"
	"testing"
	"time"

	"thewire/internal/kvstore"
)

func TestIndexAndRemovePostLeavesNoKeys(t *testing.T) {
	store := kvstore.NewMemoryStore()
	idx := NewIndex(store)
	ctx := context.Background()

	if err := idx.IndexPost(ctx, 1, "hello world programming", time.Now()); err != nil {
		t.Fatalf("IndexPost: %v", err)
	}
	if err := idx.RemovePost(ctx, 1); err != nil {
		t.Fatalf("RemovePost: %v", err)
	}

	keys, err := store.ScanPrefix(ctx, "word:", 0)
	if err != nil {
		t.Fatalf("ScanPrefix word: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no word:* keys, found %v", keys)
	}
	if _, err := store.Get(ctx, "idx:1"); err != kvstore.ErrNotFound {
		t.Fatalf("expected idx:1 removed, err=%v", err)
	}
}

func TestSearchPostsTermAND(t *testing.T) {
	store := kvstore.NewMemoryStore()
	idx := NewIndex(store)
	ctx := context.Background()

	now := time.Now()
	idx.IndexPost(ctx, 1, "hello world programming", now)
	idx.IndexPost(ctx, 2, "hello typescript", now)
	idx.IndexPost(ctx, 3, "rust world", now)

	ids, err := idx.SearchPosts(ctx, "hello world")
	if err != nil {
		t.Fatalf("SearchPosts: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("ids = %v, want [1]", ids)
	}
}

func TestSearchUsersPrefixUnion(t *testing.T) {
	store := kvstore.NewMemoryStore()
	idx := NewIndex(store)
	ctx := context.Background()

	idx.IndexUser(ctx, 1, "alice123", "Alice Wonderland")
	idx.IndexUser(ctx, 2, "alicetech", "Bob Builder")

	ids, err := idx.SearchUsers(ctx, "ali")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	found := map[int64]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found[1] || !found[2] {
		t.Fatalf("ids = %v, want both 1 and 2", ids)
	}
}

func TestTokenizeDedupesAndFiltersStopwords(t *testing.T) {
	tokens := Tokenize("The Quick quick fox, and #fox @alice!")
	seen := map[string]int{}
	for _, tok := range tokens {
		seen[tok]++
	}
	if seen["quick"] != 1 {
		t.Fatalf("expected quick once, got %d", seen["quick"])
	}
	if seen["the"] != 0 || seen["and"] != 0 {
		t.Fatal("stopwords should be filtered")
	}
	if seen["#fox"] == 0 || seen["@alice"] == 0 {
		t.Fatal("hashtag/mention tokens should survive stopword filtering")
	}
}
