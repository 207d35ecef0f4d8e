package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"thewire/internal/kvstore"
)

// ExploreRankedTTL is how long the ranking service's output stays fresh
// before the next periodic rebuild.
const ExploreRankedTTL = 15 * time.Minute

// rankedEntry is one row of the ranking service's explore cache.
type rankedEntry struct {
	PostID   int64 `json:"postId"`
	AuthorID int64 `json:"authorId"`
}

// StoreExploreRanked persists the ranking service's ordered output (C12) under
// explore:ranked with a 15-minute TTL. Not an actor operation: the ranking
// scheduler is the only writer, running on its own ticker, and readers only
// ever take a point-in-time snapshot.
func StoreExploreRanked(ctx context.Context, store kvstore.Store, postIDs, authorIDs []int64) error {
	if len(postIDs) != len(authorIDs) {
		return fmt.Errorf("store explore ranked: postIDs and authorIDs length mismatch")
	}
	entries := make([]rankedEntry, len(postIDs))
	for i := range postIDs {
		entries[i] = rankedEntry{PostID: postIDs[i], AuthorID: authorIDs[i]}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal explore ranked: %w", err)
	}
	if err := store.Set(ctx, exploreRankedKey(), string(raw)); err != nil {
		return fmt.Errorf("store explore ranked: %w", err)
	}
	return store.Expire(ctx, exploreRankedKey(), ExploreRankedTTL)
}

// ExploreCandidate is one entry in the ranking service's cached output.
type ExploreCandidate struct {
	PostID   int64
	AuthorID int64
}

// LoadExploreRanked reads the ranking service's cached output. A cache miss
// (expired or never built) returns an empty slice, not an error — callers
// degrade gracefully to a followed-only timeline.
func LoadExploreRanked(ctx context.Context, store kvstore.Store) ([]ExploreCandidate, error) {
	raw, err := store.Get(ctx, exploreRankedKey())
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load explore ranked: %w", err)
	}
	var entries []rankedEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal explore ranked: %w", err)
	}
	out := make([]ExploreCandidate, len(entries))
	for i, e := range entries {
		out[i] = ExploreCandidate{PostID: e.PostID, AuthorID: e.AuthorID}
	}
	return out, nil
}
