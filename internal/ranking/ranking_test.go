package ranking

import (
	"context"
	"testing"
	"time"

	"thewire/internal/coordinator"
	"thewire/internal/kvstore"
	"thewire/internal/model"
)

func newTestService(t *testing.T) (*Service, *coordinator.PostCoord, kvstore.Store) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	posts := coordinator.NewPostCoord(store, 0)
	return NewService(store, posts, DefaultWeights()), posts, store
}

func TestRebuildExcludesOldAndTombstonedPosts(t *testing.T) {
	svc, posts, store := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	if err := posts.Initialize(ctx, 1, 10, model.CreatePostRequest{Content: "fresh"}, now.Add(-time.Hour)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := posts.Initialize(ctx, 2, 10, model.CreatePostRequest{Content: "ancient"}, now.Add(-10*24*time.Hour)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := posts.Initialize(ctx, 3, 10, model.CreatePostRequest{Content: "deleted"}, now.Add(-time.Hour)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := posts.Delete(ctx, 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	ranked, err := coordinator.LoadExploreRanked(ctx, store)
	if err != nil {
		t.Fatalf("LoadExploreRanked: %v", err)
	}
	if len(ranked) != 1 || ranked[0].PostID != 1 {
		t.Fatalf("ranked = %+v, want only post 1", ranked)
	}
}

func TestRebuildOrdersByEngagementScore(t *testing.T) {
	svc, posts, store := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	if err := posts.Initialize(ctx, 1, 1, model.CreatePostRequest{Content: "low"}, now.Add(-time.Hour)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := posts.Initialize(ctx, 2, 2, model.CreatePostRequest{Content: "high"}, now.Add(-time.Hour)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := posts.Like(ctx, 2, int64(100+i)); err != nil {
			t.Fatalf("Like: %v", err)
		}
	}

	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	ranked, err := coordinator.LoadExploreRanked(ctx, store)
	if err != nil {
		t.Fatalf("LoadExploreRanked: %v", err)
	}
	if len(ranked) != 2 || ranked[0].PostID != 2 {
		t.Fatalf("ranked = %+v, want post 2 (higher engagement) first", ranked)
	}
}

func TestAuthorDiversityRejectsOverrepeatedAuthor(t *testing.T) {
	candidates := []candidate{
		{postID: 1, authorID: 9, score: 10},
		{postID: 2, authorID: 9, score: 9},
		{postID: 3, authorID: 9, score: 8},
		{postID: 4, authorID: 1, score: 7},
		{postID: 5, authorID: 9, score: 6},
	}
	out := applyAuthorDiversity(candidates, 5)

	// Post 3 would be author 9's third entry in a 4-entry tail, so it is
	// deferred behind author 1's post; post 5 is rejected the same way, and
	// the fallback then appends the rejected posts in score order.
	want := []int64{1, 2, 4, 3, 5}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d (%+v)", len(out), len(want), out)
	}
	for i, id := range want {
		if out[i].postID != id {
			t.Fatalf("out[%d] = post %d, want post %d (%+v)", i, out[i].postID, id, out)
		}
	}
}

func TestAuthorDiversityFallsBackWhenPoolExhausted(t *testing.T) {
	candidates := []candidate{
		{postID: 1, authorID: 9, score: 10},
		{postID: 2, authorID: 9, score: 9},
		{postID: 3, authorID: 9, score: 8},
	}
	out := applyAuthorDiversity(candidates, 3)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3 (fallback appends the best remaining even if diversity can't hold)", len(out))
	}
}
