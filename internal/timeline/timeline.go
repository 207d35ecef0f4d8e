// Package timeline implements the home-timeline read path (C11): a
// round-robin merge of a user's followed-author feed entries with
// friend-of-friend ranked candidates pulled from the explore cache.
package timeline

import (
	"context"
	"fmt"
	"strings"

	"thewire/internal/coordinator"
	"thewire/internal/kvstore"
	"thewire/internal/model"
)

// followExploreRatio implements the spec's strict F,F,X round-robin: two
// followed entries per one explore candidate.
const followExploreRatio = 2

// Service computes home timelines by merging FeedCoord entries with the
// ranking service's explore cache.
type Service struct {
	store kvstore.Store
	users *coordinator.UserCoord
	posts *coordinator.PostCoord
	feeds *coordinator.FeedCoord
}

// NewService builds a timeline Service.
func NewService(store kvstore.Store, users *coordinator.UserCoord, posts *coordinator.PostCoord, feeds *coordinator.FeedCoord) *Service {
	return &Service{store: store, users: users, posts: posts, feeds: feeds}
}

// Home computes user's home timeline page: followed-author entries
// interleaved with ranked friend-of-friend candidates, round-robin 2:1.
func (s *Service) Home(ctx context.Context, userID int64, limit int, cursor coordinator.Cursor) (model.TimelinePage, error) {
	blocked, err := s.users.BlockedIDs(ctx, userID)
	if err != nil {
		return model.TimelinePage{}, fmt.Errorf("load blocked set: %w", err)
	}
	following, err := s.users.FollowingIDs(ctx, userID)
	if err != nil {
		return model.TimelinePage{}, fmt.Errorf("load following set: %w", err)
	}
	settings, err := s.users.GetSettings(ctx, userID)
	if err != nil {
		return model.TimelinePage{}, fmt.Errorf("load settings: %w", err)
	}

	followedPage, err := s.feeds.Feed(ctx, userID, limit*2, cursor, blocked)
	if err != nil {
		return model.TimelinePage{}, fmt.Errorf("load followed feed: %w", err)
	}

	exploreCandidates, err := coordinator.LoadExploreRanked(ctx, s.store)
	if err != nil {
		return model.TimelinePage{}, fmt.Errorf("load explore cache: %w", err)
	}

	k := 5
	exploreWant := (limit+2)/3 + k
	explorePosts := s.resolveExploreCandidates(ctx, exploreCandidates, userID, following, blocked, settings.MutedWords, exploreWant)

	merged, followedHasMore, exploreHasMore := merge(followedPage.Entries, explorePosts, limit)

	posts := make([]*model.Post, 0, len(merged))
	for _, e := range merged {
		p, err := s.posts.ToPost(ctx, e.postID)
		if err != nil || p.IsDeleted || p.IsTakenDown {
			continue
		}
		s.enrichCheap(ctx, userID, p)
		posts = append(posts, p)
	}

	page := model.TimelinePage{
		Posts:   posts,
		HasMore: followedHasMore || exploreHasMore,
	}
	if followedPage.HasMore {
		page.Cursor = followedPage.Cursor
	}
	return page, nil
}

type mergeEntry struct {
	postID int64
	source model.FeedSource
}

// merge interleaves followed entries and explore posts in a strict F,F,X
// pattern, drawing from whichever side remains once the other is exhausted.
func merge(followed []model.FeedEntry, explore []int64, limit int) (out []mergeEntry, followedHasMore, exploreHasMore bool) {
	fi, ei := 0, 0
	for len(out) < limit {
		took := false
		for step := 0; step < followExploreRatio && len(out) < limit; step++ {
			if fi < len(followed) {
				out = append(out, mergeEntry{postID: followed[fi].PostID, source: followed[fi].Source})
				fi++
				took = true
			}
		}
		if len(out) < limit && ei < len(explore) {
			out = append(out, mergeEntry{postID: explore[ei], source: model.SourceFoF})
			ei++
			took = true
		}
		if !took {
			break
		}
	}
	return out, fi < len(followed), ei < len(explore)
}

func (s *Service) resolveExploreCandidates(ctx context.Context, candidates []coordinator.ExploreCandidate, userID int64, following, blocked map[int64]bool, mutedWords []string, want int) []int64 {
	out := make([]int64, 0, want)
	for _, c := range candidates {
		if len(out) >= want {
			break
		}
		if c.AuthorID == userID || following[c.AuthorID] || blocked[c.AuthorID] {
			continue
		}
		if len(mutedWords) > 0 {
			p, err := s.posts.ToPost(ctx, c.PostID)
			if err != nil || containsMutedWord(p.Content, mutedWords) {
				continue
			}
		}
		out = append(out, c.PostID)
	}
	return out
}

func containsMutedWord(content string, mutedWords []string) bool {
	lower := strings.ToLower(content)
	for _, w := range mutedWords {
		if w == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// enrichCheap fills hasLiked/hasReposted only when the underlying set lookup
// is already a single cheap KV read; callers that need stronger guarantees
// should fetch these lazily instead, per spec §4.8 step 6.
func (s *Service) enrichCheap(ctx context.Context, userID int64, p *model.Post) {
	liked, err := s.posts.HasLiked(ctx, p.ID, userID)
	if err == nil {
		p.IsLiked = liked
	}
	reposted, err := s.posts.HasReposted(ctx, p.ID, userID)
	if err == nil {
		p.IsReposted = reposted
	}
}
