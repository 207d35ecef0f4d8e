// Package ranking implements the explore/friend-of-friend ranking service
// (C12): a periodic scan of recent posts, engagement-scored and
// author-diversity filtered, cached for the timeline service to read.
package ranking

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"thewire/internal/coordinator"
	"thewire/internal/kvstore"
)

const (
	scanWindow       = 7 * 24 * time.Hour
	scanLimit        = 5000
	outputCap        = 500
	diversityWindow  = 4
	diversityMaxRepeat = 2
)

// Weights are the fixed engagement-score coefficients from spec §4.9.
type Weights struct {
	Like   float64
	Reply  float64
	Repost float64
}

// DefaultWeights returns the spec's reference weights (Wl=1, Wr=2, Wrp=1.5).
func DefaultWeights() Weights {
	return Weights{Like: 1, Reply: 2, Repost: 1.5}
}

// Service rebuilds the explore cache on a fixed interval.
type Service struct {
	store   kvstore.Store
	posts   *coordinator.PostCoord
	weights Weights
	stop    chan struct{}
}

// NewService builds a ranking Service.
func NewService(store kvstore.Store, posts *coordinator.PostCoord, weights Weights) *Service {
	return &Service{store: store, posts: posts, weights: weights, stop: make(chan struct{})}
}

// Start launches the periodic rebuild ticker (~every 15 minutes per spec).
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		if err := s.Rebuild(ctx); err != nil {
			log.Printf("[Ranking] initial rebuild failed: %v", err)
		}
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Rebuild(ctx); err != nil {
					log.Printf("[Ranking] rebuild failed: %v", err)
				}
			}
		}
	}()
}

// Stop halts the periodic rebuild.
func (s *Service) Stop() { close(s.stop) }

type candidate struct {
	postID   int64
	authorID int64
	score    float64
}

// Rebuild runs one full ranking pass: scan, score, sort, apply author
// diversity, and store the top outputCap candidates.
func (s *Service) Rebuild(ctx context.Context) error {
	since := time.Now().Add(-scanWindow)
	recent, err := s.posts.RecentPosts(ctx, since, scanLimit)
	if err != nil {
		return err
	}

	candidates := make([]candidate, 0, len(recent))
	for _, rp := range recent {
		p, err := s.posts.ToPost(ctx, rp.PostID)
		if err != nil {
			continue
		}
		if p.IsDeleted || p.IsTakenDown {
			continue
		}
		candidates = append(candidates, candidate{
			postID:   p.ID,
			authorID: p.AuthorID,
			score:    Score(s.weights, p.Counters.LikeCount, p.Counters.ReplyCount, p.Counters.RepostCount, p.CreatedAt),
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	ranked := applyAuthorDiversity(candidates, outputCap)

	postIDs := make([]int64, len(ranked))
	authorIDs := make([]int64, len(ranked))
	for i, c := range ranked {
		postIDs[i] = c.postID
		authorIDs[i] = c.authorID
	}

	if err := coordinator.StoreExploreRanked(ctx, s.store, postIDs, authorIDs); err != nil {
		return err
	}
	log.Printf("[Ranking] rebuilt explore cache: scanned=%d kept=%d", len(recent), len(ranked))
	return nil
}

// Score computes engagement / (ageHours+2)^1.8, the HN-style time-decayed
// engagement score shared by the ranking rebuild and the search handler's
// relevance-boosted sort.
func Score(w Weights, likes, replies, reposts int, createdAt time.Time) float64 {
	engagement := float64(likes)*w.Like + float64(replies)*w.Reply + float64(reposts)*w.Repost
	ageHours := time.Since(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return engagement / math.Pow(ageHours+2, 1.8)
}

// applyAuthorDiversity walks candidates in score order, rejecting any whose
// author already appears ≥diversityMaxRepeat times in the last
// diversityWindow entries of the output. If rejection ever empties the
// remaining candidate pool before cap is reached, it falls back to
// appending the best remaining candidates regardless of diversity.
func applyAuthorDiversity(candidates []candidate, cap int) []candidate {
	out := make([]candidate, 0, cap)
	rejected := make([]candidate, 0)
	for _, c := range candidates {
		if len(out) >= cap {
			break
		}
		if authorCountInTail(out, c.authorID, diversityWindow) >= diversityMaxRepeat {
			rejected = append(rejected, c)
			continue
		}
		out = append(out, c)
	}
	for _, c := range rejected {
		if len(out) >= cap {
			break
		}
		out = append(out, c)
	}
	return out
}

func authorCountInTail(out []candidate, authorID int64, window int) int {
	start := len(out) - window
	if start < 0 {
		start = 0
	}
	count := 0
	for _, c := range out[start:] {
		if c.authorID == authorID {
			count++
		}
	}
	return count
}
