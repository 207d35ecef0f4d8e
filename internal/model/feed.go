package model

import "time"

// FeedSource tags why a feed entry exists.
type FeedSource string

const (
	SourceOwn    FeedSource = "own"
	SourceFollow FeedSource = "follow"
	SourceFoF    FeedSource = "fof"
)

// FeedEntry is one row in a FeedCoord's bounded, timestamp-ordered list.
type FeedEntry struct {
	PostID    int64      `json:"postId"`
	AuthorID  int64      `json:"authorId"`
	Timestamp time.Time  `json:"timestamp"`
	Source    FeedSource `json:"source"`
}

const (
	// FeedCapacity is the default maximum number of entries retained per
	// FeedCoord; oldest entries are evicted on overflow.
	FeedCapacity = 5000
)

// FeedPage is the response shape for a paginated feed read.
type FeedPage struct {
	Entries  []FeedEntry `json:"entries"`
	Cursor   string      `json:"nextCursor,omitempty"`
	HasMore  bool        `json:"hasMore"`
}

// TimelinePage is the richer response shape C11 returns: posts, not bare
// entries, plus pagination metadata.
type TimelinePage struct {
	Posts   []*Post `json:"posts"`
	Cursor  string  `json:"cursor,omitempty"`
	HasMore bool    `json:"hasMore"`
}
