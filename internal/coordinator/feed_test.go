package coordinator

import (
	"context"
	"testing"
	"time"

	"thewire/internal/kvstore"
	"thewire/internal/model"
)

func newTestFeedCoord() *FeedCoord {
	return NewFeedCoord(kvstore.NewMemoryStore(), 0)
}

func TestAddEntryDedupesByPostID(t *testing.T) {
	c := newTestFeedCoord()
	ctx := context.Background()
	now := time.Now()

	entry := model.FeedEntry{PostID: 1, AuthorID: 9, Timestamp: now, Source: model.SourceFollow}
	if err := c.AddEntry(ctx, 42, entry); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := c.AddEntry(ctx, 42, entry); err != nil {
		t.Fatalf("AddEntry (dup): %v", err)
	}

	page, err := c.Feed(ctx, 42, 10, Cursor{}, nil)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (deduped)", len(page.Entries))
	}
}

func TestFeedOrderingDescending(t *testing.T) {
	c := newTestFeedCoord()
	ctx := context.Background()
	base := time.Now()

	for i := int64(1); i <= 5; i++ {
		entry := model.FeedEntry{
			PostID:    i,
			AuthorID:  1,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Source:    model.SourceFollow,
		}
		if err := c.AddEntry(ctx, 1, entry); err != nil {
			t.Fatalf("AddEntry: %v", err)
		}
	}

	page, err := c.Feed(ctx, 1, 10, Cursor{}, nil)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(page.Entries) != 5 {
		t.Fatalf("len(entries) = %d, want 5", len(page.Entries))
	}
	for i := 0; i < len(page.Entries)-1; i++ {
		if !page.Entries[i].Timestamp.After(page.Entries[i+1].Timestamp) {
			t.Fatalf("entries not descending: %v then %v", page.Entries[i].Timestamp, page.Entries[i+1].Timestamp)
		}
	}
}

func TestFeedFiltersBlockedAuthors(t *testing.T) {
	c := newTestFeedCoord()
	ctx := context.Background()
	now := time.Now()

	c.AddEntry(ctx, 1, model.FeedEntry{PostID: 1, AuthorID: 2, Timestamp: now, Source: model.SourceFollow})
	c.AddEntry(ctx, 1, model.FeedEntry{PostID: 2, AuthorID: 3, Timestamp: now.Add(time.Second), Source: model.SourceFollow})

	page, err := c.Feed(ctx, 1, 10, Cursor{}, map[int64]bool{2: true})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	for _, e := range page.Entries {
		if e.AuthorID == 2 {
			t.Fatal("blocked author's post should have been filtered")
		}
	}
	if len(page.Entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(page.Entries))
	}
}

func TestCursorPaginationNoDuplicates(t *testing.T) {
	c := newTestFeedCoord()
	ctx := context.Background()
	base := time.Now()

	for i := int64(1); i <= 10; i++ {
		c.AddEntry(ctx, 1, model.FeedEntry{
			PostID:    i,
			AuthorID:  1,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Source:    model.SourceOwn,
		})
	}

	seen := make(map[int64]bool)
	var cursor Cursor
	for {
		page, err := c.Feed(ctx, 1, 3, cursor, nil)
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		for _, e := range page.Entries {
			if seen[e.PostID] {
				t.Fatalf("duplicate post %d across pages", e.PostID)
			}
			seen[e.PostID] = true
		}
		if !page.HasMore {
			break
		}
		cursor, err = DecodeCursor(page.Cursor)
		if err != nil {
			t.Fatalf("DecodeCursor: %v", err)
		}
	}
	if len(seen) != 10 {
		t.Fatalf("saw %d unique posts across pages, want 10", len(seen))
	}
}
