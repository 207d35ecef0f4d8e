// Package queue is the durable queue contract (C4): at-least-once message
// delivery with retry/backoff, backed by Postgres. The teacher's sqlx/lib/pq
// dependency is reassigned here from "authoritative row store" to durable
// message queue storage, since the KV tier (internal/kvstore) is the
// authoritative store for every coordinator.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
)

// Event types carried on the feed stream.
const (
	EventNewPost       = "new_post"
	EventDeletePost    = "delete_post"
	EventPostLiked     = "post_liked"
	EventPostCommented = "post_commented"
	EventUserFollowed  = "user_followed"
)

// StreamFeed is the only stream the fan-out worker (C10) consumes.
const StreamFeed = "stream:feed"

const (
	backoffBase    = 30 * time.Second
	backoffCeiling = 3600 * time.Second
)

// FeedEvent is the JSON payload carried by every message on StreamFeed.
type FeedEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	PostID   int64 `json:"postId,omitempty"`
	AuthorID int64 `json:"authorId,omitempty"`

	ActorID int64  `json:"actorId,omitempty"`
	Content string `json:"content,omitempty"`
}

// NewPostCreatedEvent builds the message the fan-out worker reads to
// propagate a new post to followers' feeds and connections.
func NewPostCreatedEvent(postID, authorID int64) FeedEvent {
	return FeedEvent{Type: EventNewPost, Timestamp: time.Now().Unix(), PostID: postID, AuthorID: authorID}
}

// NewPostDeletedEvent builds the message the fan-out worker reads to remove
// a post from followers' feeds.
func NewPostDeletedEvent(postID, authorID int64) FeedEvent {
	return FeedEvent{Type: EventDeletePost, Timestamp: time.Now().Unix(), PostID: postID, AuthorID: authorID}
}

// NewPostLikedEvent builds a best-effort notification-trigger message.
func NewPostLikedEvent(postID, actorID, authorID int64) FeedEvent {
	return FeedEvent{Type: EventPostLiked, Timestamp: time.Now().Unix(), PostID: postID, ActorID: actorID, AuthorID: authorID}
}

// Message is a dequeued row: its Ack/Nack callbacks are bound to its id.
type Message struct {
	ID       int64
	Stream   string
	Event    FeedEvent
	Attempts int
}

// Queue is the durable queue API: producers Enqueue, consumers Dequeue a
// batch, then Ack success or Nack failure (which reschedules with backoff).
type Queue struct {
	db *sqlx.DB
}

// New wraps an existing *sqlx.DB connection and ensures the queue table exists.
func New(db *sqlx.DB) (*Queue, error) {
	q := &Queue{db: db}
	if err := q.ensureSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS queue_messages (
	id BIGSERIAL PRIMARY KEY,
	stream TEXT NOT NULL,
	payload JSONB NOT NULL,
	attempts INT NOT NULL DEFAULT 0,
	available_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	acked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_queue_messages_ready
	ON queue_messages (stream, available_at)
	WHERE acked_at IS NULL;
`
	if _, err := q.db.Exec(ddl); err != nil {
		return fmt.Errorf("ensure queue schema: %w", err)
	}
	return nil
}

// Enqueue writes event onto stream, available immediately.
func (q *Queue) Enqueue(ctx context.Context, stream string, event FeedEvent) (int64, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	var id int64
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO queue_messages (stream, payload) VALUES ($1, $2) RETURNING id`,
		stream, payload)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

// Dequeue claims up to batchSize ready messages from stream using
// SELECT ... FOR UPDATE SKIP LOCKED, so concurrent consumers never claim the
// same row.
func (q *Queue) Dequeue(ctx context.Context, stream string, batchSize int) ([]Message, error) {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, payload, attempts
		FROM queue_messages
		WHERE stream = $1 AND acked_at IS NULL AND available_at <= now()
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		stream, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query ready messages: %w", err)
	}

	var (
		messages []Message
		claimed  []int64
	)
	for rows.Next() {
		var (
			id       int64
			payload  []byte
			attempts int
		)
		if err := rows.Scan(&id, &payload, &attempts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var event FeedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("[Queue] dropping unparseable message id=%d: %v", id, err)
			continue
		}
		messages = append(messages, Message{ID: id, Stream: stream, Event: event, Attempts: attempts})
		claimed = append(claimed, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	rows.Close()

	for _, id := range claimed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_messages SET attempts = attempts + 1 WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("bump attempts for %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dequeue: %w", err)
	}
	for i := range messages {
		messages[i].Attempts++
	}
	return messages, nil
}

// Ack marks a message permanently delivered.
func (q *Queue) Ack(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE queue_messages SET acked_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ack %d: %w", id, err)
	}
	return nil
}

// Nack reschedules a message for retry with exponential backoff:
// min(ceilingSeconds, base·2^attempts). This is the corrected replacement for
// the source's broken base^attempts backoff.
func (q *Queue) Nack(ctx context.Context, id int64, attempts int) error {
	delay := Backoff(attempts)
	if _, err := q.db.ExecContext(ctx,
		`UPDATE queue_messages SET available_at = now() + make_interval(secs => $2) WHERE id = $1`,
		id, delay.Seconds()); err != nil {
		return fmt.Errorf("nack %d: %w", id, err)
	}
	return nil
}

// Backoff computes min(ceiling, base·2^attempts).
func Backoff(attempts int) time.Duration {
	d := backoffBase
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= backoffCeiling {
			return backoffCeiling
		}
	}
	if d > backoffCeiling {
		return backoffCeiling
	}
	return d
}

// ReadPending claims messages stuck in-flight past staleAfter — e.g. a
// consumer that crashed after Dequeue but before Ack/Nack — for crash
// recovery sweeps. It simply resets their available_at to now so the next
// Dequeue can reclaim them.
func (q *Queue) ReadPending(ctx context.Context, stream string, staleAfter time.Duration) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE queue_messages
		SET available_at = now()
		WHERE stream = $1 AND acked_at IS NULL AND available_at < now() - make_interval(secs => $2)`,
		stream, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("read pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
