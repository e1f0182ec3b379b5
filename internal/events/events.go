// Package events publishes post lifecycle changes to downstream consumers.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type names a lifecycle transition.
type Type string

const (
	PostCreated    Type = "post.created"
	PostEdited     Type = "post.edited"
	PostDeleted    Type = "post.deleted"
	PostRestored   Type = "post.restored"
	PostArchived   Type = "post.archived"
	PostRolledBack Type = "post.rolled_back"
)

// Event is the payload written for every committed lifecycle operation.
type Event struct {
	Type       Type      `json:"type"`
	PostID     string    `json:"post_id"`
	Slug       string    `json:"slug"`
	ActorID    string    `json:"actor_id,omitempty"`
	VersionID  string    `json:"version_id,omitempty"`
	VersionSeq int       `json:"version_seq,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher only writes events to the structured log.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event Event) error {
	slog.InfoContext(ctx, "post lifecycle event",
		slog.String("type", string(event.Type)),
		slog.String("post_id", event.PostID),
		slog.String("slug", event.Slug),
		slog.String("actor_id", event.ActorID),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []Type {
	events := r.Events()
	types := make([]Type, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
