package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeUserRegistered = "user.registered"
	TypeVideoUploaded  = "video.uploaded"
	TypeVideoDeleted   = "video.deleted"
)

// Event is an activity record published for downstream consumers
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Email      string    `json:"email,omitempty"`
	Username   string    `json:"username,omitempty"`
	VideoID    string    `json:"video_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New creates an event of the given type stamped with a fresh id and time
func New(eventType string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher publishes activity events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events. Used when the queue is disabled.
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, Event) error {
	return nil
}

// Multi fans an event out to several publishers. Every publisher is tried
// and the failures are joined.
type Multi []Publisher

// Publish implements Publisher
func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the types of the recorded events in order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
