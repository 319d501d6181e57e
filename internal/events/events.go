// Package events publishes domain events after committed mutations.
package events

import (
	"context"
	"errors"
	"sync"
)

// Exchange is the topic exchange every event goes to.
const Exchange = "habitgraph.events"

// Routing keys.
const (
	UserCreated     = "users.created"
	HabitCreated    = "habits.created"
	HabitArchived   = "habits.archived"
	GoalCreated     = "goals.created"
	GoalSelected    = "goals.selected"
	GoalUnselected  = "goals.unselected"
	CheckinRecorded = "habits.checkin.recorded"
	DiaryCreated    = "diary.entry.created"
	DiaryUpdated    = "diary.entry.updated"
	DiaryDeleted    = "diary.entry.deleted"
	FriendAdded     = "social.friend.added"
	GoalsReset      = "goals.reset"
)

// Publisher sends one event. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload map[string]any) error
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, map[string]any) error { return nil }

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, routingKey string, payload map[string]any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, routingKey, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Event is one published message as seen by a Recorder.
type Event struct {
	Payload    map[string]any
	RoutingKey string
}

// Recorder keeps published events in memory.
type Recorder struct {
	Err    error
	events []Event
	mu     sync.Mutex
}

// Publish implements Publisher. It records the event even when Err is set.
func (r *Recorder) Publish(_ context.Context, routingKey string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{RoutingKey: routingKey, Payload: payload})
	return r.Err
}

// Events returns a snapshot of recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Keys returns the routing keys in publish order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.events))
	for i, e := range r.events {
		keys[i] = e.RoutingKey
	}
	return keys
}

// Streamer receives events for live clients.
type Streamer interface {
	Publish(event string, userID int64, data any)
}

// Broadcast forwards events to a live stream, addressed by the payload's user_id.
type Broadcast struct {
	Streamer Streamer
}

// Publish implements Publisher.
func (b Broadcast) Publish(_ context.Context, routingKey string, payload map[string]any) error {
	var userID int64
	switch v := payload["user_id"].(type) {
	case int64:
		userID = v
	case int:
		userID = int64(v)
	}
	b.Streamer.Publish(routingKey, userID, payload)
	return nil
}
