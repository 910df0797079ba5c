// Package events publishes change notifications emitted after successful
// store mutations.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fieldmonitor/pkg/domain"
)

// Event describes one applied mutation.
type Event struct {
	Collection string            `json:"collection"`
	Entity     domain.EntityType `json:"entity"`
	Action     domain.Action     `json:"action"`
	ID         string            `json:"id"`
	At         time.Time         `json:"at"`
}

// New builds an event for entity, stamping the collection key.
func New(entity domain.EntityType, action domain.Action, id string, at time.Time) Event {
	return Event{Collection: domain.KeyFor(entity), Entity: entity, Action: action, ID: id, At: at.UTC()}
}

// ToJSON encodes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event.
func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
