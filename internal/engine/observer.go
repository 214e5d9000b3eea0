package engine

import (
	"time"

	"github.com/google/uuid"
)

// ChangeKind discriminates the row-level change a notification describes
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Change describes a single row mutation.
// Position is the row's position at the time of the event; for removals
// it is the position the row held before the rows above it shifted down.
type Change struct {
	Kind      ChangeKind
	Position  int
	Values    Row       // new values; for removals, the values removed
	Previous  Row       // values replaced by an update
	Timestamp time.Time // when the change was applied
}

// Listener receives change notifications synchronously, after the table
// already reflects the change
type Listener func(Change)

// SubscriptionID identifies a registered listener
type SubscriptionID string

type subscription struct {
	id       SubscriptionID
	listener Listener
}

// ListenerRegistry is an ordered set of listeners. Notification walks a
// snapshot so that listeners added or removed while firing only take
// effect from the next event. The zero value is ready to use.
type ListenerRegistry struct {
	subs []subscription
}

// Add registers l and returns a fresh id for it
func (r *ListenerRegistry) Add(l Listener) SubscriptionID {
	id := SubscriptionID(uuid.New().String())
	r.subs = append(r.subs, subscription{id: id, listener: l})
	return id
}

// Remove unregisters id; unknown ids are a no-op
func (r *ListenerRegistry) Remove(id SubscriptionID) {
	for i, s := range r.subs {
		if s.id == id {
			// copy instead of splicing in place: a firing pass may hold the old slice
			next := make([]subscription, 0, len(r.subs)-1)
			next = append(next, r.subs[:i]...)
			r.subs = append(next, r.subs[i+1:]...)
			return
		}
	}
}

func (r *ListenerRegistry) Len() int { return len(r.subs) }

// Notify delivers c to every listener in registration order
func (r *ListenerRegistry) Notify(c Change) {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	snapshot := r.subs
	for _, s := range snapshot {
		s.listener(c)
	}
}
