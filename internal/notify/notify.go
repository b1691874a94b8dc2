// Package notify carries typed ledger change notifications. Components that
// need to refresh after a mutation subscribe to a Bus instead of listening
// for ambient global events.
package notify

import (
	"context"
	"sync"
	"time"
)

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionPaid      Action = "paid"
	ActionGenerated Action = "generated"
)

const (
	EntityAccount     Entity = "account"
	EntityTransaction Entity = "transaction"
	EntityObligation  Entity = "obligation"
	EntityFine        Entity = "fine"
	EntityBudget      Entity = "budget"
	EntityConfig      Entity = "config"
)

type (
	Action string
	Entity string

	// Change describes one ledger mutation.
	Change struct {
		Entity    Entity    `json:"entity"`
		Action    Action    `json:"action"`
		ID        string    `json:"id,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}

	// Notifier receives change notifications. Implementations must not
	// fail the originating operation; delivery problems are theirs to log.
	Notifier interface {
		Notify(ctx context.Context, c Change)
	}
)

// NewChange stamps a change with the current time.
func NewChange(entity Entity, action Action, id string) Change {
	return Change{Entity: entity, Action: action, ID: id, Timestamp: time.Now()}
}

// Bus delivers changes synchronously to in-process subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]func(Change)
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Change))}
}

var _ Notifier = (*Bus)(nil)

// Subscribe registers fn and returns its cancel function.
func (b *Bus) Subscribe(fn func(Change)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Bus) Notify(_ context.Context, c Change) {
	b.mu.Lock()
	fns := make([]func(Change), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Multi fans a change out to several notifiers.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) Notify(ctx context.Context, c Change) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, c)
		}
	}
}
