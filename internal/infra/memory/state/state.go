// Package infra_memory_state keeps room state in process memory. Transactions
// are emulated with one lock per room acquired by bounded TryLock plus
// exponential backoff, the same discipline the store contract promises.
//
// Single server instance only. Two processes sharing this backend would not
// see each other's rooms, let alone each other's locks.
package infra_memory_state

import (
	"context"
	"sync"
	"time"

	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/state"
	"github.com/berkist/linkroyale/core/internal/store"
)

const (
	defaultAttempts = 5
	initialBackoff  = 20 * time.Millisecond
	maxBackoff      = 500 * time.Millisecond
)

type entry struct {
	mu   sync.Mutex
	room model.Room
}

type Driver struct {
	mu    sync.RWMutex
	rooms map[model.RoomID]*entry

	sink     store.CommitSink
	attempts int
}

type Option func(*Driver)

// WithAttempts overrides the lock-acquisition budget. Tests use it to make
// conflict exhaustion cheap to provoke.
func WithAttempts(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.attempts = n
		}
	}
}

func New(opts ...Option) *Driver {
	d := &Driver{
		rooms:    make(map[model.RoomID]*entry),
		attempts: defaultAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetCommitSink wires the subscription hub in. Must be called before the
// first mutation; commits made with no sink are simply not broadcast.
func (d *Driver) SetCommitSink(sink store.CommitSink) {
	d.sink = sink
}

func (d *Driver) Create(_ context.Context, room model.Room) error {
	if err := state.Normalize(&room); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rooms[room.ID]; ok {
		return store.ErrAlreadyExists
	}
	d.rooms[room.ID] = &entry{room: room.Clone()}
	return nil
}

func (d *Driver) Get(_ context.Context, id model.RoomID) (model.Room, error) {
	e, err := d.entry(id)
	if err != nil {
		return model.Room{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Clone(), nil
}

func (d *Driver) Delete(_ context.Context, id model.RoomID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rooms[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.rooms, id)
	return nil
}

func (d *Driver) Transact(ctx context.Context, id model.RoomID, _ store.Path, apply func(*model.Room) error) (model.Room, error) {
	e, err := d.entry(id)
	if err != nil {
		return model.Room{}, err
	}

	if !d.acquire(ctx, e) {
		return model.Room{}, store.ErrConflictExhausted
	}
	defer e.mu.Unlock()

	return d.commit(e, apply)
}

/// Set skips the acquisition budget: the caller has promised the path has a
// single writer, so waiting on the room lock is plain serialization, not
// contention worth a typed failure.
func (d *Driver) Set(_ context.Context, id model.RoomID, _ store.Path, apply func(*model.Room) error) (model.Room, error) {
	e, err := d.entry(id)
	if err != nil {
		return model.Room{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return d.commit(e, apply)
}

func (d *Driver) entry(id model.RoomID) (*entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e, nil
}

func (d *Driver) acquire(ctx context.Context, e *entry) bool {
	backoff := initialBackoff
	for attempt := 0; attempt < d.attempts; attempt++ {
		if e.mu.TryLock() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return false
}

// commit runs apply against a clone, so a rejected mutation leaves the
// stored state untouched. The sink is notified while the room lock is still
// held, which gives subscribers a total order per room.
func (d *Driver) commit(e *entry, apply func(*model.Room) error) (model.Room, error) {
	next := e.room.Clone()
	if err := apply(&next); err != nil {
		return model.Room{}, err
	}
	if err := state.Normalize(&next); err != nil {
		return model.Room{}, err
	}
	next.LastUpdated = time.Now()

	e.room = next
	out := next.Clone()
	if d.sink != nil {
		d.sink.StateCommitted(out.ID, out)
	}
	return out, nil
}
