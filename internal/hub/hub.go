// Package hub fans committed room states out to live observers. Each
// Subscribe call returns its own handle with its own teardown, so several
// subscriptions can coexist in one process without interfering.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/berkist/linkroyale/core/internal/model"
)

// Loader supplies the current snapshot pushed on first subscribe, so a
// join-then-subscribe race never leaves a client blank.
type Loader interface {
	Get(ctx context.Context, id model.RoomID) (model.Room, error)
}

type Hub struct {
	mu   sync.RWMutex
	subs map[model.RoomID]map[*Subscription]struct{}

	loader Loader
	logger *slog.Logger
}

func New(loader Loader, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[model.RoomID]map[*Subscription]struct{}),
		loader: loader,
		logger: logger,
	}
}

// Subscription is a live view of one room. States delivers every state the
// subscriber keeps up with; a slow subscriber may miss intermediate states
// but always eventually observes the latest one.
type Subscription struct {
	hub    *Hub
	roomID model.RoomID
	ch     chan model.Room
	once   sync.Once
}

func (s *Subscription) States() <-chan model.Room {
	return s.ch
}

// Close tears the subscription down and closes the States channel. Safe to
// call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.drop(s)
		close(s.ch)
	})
}

// Subscribe registers the subscription before loading the snapshot, so a
// state committed while the load is in flight lands in the buffer instead
// of falling into a gap. The snapshot is then offered with a try-send: if a
// racing commit already filled the buffer, that state is newer and the
// snapshot is dropped.
func (h *Hub) Subscribe(ctx context.Context, roomID model.RoomID) (*Subscription, error) {
	sub := &Subscription{
		hub:    h,
		roomID: roomID,
		ch:     make(chan model.Room, 1),
	}

	h.mu.Lock()
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[*Subscription]struct{})
	}
	h.subs[roomID][sub] = struct{}{}
	h.mu.Unlock()

	snapshot, err := h.loader.Get(ctx, roomID)
	if err != nil {
		h.drop(sub)
		return nil, err
	}

	select {
	case sub.ch <- snapshot:
	default:
	}

	h.logger.Debug("subscriber attached", "room_id", roomID)
	return sub, nil
}

func (h *Hub) drop(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.roomID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.roomID)
		}
	}
}

// StateCommitted implements store.CommitSink. Delivery never blocks the
// committing writer: when a subscriber's buffer is full its stale state is
// replaced with the newer one.
func (h *Hub) StateCommitted(id model.RoomID, room model.Room) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[id] {
		select {
		case sub.ch <- room:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- room:
			default:
			}
		}
	}
}
