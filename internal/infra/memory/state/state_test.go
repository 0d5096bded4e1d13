package infra_memory_state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
)

func openRoom(id model.RoomID) model.Room {
	now := time.Now()
	return model.Room{
		ID:          id,
		Status:      model.StatusOpen,
		ModeratorID: "mod",
		Participants: map[string]model.User{
			"mod": {ID: "mod", DisplayName: "Moderator", IsModerator: true},
		},
		Submissions: map[string]model.Submission{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

type recordingSink struct {
	mu     sync.Mutex
	states []model.Room
}

func (s *recordingSink) StateCommitted(_ model.RoomID, room model.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, room)
}

func (s *recordingSink) seen() []model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Room(nil), s.states...)
}

func TestCreateGetDelete(t *testing.T) {
	t.Parallel()
	d := New()
	ctx := context.Background()

	_, err := d.Get(ctx, "4217")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, d.Create(ctx, openRoom("4217")))
	assert.ErrorIs(t, d.Create(ctx, openRoom("4217")), store.ErrAlreadyExists)

	got, err := d.Get(ctx, "4217")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.Status)

	require.NoError(t, d.Delete(ctx, "4217"))
	assert.ErrorIs(t, d.Delete(ctx, "4217"), store.ErrNotFound)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	t.Parallel()
	d := New()
	ctx := context.Background()
	require.NoError(t, d.Create(ctx, openRoom("4217")))

	got, err := d.Get(ctx, "4217")
	require.NoError(t, err)
	got.Participants["intruder"] = model.User{ID: "intruder"}

	again, err := d.Get(ctx, "4217")
	require.NoError(t, err)
	assert.NotContains(t, again.Participants, "intruder")
}

func TestTransactCommitsAndStamps(t *testing.T) {
	t.Parallel()
	d := New()
	ctx := context.Background()
	room := openRoom("4217")
	require.NoError(t, d.Create(ctx, room))

	before := room.LastUpdated
	got, err := d.Transact(ctx, "4217", store.ParticipantsPath(), func(r *model.Room) error {
		r.Participants["alice"] = model.User{ID: "alice", DisplayName: "Alice"}
		return nil
	})
	require.NoError(t, err)

	assert.Contains(t, got.Participants, "alice")
	assert.False(t, got.LastUpdated.Before(before))
}

func TestTransactRejectionLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	d := New()
	ctx := context.Background()
	require.NoError(t, d.Create(ctx, openRoom("4217")))

	boom := fmt.Errorf("rejected")
	_, err := d.Transact(ctx, "4217", store.ParticipantsPath(), func(r *model.Room) error {
		r.Participants["ghost"] = model.User{ID: "ghost"}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := d.Get(ctx, "4217")
	require.NoError(t, err)
	assert.NotContains(t, got.Participants, "ghost")
}

func TestTransactNotifiesSink(t *testing.T) {
	t.Parallel()
	d := New()
	sink := &recordingSink{}
	d.SetCommitSink(sink)
	ctx := context.Background()
	require.NoError(t, d.Create(ctx, openRoom("4217")))

	_, err := d.Transact(ctx, "4217", store.ParticipantsPath(), func(r *model.Room) error {
		r.Participants["alice"] = model.User{ID: "alice"}
		return nil
	})
	require.NoError(t, err)

	states := sink.seen()
	require.Len(t, states, 1)
	assert.Contains(t, states[0].Participants, "alice")
}

func TestConcurrentTransactsAllCommit(t *testing.T) {
	t.Parallel()
	d := New()
	ctx := context.Background()
	require.NoError(t, d.Create(ctx, openRoom("4217")))

	const writers = 20
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("user-%02d", i)
			_, errs[i] = d.Transact(ctx, "4217", store.ParticipantsPath(), func(r *model.Room) error {
				r.Participants[id] = model.User{ID: id}
				return nil
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}
	got, err := d.Get(ctx, "4217")
	require.NoError(t, err)
	// moderator plus every writer
	assert.Len(t, got.Participants, writers+1)
}

func TestTransactExhaustsUnderHeldLock(t *testing.T) {
	t.Parallel()
	d := New(WithAttempts(2))
	ctx := context.Background()
	require.NoError(t, d.Create(ctx, openRoom("4217")))

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = d.Transact(ctx, "4217", store.LifecyclePath(), func(r *model.Room) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	_, err := d.Transact(ctx, "4217", store.ParticipantsPath(), func(r *model.Room) error {
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConflictExhausted)
}

func TestSetWaitsInsteadOfFailing(t *testing.T) {
	t.Parallel()
	d := New(WithAttempts(1))
	ctx := context.Background()
	require.NoError(t, d.Create(ctx, openRoom("4217")))

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = d.Transact(ctx, "4217", store.LifecyclePath(), func(r *model.Room) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	done := make(chan error, 1)
	go func() {
		_, err := d.Set(ctx, "4217", store.MetaPath(), func(r *model.Room) error {
			return nil
		})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Set finished while the room lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
}

func TestTransactHonorsContextCancel(t *testing.T) {
	t.Parallel()
	d := New()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Create(context.Background(), openRoom("4217")))

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = d.Transact(context.Background(), "4217", store.LifecyclePath(), func(r *model.Room) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	cancel()
	_, err := d.Transact(ctx, "4217", store.ParticipantsPath(), func(r *model.Room) error {
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConflictExhausted)
}
