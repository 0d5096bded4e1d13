package usecase_vote

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infra_memory_state "github.com/berkist/linkroyale/core/internal/infra/memory/state"
	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
)

type UsecaseVoteSuite struct {
	suite.Suite

	store   *infra_memory_state.Driver
	usecase *Usecase
	ctx     context.Context
}

func (s *UsecaseVoteSuite) BeforeEach(t provider.T) {
	s.store = infra_memory_state.New()
	s.usecase = New(s.store)
	s.ctx = context.Background()
}

// votingRoom cooks a room mid-vote: two submissions, each assigned the
// other's owner plus a free reviewer. Subtests share the suite store, so
// any previous seed is wiped first.
func (s *UsecaseVoteSuite) votingRoom(t provider.T) model.Room {
	_ = s.store.Delete(s.ctx, "4217")

	now := time.Now()
	room := model.Room{
		ID:          "4217",
		Status:      model.StatusVoting,
		ModeratorID: "mod",
		Participants: map[string]model.User{
			"mod":   {ID: "mod", DisplayName: "Moderator", IsModerator: true},
			"alice": {ID: "alice", DisplayName: "Alice"},
			"bob":   {ID: "bob", DisplayName: "Bob"},
			"carol": {ID: "carol", DisplayName: "Carol"},
		},
		Submissions: map[string]model.Submission{
			"sub-a": {
				ID: "sub-a", OwnerID: "alice", URL: "https://example.com/a",
				AssignedVoters: []string{"bob", "carol"},
				Votes:          map[string]int{},
			},
			"sub-b": {
				ID: "sub-b", OwnerID: "bob", URL: "https://example.com/b",
				AssignedVoters: []string{"alice", "carol"},
				Votes:          map[string]int{},
			},
		},
		Deadline:    now.Add(5 * time.Minute),
		CreatedAt:   now,
		LastUpdated: now,
	}
	require.NoError(t, s.store.Create(s.ctx, room))
	return room
}

func (s *UsecaseVoteSuite) TestCast(t provider.T) {
	t.Run("Should record assigned reviewer's score", func(t provider.T) {
		room := s.votingRoom(t)

		got, err := s.usecase.Cast(s.ctx, room.ID, "sub-a", "bob", 7)

		require.NoError(t, err)
		assert.Equal(t, 7, got.Submissions["sub-a"].Votes["bob"])
	})

	t.Run("Should accept zero as explicit pass", func(t provider.T) {
		room := s.votingRoom(t)

		got, err := s.usecase.Cast(s.ctx, room.ID, "sub-a", "bob", model.PassScore)

		require.NoError(t, err)
		score, ok := got.Submissions["sub-a"].Votes["bob"]
		require.True(t, ok)
		assert.Equal(t, model.PassScore, score)
	})

	t.Run("Should overwrite reviewer's own previous score", func(t provider.T) {
		room := s.votingRoom(t)

		_, err := s.usecase.Cast(s.ctx, room.ID, "sub-a", "bob", 3)
		require.NoError(t, err)
		got, err := s.usecase.Cast(s.ctx, room.ID, "sub-a", "bob", 9)
		require.NoError(t, err)

		assert.Equal(t, 9, got.Submissions["sub-a"].Votes["bob"])
		assert.Len(t, got.Submissions["sub-a"].Votes, 1)
	})

	t.Run("Should reject score out of range", func(t provider.T) {
		room := s.votingRoom(t)

		_, err := s.usecase.Cast(s.ctx, room.ID, "sub-a", "bob", 11)
		assert.ErrorIs(t, err, ErrInvalidScore)

		_, err = s.usecase.Cast(s.ctx, room.ID, "sub-a", "bob", -1)
		assert.ErrorIs(t, err, ErrInvalidScore)
	})

	t.Run("Should reject voter outside the assignment", func(t provider.T) {
		room := s.votingRoom(t)

		// alice owns sub-a and is not assigned to it
		_, err := s.usecase.Cast(s.ctx, room.ID, "sub-a", "alice", 5)
		assert.ErrorIs(t, err, ErrOutOfAssignment)
	})

	t.Run("Should reject vote while round is not in voting", func(t provider.T) {
		room := s.votingRoom(t)
		_, err := s.store.Transact(s.ctx, room.ID, store.LifecyclePath(), func(r *model.Room) error {
			r.Status = model.StatusClosed
			return nil
		})
		require.NoError(t, err)

		_, err = s.usecase.Cast(s.ctx, room.ID, "sub-a", "bob", 5)
		assert.ErrorIs(t, err, ErrVotingNotActive)
	})

	t.Run("Should reject vote on unknown submission", func(t provider.T) {
		room := s.votingRoom(t)

		_, err := s.usecase.Cast(s.ctx, room.ID, "sub-x", "bob", 5)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Should commit concurrent votes from different reviewers", func(t provider.T) {
		room := s.votingRoom(t)

		casts := []struct {
			submissionID string
			voterID      string
			score        int
		}{
			{"sub-a", "bob", 6},
			{"sub-a", "carol", 8},
			{"sub-b", "alice", 4},
			{"sub-b", "carol", 10},
		}

		var wg sync.WaitGroup
		errs := make([]error, len(casts))
		for i, c := range casts {
			i, c := i, c
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.usecase.Cast(s.ctx, room.ID, c.submissionID, c.voterID, c.score)
			}()
		}
		wg.Wait()

		for i, err := range errs {
			require.NoError(t, err, "cast %d", i)
		}

		stored, err := s.store.Get(s.ctx, room.ID)
		require.NoError(t, err)
		for _, c := range casts {
			assert.Equal(t, c.score, stored.Submissions[c.submissionID].Votes[c.voterID],
				fmt.Sprintf("%s by %s", c.submissionID, c.voterID))
		}
	})
}

func (s *UsecaseVoteSuite) TestAllVotesIn(t provider.T) {
	t.Run("Should be false while votes are missing", func(t provider.T) {
		room := s.votingRoom(t)

		_, err := s.usecase.Cast(s.ctx, room.ID, "sub-a", "bob", 7)
		require.NoError(t, err)

		stored, err := s.store.Get(s.ctx, room.ID)
		require.NoError(t, err)
		assert.False(t, AllVotesIn(stored))
	})

	t.Run("Should be true once every assigned vote is cast", func(t provider.T) {
		room := s.votingRoom(t)

		var stored model.Room
		for _, c := range []struct {
			sub, voter string
		}{
			{"sub-a", "bob"}, {"sub-a", "carol"},
			{"sub-b", "alice"}, {"sub-b", "carol"},
		} {
			var err error
			stored, err = s.usecase.Cast(s.ctx, room.ID, c.sub, c.voter, 5)
			require.NoError(t, err)
		}

		assert.True(t, AllVotesIn(stored))
	})

	t.Run("Should be false outside the voting state", func(t provider.T) {
		room := s.votingRoom(t)
		stored, err := s.store.Transact(s.ctx, room.ID, store.LifecyclePath(), func(r *model.Room) error {
			r.Status = model.StatusOpen
			return nil
		})
		require.NoError(t, err)

		assert.False(t, AllVotesIn(stored))
	})
}

func TestUnitSuite(t *testing.T) {
	suite.RunSuite(t, new(UsecaseVoteSuite))
}
