package usecase_vote

import (
	"context"
	"errors"
	"log/slog"

	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
)

var (
	ErrVotingNotActive = errors.New("voting is not active")
	// ErrOutOfAssignment means the voter is not among the reviewers
	// assigned to this submission.
	ErrOutOfAssignment = errors.New("voter is not assigned to this submission")
	ErrInvalidScore    = errors.New("score out of range")
)

type Usecase struct {
	store  store.Store
	logger *slog.Logger
}

func New(st store.Store) *Usecase {
	return &Usecase{
		store:  st,
		logger: slog.Default(),
	}
}

// Cast commits one reviewer's score for one submission. Zero is the
// explicit pass, which is also how a client reports a deadline timeout.
//
// The commit is scoped to the single vote cell, so concurrent votes on
// different submissions, or by different voters on the same submission,
// never contend with each other. Casting again overwrites the voter's own
// previous score and nothing else.
func (u *Usecase) Cast(ctx context.Context, roomID model.RoomID, submissionID, voterID string, score int) (model.Room, error) {
	if !model.ValidScore(score) {
		return model.Room{}, ErrInvalidScore
	}

	room, err := u.store.Transact(ctx, roomID, store.VotePath(submissionID, voterID), func(r *model.Room) error {
		if r.Status != model.StatusVoting {
			return ErrVotingNotActive
		}
		sub, ok := r.Submissions[submissionID]
		if !ok {
			return store.ErrNotFound
		}
		if !sub.Assigned(voterID) {
			return ErrOutOfAssignment
		}
		sub.Votes[voterID] = score
		r.Submissions[submissionID] = sub
		return nil
	})
	if err != nil {
		return model.Room{}, err
	}

	u.logger.Info("vote cast",
		"room_id", roomID,
		"submission_id", submissionID,
		"voter_id", voterID)
	return room, nil
}

// AllVotesIn reports whether every assigned vote of the room is cast. The
// UI may treat this as a hint to finish early; the authoritative
// transition is still the moderator's.
func AllVotesIn(r model.Room) bool {
	if r.Status != model.StatusVoting {
		return false
	}
	for _, sub := range r.Submissions {
		for _, voter := range sub.AssignedVoters {
			if _, ok := sub.Votes[voter]; !ok {
				return false
			}
		}
	}
	return true
}
