package usecase_round

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/berkist/linkroyale/core/internal/assign"
	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
)

var (
	// ErrInvalidTransition is returned for a lifecycle command issued
	// from a non-matching state.
	ErrInvalidTransition       = errors.New("invalid lifecycle transition")
	ErrNotModerator            = errors.New("caller is not the room moderator")
	ErrCommentaryUnavailable   = errors.New("commentary service unavailable")
	ErrInsufficientSubmissions = assign.ErrInsufficientSubmissions
)

// errNoTransition aborts a lifecycle transact whose work turned out to be
// already done. The caller returns the observed state as-is; nothing is
// committed, rebroadcast or archived.
var errNoTransition = errors.New("transition already applied")

// Commentator is the external commentary collaborator. Fallible, optional,
// never blocking the state machine.
type Commentator interface {
	CommentOn(ctx context.Context, url, description string) (string, error)
}

// Archiver persists final standings of closed rounds.
type Archiver interface {
	SaveStandings(ctx context.Context, roomID model.RoomID, standings []Standing) error
	Standings(ctx context.Context, roomID model.RoomID) ([]Standing, error)
}

// Standing is one submission's final place in a round.
type Standing struct {
	Place        int
	SubmissionID string
	OwnerID      string
	OwnerName    string
	URL          string
	Average      float64
	VoteCount    int
}

// Usecase drives the room status machine: Open -> Voting -> Closed, plus
// the moderator-triggered resets. All transitions are single commits on the
// lifecycle path, so no observer ever sees a Voting room without complete
// reviewer assignments.
type Usecase struct {
	store       store.Store
	commentator Commentator
	archiver    Archiver

	roundDuration time.Duration
	logger        *slog.Logger
}

type Option func(*Usecase)

func WithCommentator(c Commentator) Option {
	return func(u *Usecase) { u.commentator = c }
}

func WithArchiver(a Archiver) Option {
	return func(u *Usecase) { u.archiver = a }
}

func New(st store.Store, roundDuration time.Duration, opts ...Option) *Usecase {
	u := &Usecase{
		store:         st,
		roundDuration: roundDuration,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// StartVoting computes reviewer assignments and flips the room to Voting in
// one commit. Calling it again while voting is already running is a no-op.
func (u *Usecase) StartVoting(ctx context.Context, roomID model.RoomID, actorID string) (model.Room, error) {
	var current model.Room
	room, err := u.store.Transact(ctx, roomID, store.LifecyclePath(), func(r *model.Room) error {
		if r.ModeratorID != actorID {
			return ErrNotModerator
		}
		switch r.Status {
		case model.StatusVoting:
			current = r.Clone()
			return errNoTransition
		case model.StatusClosed:
			return ErrInvalidTransition
		}

		assignment, err := assign.Reviewers(r.Submissions, r.Reviewers())
		if err != nil {
			return err
		}
		for subID, voters := range assignment {
			sub := r.Submissions[subID]
			sub.AssignedVoters = voters
			r.Submissions[subID] = sub
		}

		r.Status = model.StatusVoting
		r.Deadline = time.Now().Add(u.roundDuration)
		return nil
	})
	if errors.Is(err, errNoTransition) {
		return current, nil
	}
	if err != nil {
		return model.Room{}, err
	}

	u.logger.Info("voting started", "room_id", roomID, "deadline", room.Deadline)
	return room, nil
}

// Finish closes the round. The moderator may always force this, whether or
// not every assigned vote is in. Finishing an already closed round is a
// no-op; finishing before voting started is rejected. Standings are
// archived exactly once, on the real Voting -> Closed flip, so a retried
// Finish never duplicates archive rows.
func (u *Usecase) Finish(ctx context.Context, roomID model.RoomID, actorID string) (model.Room, error) {
	var current model.Room
	room, err := u.store.Transact(ctx, roomID, store.LifecyclePath(), func(r *model.Room) error {
		if r.ModeratorID != actorID {
			return ErrNotModerator
		}
		switch r.Status {
		case model.StatusOpen:
			return ErrInvalidTransition
		case model.StatusClosed:
			current = r.Clone()
			return errNoTransition
		}
		r.Status = model.StatusClosed
		return nil
	})
	if errors.Is(err, errNoTransition) {
		return current, nil
	}
	if err != nil {
		return model.Room{}, err
	}

	u.archive(ctx, room)

	u.logger.Info("round finished", "room_id", roomID)
	return room, nil
}

// archive is best effort: a storage hiccup must not fail the transition.
func (u *Usecase) archive(ctx context.Context, room model.Room) {
	if u.archiver == nil {
		return
	}
	if err := u.archiver.SaveStandings(ctx, room.ID, Standings(room)); err != nil {
		u.logger.Error("failed to archive standings",
			"room_id", room.ID,
			"error", err.Error())
	}
}

// Reset returns a closed room to Open. A soft reset keeps the participants
// and clears everything the round produced; a hard reset wipes the room.
func (u *Usecase) Reset(ctx context.Context, roomID model.RoomID, actorID string, hard bool) (model.Room, error) {
	if hard {
		room, err := u.store.Get(ctx, roomID)
		if err != nil {
			return model.Room{}, err
		}
		if room.ModeratorID != actorID {
			return model.Room{}, ErrNotModerator
		}
		if err := u.store.Delete(ctx, roomID); err != nil {
			return model.Room{}, err
		}
		u.logger.Info("room wiped", "room_id", roomID)
		return model.Room{}, nil
	}

	room, err := u.store.Transact(ctx, roomID, store.LifecyclePath(), func(r *model.Room) error {
		if r.ModeratorID != actorID {
			return ErrNotModerator
		}
		if r.Status != model.StatusClosed {
			return ErrInvalidTransition
		}
		r.Status = model.StatusOpen
		r.Submissions = map[string]model.Submission{}
		r.Deadline = time.Time{}
		return nil
	})
	if err != nil {
		return model.Room{}, err
	}

	u.logger.Info("round reset", "room_id", roomID)
	return room, nil
}

// Comment asks the external collaborator for commentary on one submission
// and stores the text with a plain set: the moderator path is its only
// writer, so the write needs no conflict protection. Unavailability is
// reported once and never retried.
func (u *Usecase) Comment(ctx context.Context, roomID model.RoomID, submissionID, actorID string) (string, error) {
	if u.commentator == nil {
		return "", ErrCommentaryUnavailable
	}

	room, err := u.store.Get(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.ModeratorID != actorID {
		return "", ErrNotModerator
	}
	sub, ok := room.Submissions[submissionID]
	if !ok {
		return "", store.ErrNotFound
	}
	if sub.Commentary != "" {
		return sub.Commentary, nil
	}

	text, err := u.commentator.CommentOn(ctx, sub.URL, sub.Description)
	if err != nil {
		return "", errors.Join(ErrCommentaryUnavailable, err)
	}

	path := store.Path{Kind: store.KindMeta, SubmissionID: submissionID}
	_, err = u.store.Set(ctx, roomID, path, func(r *model.Room) error {
		s, ok := r.Submissions[submissionID]
		if !ok {
			return store.ErrNotFound
		}
		s.Commentary = text
		r.Submissions[submissionID] = s
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Results computes the live ranking of the room's submissions.
func (u *Usecase) Results(ctx context.Context, roomID model.RoomID) ([]Standing, error) {
	room, err := u.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return Standings(room), nil
}

// Archived returns the persisted standings of a past round.
func (u *Usecase) Archived(ctx context.Context, roomID model.RoomID) ([]Standing, error) {
	if u.archiver == nil {
		return nil, nil
	}
	return u.archiver.Standings(ctx, roomID)
}

// Standings ranks submissions by average score, highest first, with the
// submission ID as a stable tie-break. Explicit passes count as zeros, the
// same way the results screen always averaged them.
func Standings(room model.Room) []Standing {
	out := make([]Standing, 0, len(room.Submissions))
	for _, sub := range room.Submissions {
		owner := room.Participants[sub.OwnerID]
		out = append(out, Standing{
			SubmissionID: sub.ID,
			OwnerID:      sub.OwnerID,
			OwnerName:    owner.DisplayName,
			URL:          sub.URL,
			Average:      sub.AverageScore(),
			VoteCount:    len(sub.Votes),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average != out[j].Average {
			return out[i].Average > out[j].Average
		}
		return out[i].SubmissionID < out[j].SubmissionID
	})
	for i := range out {
		out[i].Place = i + 1
	}
	return out
}
