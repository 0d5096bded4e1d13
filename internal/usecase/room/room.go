package usecase_room

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
)

var (
	ErrRoomsUnavailable = errors.New("no available room codes")
	// ErrIdentityConflict means the display name is taken and the
	// supplied secret does not match the stored one.
	ErrIdentityConflict = errors.New("identity conflict")
	ErrRoundNotOpen     = errors.New("round is not open")
	ErrNotParticipant   = errors.New("user is not a participant")
	ErrAlreadySubmitted = errors.New("participant already has a submission")
)

// Usecase covers room creation and the participant-side mutations: joining
// and link submission. Both mutations commit through the store scoped to
// their own sub-path, so a join can never contend with a submission write.
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

// Create books a fresh room in Open state. The returned room carries the
// moderator as its first participant; the moderator's user ID doubles as
// the owner token for moderator-only operations.
func (u *Usecase) Create(ctx context.Context) (model.Room, error) {
	moderator := model.User{
		ID:          uuid.New().String(),
		DisplayName: "Moderator",
		IsModerator: true,
	}

	// Short codes can collide. Retrying a few times.
	var retries = 3
	for retries > 0 {
		now := time.Now()
		room := model.Room{
			ID:          u.buildRoomCode(),
			Status:      model.StatusOpen,
			ModeratorID: moderator.ID,
			Participants: map[string]model.User{
				moderator.ID: moderator,
			},
			Submissions: map[string]model.Submission{},
			CreatedAt:   now,
			LastUpdated: now,
		}
		err := u.store.Create(ctx, room)
		if err == nil {
			u.logger.Info("room created", "room_id", room.ID)
			return room, nil
		}
		if errors.Is(err, store.ErrAlreadyExists) {
			retries--
			continue
		}
		return model.Room{}, err
	}
	return model.Room{}, ErrRoomsUnavailable
}

func (u *Usecase) buildRoomCode() model.RoomID {
	const codeLen = 4
	var builder strings.Builder
	builder.Grow(codeLen)

	for i := 0; i < codeLen; i++ {
		builder.WriteByte(byte(rand.Intn(10)) + '0')
	}
	return model.RoomID(builder.String())
}

// Join adds a participant, or reconnects an existing one. Reconnection is
// idempotent: the same display name with the same secret yields the same
// user record every time. A known name with a different secret fails with
// ErrIdentityConflict and writes nothing.
//
// Brand-new joins are accepted only while the round is open; reconnection
// works in any state.
func (u *Usecase) Join(ctx context.Context, roomID model.RoomID, displayName, secret string) (model.User, error) {
	var joined model.User

	_, err := u.store.Transact(ctx, roomID, store.ParticipantsPath(), func(r *model.Room) error {
		for _, existing := range r.Participants {
			if existing.IsModerator || existing.DisplayName != displayName {
				continue
			}
			if existing.Secret != secret {
				return ErrIdentityConflict
			}
			joined = existing
			return nil
		}

		if r.Status != model.StatusOpen {
			return ErrRoundNotOpen
		}

		joined = model.User{
			ID:          uuid.New().String(),
			DisplayName: displayName,
			Secret:      secret,
		}
		r.Participants[joined.ID] = joined
		return nil
	})
	if err != nil {
		return model.User{}, err
	}

	u.logger.Info("participant joined", "room_id", roomID, "user_id", joined.ID)
	return joined, nil
}

// SubmitLink records the participant's single submission for the round.
// A second submission by the same owner is rejected, never overwritten,
// including the case of two concurrent submissions racing each other.
func (u *Usecase) SubmitLink(ctx context.Context, roomID model.RoomID, ownerID, url, description string) (model.Submission, error) {
	url = normalizeURL(url)

	var sub model.Submission
	_, err := u.store.Transact(ctx, roomID, store.SubmissionsPath(), func(r *model.Room) error {
		if r.Status != model.StatusOpen {
			return ErrRoundNotOpen
		}
		owner, ok := r.Participants[ownerID]
		if !ok || owner.IsModerator {
			return ErrNotParticipant
		}
		if _, taken := r.SubmissionByOwner(ownerID); taken {
			return ErrAlreadySubmitted
		}

		sub = model.Submission{
			ID:          uuid.New().String(),
			OwnerID:     ownerID,
			URL:         url,
			Description: description,
			Votes:       map[string]int{},
			CreatedAt:   time.Now(),
		}
		r.Submissions[sub.ID] = sub
		return nil
	})
	if err != nil {
		return model.Submission{}, err
	}

	u.logger.Info("link submitted", "room_id", roomID, "submission_id", sub.ID)
	return sub, nil
}

// State returns the current snapshot.
func (u *Usecase) State(ctx context.Context, roomID model.RoomID) (model.Room, error) {
	return u.store.Get(ctx, roomID)
}

func normalizeURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://" + url
}
