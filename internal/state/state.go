// Package state is the single place where stored room state is decoded,
// validated and repaired. Business logic above the store always sees a
// well-typed model.Room; malformed data surfaces here as ErrMalformed.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/berkist/linkroyale/core/internal/model"
)

var ErrMalformed = errors.New("malformed room state")

// Storage documents. Timestamps travel as unix milliseconds, which is what
// the remote store kept historically.

type metaDoc struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ModeratorID string `json:"moderator_id"`
	Deadline    int64  `json:"deadline,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	LastUpdated int64  `json:"last_updated"`
}

type userDoc struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Secret      string `json:"secret,omitempty"`
	IsModerator bool   `json:"is_moderator,omitempty"`
}

type submissionDoc struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"owner_id"`
	URL            string   `json:"url"`
	Description    string   `json:"description,omitempty"`
	AssignedVoters []string `json:"assigned_voters,omitempty"`
	Commentary     string   `json:"commentary,omitempty"`
	CreatedAt      int64    `json:"created_at"`
}

func EncodeMeta(r model.Room) ([]byte, error) {
	doc := metaDoc{
		ID:          string(r.ID),
		Status:      string(r.Status),
		ModeratorID: r.ModeratorID,
		CreatedAt:   r.CreatedAt.UnixMilli(),
		LastUpdated: r.LastUpdated.UnixMilli(),
	}
	if !r.Deadline.IsZero() {
		doc.Deadline = r.Deadline.UnixMilli()
	}
	return json.Marshal(doc)
}

func EncodeParticipants(r model.Room) ([]byte, error) {
	docs := make(map[string]userDoc, len(r.Participants))
	for id, u := range r.Participants {
		docs[id] = userDoc{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			Secret:      u.Secret,
			IsModerator: u.IsModerator,
		}
	}
	return json.Marshal(docs)
}

// EncodeSubmissions serializes submissions without their vote maps. Votes
// live in their own per-submission cells so concurrent voters never
// contend on this document.
func EncodeSubmissions(r model.Room) ([]byte, error) {
	docs := make(map[string]submissionDoc, len(r.Submissions))
	for id, s := range r.Submissions {
		docs[id] = submissionDoc{
			ID:             s.ID,
			OwnerID:        s.OwnerID,
			URL:            s.URL,
			Description:    s.Description,
			AssignedVoters: s.AssignedVoters,
			Commentary:     s.Commentary,
			CreatedAt:      s.CreatedAt.UnixMilli(),
		}
	}
	return json.Marshal(docs)
}

// Decode assembles a room from its stored documents. votes maps submission
// ID to that submission's vote cells; a missing entry means nobody voted.
func Decode(meta, participants, submissions []byte, votes map[string]map[string]int) (model.Room, error) {
	var md metaDoc
	if err := json.Unmarshal(meta, &md); err != nil {
		return model.Room{}, fmt.Errorf("%w: meta: %w", ErrMalformed, err)
	}

	room := model.Room{
		ID:           model.RoomID(md.ID),
		Status:       model.Status(md.Status),
		ModeratorID:  md.ModeratorID,
		Participants: make(map[string]model.User),
		Submissions:  make(map[string]model.Submission),
		CreatedAt:    time.UnixMilli(md.CreatedAt),
		LastUpdated:  time.UnixMilli(md.LastUpdated),
	}
	if md.Deadline != 0 {
		room.Deadline = time.UnixMilli(md.Deadline)
	}

	// The remote store drops empty collections entirely, so absent
	// participants/submissions documents are legitimate, not malformed.
	if len(participants) > 0 {
		var docs map[string]userDoc
		if err := json.Unmarshal(participants, &docs); err != nil {
			return model.Room{}, fmt.Errorf("%w: participants: %w", ErrMalformed, err)
		}
		for id, d := range docs {
			room.Participants[id] = model.User{
				ID:          d.ID,
				DisplayName: d.DisplayName,
				Secret:      d.Secret,
				IsModerator: d.IsModerator,
			}
		}
	}

	if len(submissions) > 0 {
		var docs map[string]submissionDoc
		if err := json.Unmarshal(submissions, &docs); err != nil {
			return model.Room{}, fmt.Errorf("%w: submissions: %w", ErrMalformed, err)
		}
		for id, d := range docs {
			sub := model.Submission{
				ID:             d.ID,
				OwnerID:        d.OwnerID,
				URL:            d.URL,
				Description:    d.Description,
				AssignedVoters: d.AssignedVoters,
				Commentary:     d.Commentary,
				Votes:          votes[id],
				CreatedAt:      time.UnixMilli(d.CreatedAt),
			}
			room.Submissions[id] = sub
		}
	}

	if err := Normalize(&room); err != nil {
		return model.Room{}, err
	}
	return room, nil
}

// Normalize repairs the shapes storage legitimately loses (nil maps, nil
// vote cells) and rejects state no writer of ours could have produced.
func Normalize(r *model.Room) error {
	if r.ID == model.EmptyRoomID {
		return fmt.Errorf("%w: empty room id", ErrMalformed)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrMalformed, r.Status)
	}
	if r.Participants == nil {
		r.Participants = make(map[string]model.User)
	}
	if r.Submissions == nil {
		r.Submissions = make(map[string]model.Submission)
	}
	for id, sub := range r.Submissions {
		if sub.ID == "" || sub.OwnerID == "" {
			return fmt.Errorf("%w: submission %q missing identity", ErrMalformed, id)
		}
		if sub.Votes == nil {
			sub.Votes = make(map[string]int)
			r.Submissions[id] = sub
		}
	}
	return nil
}
