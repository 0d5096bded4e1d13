// Package dto holds the outbound wire shape of room state, shared by the
// HTTP and websocket deliveries. Mapping through it is what keeps
// reconnection secrets out of everything pushed to clients.
package dto

import (
	"sort"

	"github.com/berkist/linkroyale/core/internal/model"
)

type Room struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	ModeratorID  string       `json:"moderator_id"`
	Participants []User       `json:"participants"`
	Submissions  []Submission `json:"submissions"`
	Deadline     int64        `json:"deadline,omitempty"`
	CreatedAt    int64        `json:"created_at"`
	LastUpdated  int64        `json:"last_updated"`
}

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsModerator bool   `json:"is_moderator,omitempty"`
}

type Submission struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id"`
	URL            string         `json:"url"`
	Description    string         `json:"description,omitempty"`
	Votes          map[string]int `json:"votes"`
	AssignedVoters []string       `json:"assigned_voters,omitempty"`
	Commentary     string         `json:"commentary,omitempty"`
	CreatedAt      int64          `json:"created_at"`
}

func FromRoom(r model.Room) Room {
	out := Room{
		ID:           string(r.ID),
		Status:       string(r.Status),
		ModeratorID:  r.ModeratorID,
		Participants: make([]User, 0, len(r.Participants)),
		Submissions:  make([]Submission, 0, len(r.Submissions)),
		CreatedAt:    r.CreatedAt.UnixMilli(),
		LastUpdated:  r.LastUpdated.UnixMilli(),
	}
	if !r.Deadline.IsZero() {
		out.Deadline = r.Deadline.UnixMilli()
	}

	for _, u := range r.Participants {
		out.Participants = append(out.Participants, User{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			IsModerator: u.IsModerator,
		})
	}
	sort.Slice(out.Participants, func(i, j int) bool {
		return out.Participants[i].ID < out.Participants[j].ID
	})

	for _, s := range r.Submissions {
		out.Submissions = append(out.Submissions, Submission{
			ID:             s.ID,
			OwnerID:        s.OwnerID,
			URL:            s.URL,
			Description:    s.Description,
			Votes:          s.Votes,
			AssignedVoters: s.AssignedVoters,
			Commentary:     s.Commentary,
			CreatedAt:      s.CreatedAt.UnixMilli(),
		})
	}
	sort.Slice(out.Submissions, func(i, j int) bool {
		return out.Submissions[i].ID < out.Submissions[j].ID
	})
	return out
}
