package model

import "time"

type RoomID string

const EmptyRoomID RoomID = ""

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusVoting Status = "VOTING"
	StatusClosed Status = "CLOSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusVoting, StatusClosed:
		return true
	}
	return false
}

// Room is the full round state of one contest instance. It is the only
// shared mutable resource in the system; every mutation goes through the
// state store scoped to one of its sub-paths.
type Room struct {
	ID          RoomID
	Status      Status
	ModeratorID string

	Participants map[string]User
	Submissions  map[string]Submission

	// Deadline is set at the OPEN -> VOTING transition. It is advisory:
	// expiry is observed by each reviewer's client, which casts an
	// explicit zero vote through the normal path.
	Deadline time.Time

	CreatedAt time.Time
	// LastUpdated is rewritten on every committed mutation. Diagnostics
	// only, never used for conflict detection.
	LastUpdated time.Time
}

// Reviewers returns the IDs of participants obligated to vote this round,
// which excludes the moderator.
func (r Room) Reviewers() []string {
	out := make([]string, 0, len(r.Participants))
	for id := range r.Participants {
		if id == r.ModeratorID {
			continue
		}
		out = append(out, id)
	}
	return out
}

// SubmissionByOwner reports the submission owned by the given participant.
func (r Room) SubmissionByOwner(ownerID string) (Submission, bool) {
	for _, sub := range r.Submissions {
		if sub.OwnerID == ownerID {
			return sub, true
		}
	}
	return Submission{}, false
}

// Clone deep-copies the room so an aborted mutation never leaks partial
// writes into shared state.
func (r Room) Clone() Room {
	out := r
	out.Participants = make(map[string]User, len(r.Participants))
	for id, u := range r.Participants {
		out.Participants[id] = u
	}
	out.Submissions = make(map[string]Submission, len(r.Submissions))
	for id, s := range r.Submissions {
		out.Submissions[id] = s.Clone()
	}
	return out
}
