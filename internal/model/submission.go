package model

import "time"

const (
	// PassScore is the explicit "no opinion / timed out" vote.
	PassScore = 0
	MaxScore  = 10
)

func ValidScore(score int) bool {
	return score >= PassScore && score <= MaxScore
}

// Submission is one participant's link entry plus collected scores.
type Submission struct {
	ID          string
	OwnerID     string
	URL         string
	Description string

	// Votes maps voter ID to score. Keys are always a subset of
	// AssignedVoters.
	Votes map[string]int

	// AssignedVoters is fixed exactly once, at the OPEN -> VOTING
	// transition, and immutable afterward. Never contains OwnerID.
	AssignedVoters []string

	// Commentary is the optional text from the external commentary
	// collaborator. Single writer (moderator path), so it is written
	// with a plain set.
	Commentary string

	CreatedAt time.Time
}

func (s Submission) Assigned(voterID string) bool {
	for _, id := range s.AssignedVoters {
		if id == voterID {
			return true
		}
	}
	return false
}

// AverageScore averages all collected votes, counting explicit passes as
// zero. Returns 0 for a submission nobody scored.
func (s Submission) AverageScore() float64 {
	if len(s.Votes) == 0 {
		return 0
	}
	total := 0
	for _, score := range s.Votes {
		total += score
	}
	return float64(total) / float64(len(s.Votes))
}

func (s Submission) Clone() Submission {
	out := s
	out.Votes = make(map[string]int, len(s.Votes))
	for id, score := range s.Votes {
		out.Votes[id] = score
	}
	out.AssignedVoters = append([]string(nil), s.AssignedVoters...)
	return out
}
