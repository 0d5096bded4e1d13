// Package assign computes the reviewer distribution for a round. The
// algorithm is greedy least-loaded with deterministic tie-breaking, so the
// same input always yields the same assignment.
package assign

import (
	"errors"
	"sort"

	"github.com/berkist/linkroyale/core/internal/model"
)

var ErrInsufficientSubmissions = errors.New("at least two submissions required")

// TargetReviewers is the cap on reviewers per submission.
const TargetReviewers = 3

// Reviewers distributes reviewers over submissions and returns the
// assignment keyed by submission ID.
//
// Each submission gets k = min(3, |reviewers|-1) reviewers, never including
// its own owner. Submissions are processed in ascending ID order and
// candidates picked by lowest current load (ties by reviewer ID), which
// keeps the spread even: with a uniform k the most loaded reviewer ends at
// most one assignment above the least loaded.
func Reviewers(submissions map[string]model.Submission, reviewers []string) (map[string][]string, error) {
	if len(submissions) < 2 {
		return nil, ErrInsufficientSubmissions
	}

	k := min(TargetReviewers, len(reviewers)-1)
	if k < 1 {
		return nil, ErrInsufficientSubmissions
	}

	subIDs := make([]string, 0, len(submissions))
	for id := range submissions {
		subIDs = append(subIDs, id)
	}
	sort.Strings(subIDs)

	load := make(map[string]int, len(reviewers))
	for _, r := range reviewers {
		load[r] = 0
	}

	out := make(map[string][]string, len(subIDs))
	for _, subID := range subIDs {
		owner := submissions[subID].OwnerID

		candidates := make([]string, 0, len(reviewers))
		for _, r := range reviewers {
			if r != owner {
				candidates = append(candidates, r)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			if load[candidates[i]] != load[candidates[j]] {
				return load[candidates[i]] < load[candidates[j]]
			}
			return candidates[i] < candidates[j]
		})

		n := min(k, len(candidates))
		picked := append([]string(nil), candidates[:n]...)
		for _, r := range picked {
			load[r]++
		}
		out[subID] = picked
	}
	return out, nil
}
