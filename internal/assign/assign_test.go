package assign

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkist/linkroyale/core/internal/model"
)

func submissionsFor(owners ...string) map[string]model.Submission {
	out := make(map[string]model.Submission, len(owners))
	for i, owner := range owners {
		id := fmt.Sprintf("sub-%02d", i)
		out[id] = model.Submission{ID: id, OwnerID: owner}
	}
	return out
}

func TestReviewersRejectsSmallRounds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		submissions map[string]model.Submission
		reviewers   []string
	}{
		{
			name:        "no submissions",
			submissions: map[string]model.Submission{},
			reviewers:   []string{"a", "b", "c"},
		},
		{
			name:        "single submission",
			submissions: submissionsFor("a"),
			reviewers:   []string{"a", "b", "c"},
		},
		{
			name:        "single reviewer",
			submissions: submissionsFor("a", "b"),
			reviewers:   []string{"a"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Reviewers(tc.submissions, tc.reviewers)
			assert.ErrorIs(t, err, ErrInsufficientSubmissions)
		})
	}
}

func TestReviewersNeverAssignsOwner(t *testing.T) {
	t.Parallel()

	reviewers := []string{"a", "b", "c", "d", "e", "f"}
	subs := submissionsFor(reviewers...)

	assignment, err := Reviewers(subs, reviewers)
	require.NoError(t, err)

	for subID, voters := range assignment {
		owner := subs[subID].OwnerID
		assert.NotContains(t, voters, owner, "submission %s", subID)
	}
}

func TestReviewersCapsAtThree(t *testing.T) {
	t.Parallel()

	reviewers := []string{"a", "b", "c", "d", "e", "f"}
	subs := submissionsFor(reviewers...)

	assignment, err := Reviewers(subs, reviewers)
	require.NoError(t, err)

	require.Len(t, assignment, len(subs))
	for subID, voters := range assignment {
		assert.Len(t, voters, TargetReviewers, "submission %s", subID)
	}
}

func TestReviewersShrinksWithSmallRooms(t *testing.T) {
	t.Parallel()

	// Three reviewers, all submitted: k = min(3, 3-1) = 2.
	reviewers := []string{"a", "b", "c"}
	subs := submissionsFor(reviewers...)

	assignment, err := Reviewers(subs, reviewers)
	require.NoError(t, err)

	for subID, voters := range assignment {
		assert.Len(t, voters, 2, "submission %s", subID)
	}
}

func TestReviewersSpreadsLoadEvenly(t *testing.T) {
	t.Parallel()

	reviewers := []string{"a", "b", "c", "d", "e", "f", "g"}
	subs := submissionsFor(reviewers...)

	assignment, err := Reviewers(subs, reviewers)
	require.NoError(t, err)

	load := make(map[string]int, len(reviewers))
	for _, r := range reviewers {
		load[r] = 0
	}
	for _, voters := range assignment {
		for _, v := range voters {
			load[v]++
		}
	}

	minLoad, maxLoad := len(subs), 0
	for _, n := range load {
		minLoad = min(minLoad, n)
		maxLoad = max(maxLoad, n)
	}
	assert.LessOrEqual(t, maxLoad-minLoad, 1, "load spread: %v", load)
}

func TestReviewersIsDeterministic(t *testing.T) {
	t.Parallel()

	reviewers := []string{"e", "c", "a", "d", "b"}
	subs := submissionsFor("a", "b", "c", "d")

	first, err := Reviewers(subs, reviewers)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Reviewers(subs, reviewers)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestReviewersNonSubmitterStillAssigned(t *testing.T) {
	t.Parallel()

	// "d" joined but never submitted. Voting is still an obligation.
	reviewers := []string{"a", "b", "c", "d"}
	subs := submissionsFor("a", "b", "c")

	assignment, err := Reviewers(subs, reviewers)
	require.NoError(t, err)

	assigned := make(map[string]bool)
	for _, voters := range assignment {
		for _, v := range voters {
			assigned[v] = true
		}
	}
	assert.True(t, assigned["d"], "non-submitting reviewer must carry load")
}
