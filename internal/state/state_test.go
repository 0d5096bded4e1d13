package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkist/linkroyale/core/internal/model"
)

func storedRoom() model.Room {
	created := time.UnixMilli(1700000000000)
	return model.Room{
		ID:          "4217",
		Status:      model.StatusVoting,
		ModeratorID: "mod",
		Participants: map[string]model.User{
			"mod":   {ID: "mod", DisplayName: "Moderator", IsModerator: true},
			"alice": {ID: "alice", DisplayName: "Alice", Secret: "s3cret"},
		},
		Submissions: map[string]model.Submission{
			"sub-1": {
				ID:             "sub-1",
				OwnerID:        "alice",
				URL:            "https://example.com/a",
				Description:    "a link",
				AssignedVoters: []string{"bob"},
				Votes:          map[string]int{"bob": 7},
				CreatedAt:      created,
			},
		},
		Deadline:    created.Add(5 * time.Minute),
		CreatedAt:   created,
		LastUpdated: created.Add(time.Minute),
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	want := storedRoom()

	meta, err := EncodeMeta(want)
	require.NoError(t, err)
	participants, err := EncodeParticipants(want)
	require.NoError(t, err)
	submissions, err := EncodeSubmissions(want)
	require.NoError(t, err)

	votes := map[string]map[string]int{
		"sub-1": {"bob": 7},
	}
	got, err := Decode(meta, participants, submissions, votes)
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.ModeratorID, got.ModeratorID)
	assert.Equal(t, want.Participants, got.Participants)
	assert.Equal(t, want.Submissions, got.Submissions)
	assert.True(t, want.Deadline.Equal(got.Deadline))
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestSubmissionsDocExcludesVotes(t *testing.T) {
	t.Parallel()

	doc, err := EncodeSubmissions(storedRoom())
	require.NoError(t, err)

	// Vote cells have their own storage. Leaking them into the shared
	// submissions document would put voters back in contention.
	assert.NotContains(t, string(doc), `"votes"`)
	assert.NotContains(t, string(doc), `"bob":7`)
}

func TestDecodeToleratesAbsentCollections(t *testing.T) {
	t.Parallel()

	meta, err := EncodeMeta(model.Room{
		ID:          "4217",
		Status:      model.StatusOpen,
		ModeratorID: "mod",
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	})
	require.NoError(t, err)

	room, err := Decode(meta, nil, nil, nil)
	require.NoError(t, err)

	assert.NotNil(t, room.Participants)
	assert.NotNil(t, room.Submissions)
	assert.True(t, room.Deadline.IsZero())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name              string
		meta, parts, subs string
	}{
		{name: "broken meta", meta: `{nope`, parts: `{}`, subs: `{}`},
		{name: "broken participants", meta: `{"id":"4217","status":"OPEN"}`, parts: `[1,2]`, subs: `{}`},
		{name: "broken submissions", meta: `{"id":"4217","status":"OPEN"}`, parts: `{}`, subs: `"oops"`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tc.meta), []byte(tc.parts), []byte(tc.subs), nil)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestNormalizeRepairsNilMaps(t *testing.T) {
	t.Parallel()

	room := model.Room{
		ID:     "4217",
		Status: model.StatusOpen,
		Submissions: map[string]model.Submission{
			"sub-1": {ID: "sub-1", OwnerID: "alice"},
		},
	}

	require.NoError(t, Normalize(&room))

	assert.NotNil(t, room.Participants)
	assert.NotNil(t, room.Submissions["sub-1"].Votes)
}

func TestNormalizeRejectsInvalidState(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		room model.Room
	}{
		{name: "empty id", room: model.Room{Status: model.StatusOpen}},
		{name: "unknown status", room: model.Room{ID: "4217", Status: "LIMBO"}},
		{
			name: "submission without owner",
			room: model.Room{
				ID:     "4217",
				Status: model.StatusOpen,
				Submissions: map[string]model.Submission{
					"sub-1": {ID: "sub-1"},
				},
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			room := tc.room
			assert.ErrorIs(t, Normalize(&room), ErrMalformed)
		})
	}
}
