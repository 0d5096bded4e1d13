// Package store defines the state-store contract the rest of the engine is
// written against. Two backends satisfy it: an in-process one for a single
// server instance and a redis one with native conditional writes. The
// backend is chosen once at startup; nothing above this package knows which
// one is running.
package store

import (
	"context"
	"errors"

	"github.com/berkist/linkroyale/core/internal/model"
)

var (
	ErrNotFound      = errors.New("room not found")
	ErrAlreadyExists = errors.New("room already exists")
	// ErrConflictExhausted means the bounded retry budget of a transaction
	// ran out under contention. Retryable by the caller; never data loss.
	ErrConflictExhausted = errors.New("transaction retries exhausted")
	ErrUnavailable       = errors.New("backend unavailable")
)

// PathKind names the conflict unit of a mutation. Transactions lock or
// watch only the state their path covers, so unrelated client actions do
// not produce false conflicts.
type PathKind int

const (
	// KindMeta covers status flags, the deadline and commentary text.
	// Single logical writer (the moderator path), so plain Set is legal.
	KindMeta PathKind = iota
	// KindParticipants covers the participants map.
	KindParticipants
	// KindSubmissions covers the submissions map.
	KindSubmissions
	// KindVote covers one vote cell. Two voters, or two submissions,
	// never share a cell, so concurrent votes cannot contend.
	KindVote
	// KindLifecycle covers meta and submissions together. Used only by
	// round transitions, which must flip the status and write reviewer
	// assignments in one commit.
	KindLifecycle
)

type Path struct {
	Kind         PathKind
	SubmissionID string
	VoterID      string
}

func MetaPath() Path         { return Path{Kind: KindMeta} }
func ParticipantsPath() Path { return Path{Kind: KindParticipants} }
func SubmissionsPath() Path  { return Path{Kind: KindSubmissions} }
func LifecyclePath() Path    { return Path{Kind: KindLifecycle} }
func VotePath(submissionID, voterID string) Path {
	return Path{Kind: KindVote, SubmissionID: submissionID, VoterID: voterID}
}

// Store is the persistence boundary of the engine.
//
// Transact runs a read-compute-write cycle against the given path. The
// apply function receives the current state and mutates it in place; it may
// only touch fields the path covers. An error from apply aborts the cycle
// with nothing written. Under contention the cycle retries with bounded
// attempts and exponential backoff before giving up with
// ErrConflictExhausted.
//
// Set is the unguarded variant, permitted only for KindMeta-shaped fields
// that have a single logical writer.
type Store interface {
	Create(ctx context.Context, room model.Room) error
	Get(ctx context.Context, id model.RoomID) (model.Room, error)
	Delete(ctx context.Context, id model.RoomID) error
	Transact(ctx context.Context, id model.RoomID, path Path, apply func(*model.Room) error) (model.Room, error)
	Set(ctx context.Context, id model.RoomID, path Path, apply func(*model.Room) error) (model.Room, error)
}

// CommitSink receives every committed state, in commit order per room.
// The subscription hub implements it.
type CommitSink interface {
	StateCommitted(id model.RoomID, room model.Room)
}
