// Package infra_redis_state stores room state in redis, one key family per
// room, and implements transactions with WATCH/MULTI conditional writes.
//
// Layout:
//
//	room:{id}:meta           JSON meta document
//	room:{id}:participants   JSON map userID -> user
//	room:{id}:submissions    JSON map submissionID -> submission (no votes)
//	room:{id}:votes:{subID}  hash voterID -> score
//	room:{id}:updated        unix milliseconds of the last commit
//
// A transaction watches exactly the keys its path covers, so mutations of
// unrelated sub-paths never abort each other. A vote is a single HSET of a
// distinct hash field and needs no watch at all.
package infra_redis_state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis"

	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/state"
	"github.com/berkist/linkroyale/core/internal/store"
)

const (
	defaultAttempts = 5
	initialBackoff  = 20 * time.Millisecond
	maxBackoff      = 500 * time.Millisecond
)

type Driver struct {
	client   *redis.Client
	sink     store.CommitSink
	attempts int
}

type Option func(*Driver)

func WithAttempts(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.attempts = n
		}
	}
}

func New(client *redis.Client, opts ...Option) *Driver {
	d := &Driver{
		client:   client,
		attempts: defaultAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) SetCommitSink(sink store.CommitSink) {
	d.sink = sink
}

func keyMeta(id model.RoomID) string         { return "room:" + string(id) + ":meta" }
func keyParticipants(id model.RoomID) string { return "room:" + string(id) + ":participants" }
func keySubmissions(id model.RoomID) string  { return "room:" + string(id) + ":submissions" }
func keyUpdated(id model.RoomID) string      { return "room:" + string(id) + ":updated" }
func keyVotes(id model.RoomID, submissionID string) string {
	return "room:" + string(id) + ":votes:" + submissionID
}

func (d *Driver) Create(_ context.Context, room model.Room) error {
	if err := state.Normalize(&room); err != nil {
		return err
	}

	meta, err := state.EncodeMeta(room)
	if err != nil {
		return err
	}
	participants, err := state.EncodeParticipants(room)
	if err != nil {
		return err
	}
	submissions, err := state.EncodeSubmissions(room)
	if err != nil {
		return err
	}

	ok, err := d.client.SetNX(keyMeta(room.ID), meta, 0).Result()
	if err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}
	if !ok {
		return store.ErrAlreadyExists
	}

	_, err = d.client.Pipelined(func(pipe redis.Pipeliner) error {
		pipe.Set(keyParticipants(room.ID), participants, 0)
		pipe.Set(keySubmissions(room.ID), submissions, 0)
		pipe.Set(keyUpdated(room.ID), time.Now().UnixMilli(), 0)
		return nil
	})
	if err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}
	return nil
}

func (d *Driver) Get(_ context.Context, id model.RoomID) (model.Room, error) {
	return d.load(d.client, id)
}

func (d *Driver) Delete(_ context.Context, id model.RoomID) error {
	room, err := d.load(d.client, id)
	if err != nil {
		return err
	}

	keys := []string{keyMeta(id), keyParticipants(id), keySubmissions(id), keyUpdated(id)}
	for subID := range room.Submissions {
		keys = append(keys, keyVotes(id, subID))
	}
	if err := d.client.Del(keys...).Err(); err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}
	return nil
}

func (d *Driver) Transact(ctx context.Context, id model.RoomID, path store.Path, apply func(*model.Room) error) (model.Room, error) {
	// A vote touches one hash field nobody else writes, so it commits
	// without optimistic locking and cannot conflict with other voters.
	if path.Kind == store.KindVote {
		return d.commitVote(id, path, apply)
	}

	backoff := initialBackoff
	for attempt := 0; attempt < d.attempts; attempt++ {
		room, err := d.tryTransact(id, path, apply)
		if err == nil {
			d.notify(room)
			return room, nil
		}
		if err != redis.TxFailedErr {
			return model.Room{}, err
		}
		select {
		case <-ctx.Done():
			return model.Room{}, store.ErrConflictExhausted
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return model.Room{}, store.ErrConflictExhausted
}

func (d *Driver) Set(_ context.Context, id model.RoomID, path store.Path, apply func(*model.Room) error) (model.Room, error) {
	room, err := d.load(d.client, id)
	if err != nil {
		return model.Room{}, err
	}
	prev := room.Clone()
	if err := apply(&room); err != nil {
		return model.Room{}, err
	}
	if err := state.Normalize(&room); err != nil {
		return model.Room{}, err
	}
	room.LastUpdated = time.Now()

	_, err = d.client.Pipelined(func(pipe redis.Pipeliner) error {
		return d.write(pipe, path, prev, room)
	})
	if err != nil {
		return model.Room{}, errors.Join(store.ErrUnavailable, err)
	}
	d.notify(room)
	return room, nil
}

func (d *Driver) tryTransact(id model.RoomID, path store.Path, apply func(*model.Room) error) (model.Room, error) {
	var committed model.Room

	err := d.client.Watch(func(tx *redis.Tx) error {
		room, err := d.load(tx, id)
		if err != nil {
			return err
		}
		prev := room.Clone()

		if err := apply(&room); err != nil {
			return err
		}
		if err := state.Normalize(&room); err != nil {
			return err
		}
		room.LastUpdated = time.Now()

		_, err = tx.TxPipelined(func(pipe redis.Pipeliner) error {
			return d.write(pipe, path, prev, room)
		})
		if err != nil {
			if err == redis.TxFailedErr {
				return err
			}
			return errors.Join(store.ErrUnavailable, err)
		}
		committed = room
		return nil
	}, watchKeys(id, path)...)

	// Load errors arrive pre-mapped and apply errors must reach the
	// caller untouched, so nothing is rewrapped here.
	if err != nil {
		return model.Room{}, err
	}
	return committed, nil
}

func (d *Driver) commitVote(id model.RoomID, path store.Path, apply func(*model.Room) error) (model.Room, error) {
	room, err := d.load(d.client, id)
	if err != nil {
		return model.Room{}, err
	}
	if err := apply(&room); err != nil {
		return model.Room{}, err
	}

	sub, ok := room.Submissions[path.SubmissionID]
	if !ok {
		return model.Room{}, store.ErrNotFound
	}
	score, ok := sub.Votes[path.VoterID]
	if !ok {
		return model.Room{}, fmt.Errorf("%w: vote cell %s/%s not written by apply",
			state.ErrMalformed, path.SubmissionID, path.VoterID)
	}

	room.LastUpdated = time.Now()
	_, err = d.client.Pipelined(func(pipe redis.Pipeliner) error {
		pipe.HSet(keyVotes(id, path.SubmissionID), path.VoterID, score)
		pipe.Set(keyUpdated(id), room.LastUpdated.UnixMilli(), 0)
		return nil
	})
	if err != nil {
		return model.Room{}, errors.Join(store.ErrUnavailable, err)
	}
	d.notify(room)
	return room, nil
}

func (d *Driver) write(pipe redis.Pipeliner, path store.Path, prev, next model.Room) error {
	writeMeta := path.Kind == store.KindMeta || path.Kind == store.KindLifecycle
	writeSubs := path.Kind == store.KindSubmissions || path.Kind == store.KindLifecycle

	// Commentary lives in the submissions document but is set through
	// the meta path (single writer). Persist it when it changed.
	if path.Kind == store.KindMeta && path.SubmissionID != "" {
		writeSubs = true
	}

	if writeMeta {
		meta, err := state.EncodeMeta(next)
		if err != nil {
			return err
		}
		pipe.Set(keyMeta(next.ID), meta, 0)
	}
	if path.Kind == store.KindParticipants {
		participants, err := state.EncodeParticipants(next)
		if err != nil {
			return err
		}
		pipe.Set(keyParticipants(next.ID), participants, 0)
	}
	if writeSubs {
		submissions, err := state.EncodeSubmissions(next)
		if err != nil {
			return err
		}
		pipe.Set(keySubmissions(next.ID), submissions, 0)

		// A lifecycle commit that dropped submissions (soft reset) must
		// drop their vote cells with them.
		for subID := range prev.Submissions {
			if _, kept := next.Submissions[subID]; !kept {
				pipe.Del(keyVotes(next.ID, subID))
			}
		}
	}
	pipe.Set(keyUpdated(next.ID), next.LastUpdated.UnixMilli(), 0)
	return nil
}

func watchKeys(id model.RoomID, path store.Path) []string {
	switch path.Kind {
	case store.KindMeta:
		return []string{keyMeta(id)}
	case store.KindParticipants:
		return []string{keyParticipants(id)}
	case store.KindSubmissions:
		return []string{keySubmissions(id)}
	case store.KindLifecycle:
		return []string{keyMeta(id), keySubmissions(id)}
	}
	return nil
}

func (d *Driver) load(c redis.Cmdable, id model.RoomID) (model.Room, error) {
	meta, err := c.Get(keyMeta(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.Room{}, store.ErrNotFound
		}
		return model.Room{}, errors.Join(store.ErrUnavailable, err)
	}

	participants, err := valueOrEmpty(c.Get(keyParticipants(id)))
	if err != nil {
		return model.Room{}, err
	}
	submissions, err := valueOrEmpty(c.Get(keySubmissions(id)))
	if err != nil {
		return model.Room{}, err
	}

	votes := make(map[string]map[string]int)
	if len(submissions) > 0 {
		var subIDs map[string]json.RawMessage
		if err := json.Unmarshal(submissions, &subIDs); err != nil {
			return model.Room{}, fmt.Errorf("%w: submissions: %w", state.ErrMalformed, err)
		}
		for subID := range subIDs {
			cells, err := c.HGetAll(keyVotes(id, subID)).Result()
			if err != nil {
				return model.Room{}, errors.Join(store.ErrUnavailable, err)
			}
			if len(cells) == 0 {
				continue
			}
			parsed := make(map[string]int, len(cells))
			for voter, raw := range cells {
				score, err := strconv.Atoi(raw)
				if err != nil {
					return model.Room{}, fmt.Errorf("%w: vote %s/%s: %w", state.ErrMalformed, subID, voter, err)
				}
				parsed[voter] = score
			}
			votes[subID] = parsed
		}
	}

	room, err := state.Decode(meta, participants, submissions, votes)
	if err != nil {
		return model.Room{}, err
	}

	if millis, err := c.Get(keyUpdated(id)).Int64(); err == nil {
		room.LastUpdated = time.UnixMilli(millis)
	}
	return room, nil
}

func (d *Driver) notify(room model.Room) {
	if d.sink != nil {
		d.sink.StateCommitted(room.ID, room)
	}
}

func valueOrEmpty(cmd *redis.StringCmd) ([]byte, error) {
	b, err := cmd.Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Join(store.ErrUnavailable, err)
	}
	return b, nil
}
