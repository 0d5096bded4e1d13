// Package infra_postgres_archive keeps final standings of closed rounds.
// This is a write-once history table, deliberately outside the state store:
// the live engine never reads it and its failures never fail a transition.
package infra_postgres_archive

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/berkist/linkroyale/core/internal/model"
	usecase_round "github.com/berkist/linkroyale/core/internal/usecase/round"
)

type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

type standingDTO struct {
	RoomCode     string  `db:"room_code"`
	Place        int     `db:"place"`
	SubmissionID string  `db:"submission_id"`
	OwnerID      string  `db:"owner_id"`
	OwnerName    string  `db:"owner_name"`
	URL          string  `db:"url"`
	Average      float64 `db:"average_score"`
	VoteCount    int     `db:"vote_count"`
}

const schema = `
CREATE TABLE IF NOT EXISTS round_results (
	id            BIGSERIAL PRIMARY KEY,
	room_code     TEXT        NOT NULL,
	place         INT         NOT NULL,
	submission_id TEXT        NOT NULL,
	owner_id      TEXT        NOT NULL,
	owner_name    TEXT        NOT NULL,
	url           TEXT        NOT NULL,
	average_score DOUBLE PRECISION NOT NULL,
	vote_count    INT         NOT NULL,
	archived_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS round_results_room_code_idx ON round_results (room_code);
`

func (d *Driver) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

func (d *Driver) SaveStandings(ctx context.Context, roomID model.RoomID, standings []usecase_round.Standing) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO round_results
			(room_code, place, submission_id, owner_id, owner_name, url, average_score, vote_count)
		VALUES
			(:room_code, :place, :submission_id, :owner_id, :owner_name, :url, :average_score, :vote_count)
	`
	for _, s := range standings {
		dto := standingDTO{
			RoomCode:     string(roomID),
			Place:        s.Place,
			SubmissionID: s.SubmissionID,
			OwnerID:      s.OwnerID,
			OwnerName:    s.OwnerName,
			URL:          s.URL,
			Average:      s.Average,
			VoteCount:    s.VoteCount,
		}
		if _, err := tx.NamedExecContext(ctx, query, dto); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *Driver) Standings(ctx context.Context, roomID model.RoomID) ([]usecase_round.Standing, error) {
	var dtos []standingDTO

	query := `
		SELECT room_code, place, submission_id, owner_id, owner_name, url, average_score, vote_count
		FROM round_results
		WHERE room_code = $1
		ORDER BY place
	`
	if err := d.db.SelectContext(ctx, &dtos, query, string(roomID)); err != nil {
		return nil, err
	}

	standings := make([]usecase_round.Standing, 0, len(dtos))
	for _, dto := range dtos {
		standings = append(standings, usecase_round.Standing{
			Place:        dto.Place,
			SubmissionID: dto.SubmissionID,
			OwnerID:      dto.OwnerID,
			OwnerName:    dto.OwnerName,
			URL:          dto.URL,
			Average:      dto.Average,
			VoteCount:    dto.VoteCount,
		})
	}
	return standings, nil
}
