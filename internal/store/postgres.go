package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"routeopt/internal/opt"
)

type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS round_summaries (
    id                 uuid PRIMARY KEY,
    run_id             text NOT NULL,
    round              integer NOT NULL,
    recorded_at        timestamptz NOT NULL DEFAULT now(),
    update_strategy    text NOT NULL,
    selection_strategy text NOT NULL,
    improved           boolean NOT NULL,
    interrupted        boolean NOT NULL,
    commits            integer NOT NULL,
    vias_before        integer NOT NULL,
    vias_after         integer NOT NULL,
    weighted_before    double precision NOT NULL,
    weighted_after     double precision NOT NULL,
    summary            jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS round_summaries_run_idx ON round_summaries (run_id, recorded_at DESC);
`

// Migrate creates the round history table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) SaveRound(ctx context.Context, s opt.RoundSummary) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	id := uuid.New()
	_, err = p.db.ExecContext(ctx, `INSERT INTO round_summaries (id, run_id, round, recorded_at, update_strategy, selection_strategy, improved, interrupted, commits, vias_before, vias_after, weighted_before, weighted_after, summary) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		id, s.RunID, s.Round, time.Now().UTC(), string(s.UpdateStrategy), string(s.SelectionStrategy), s.Improved, s.Interrupted, s.Commits,
		s.ViasBefore, s.ViasAfter, s.WeightedLengthBefore, s.WeightedLengthAfter, string(data))
	if err != nil {
		return "", fmt.Errorf("store: save round %d: %w", s.Round, err)
	}
	return id.String(), nil
}

func (p *Postgres) ListRounds(ctx context.Context, runID string, limit int) ([]RoundRecord, error) {
	limit = normalizeLimit(limit)
	var (
		rows *sql.Rows
		err  error
	)
	if runID != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, recorded_at, summary FROM round_summaries WHERE run_id=$1 ORDER BY recorded_at DESC, round DESC LIMIT $2`, runID, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, recorded_at, summary FROM round_summaries ORDER BY recorded_at DESC, round DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RoundRecord{}
	for rows.Next() {
		rec, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRound(ctx context.Context, id string) (RoundRecord, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return RoundRecord{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT id::text, recorded_at, summary FROM round_summaries WHERE id=$1`, uid)
	rec, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RoundRecord{}, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(s scanner) (RoundRecord, error) {
	var (
		rec RoundRecord
		raw []byte
	)
	if err := s.Scan(&rec.ID, &rec.RecordedAt, &raw); err != nil {
		return RoundRecord{}, err
	}
	if err := json.Unmarshal(raw, &rec.Summary); err != nil {
		return RoundRecord{}, fmt.Errorf("store: decode round %s: %w", rec.ID, err)
	}
	return rec, nil
}
