package store

import (
	"context"
	"errors"
	"time"

	"routeopt/internal/opt"
)

// Store persists round summaries.
type Store interface {
	SaveRound(ctx context.Context, s opt.RoundSummary) (string, error)
	// ListRounds returns the newest rounds first. An empty runID lists every run.
	ListRounds(ctx context.Context, runID string, limit int) ([]RoundRecord, error)
	GetRound(ctx context.Context, id string) (RoundRecord, error)
	Ping(ctx context.Context) error
}

// RoundRecord is a stored round summary.
type RoundRecord struct {
	ID         string           `json:"id"`
	RecordedAt time.Time        `json:"recordedAt"`
	Summary    opt.RoundSummary `json:"summary"`
}

var ErrNotFound = errors.New("not found")

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
