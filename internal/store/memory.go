package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"routeopt/internal/opt"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu     sync.Mutex
	rounds []RoundRecord // in insertion order
	byID   map[string]int
	now    func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{byID: map[string]int{}, now: time.Now}
}

func (m *Memory) SaveRound(_ context.Context, s opt.RoundSummary) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.byID[id] = len(m.rounds)
	m.rounds = append(m.rounds, RoundRecord{ID: id, RecordedAt: m.now().UTC(), Summary: s})
	return id, nil
}

func (m *Memory) ListRounds(_ context.Context, runID string, limit int) ([]RoundRecord, error) {
	limit = normalizeLimit(limit)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []RoundRecord{}
	for i := len(m.rounds) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.rounds[i]
		if runID != "" && r.Summary.RunID != runID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) GetRound(_ context.Context, id string) (RoundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return RoundRecord{}, ErrNotFound
	}
	return m.rounds[i], nil
}

func (m *Memory) Ping(context.Context) error { return nil }
