package store

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr/testr"

	"routeopt/internal/opt"
)

func TestMemoryListNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if _, err := m.SaveRound(ctx, opt.RoundSummary{RunID: "a", Round: i}); err != nil {
			t.Fatalf("SaveRound: %v", err)
		}
	}
	if _, err := m.SaveRound(ctx, opt.RoundSummary{RunID: "b", Round: 1}); err != nil {
		t.Fatalf("SaveRound: %v", err)
	}

	got, err := m.ListRounds(ctx, "a", 2)
	if err != nil {
		t.Fatalf("ListRounds: %v", err)
	}
	if len(got) != 2 || got[0].Summary.Round != 3 || got[1].Summary.Round != 2 {
		t.Fatalf("unexpected rounds: %+v", got)
	}
	all, _ := m.ListRounds(ctx, "", 0)
	if len(all) != 4 || all[0].Summary.RunID != "b" {
		t.Fatalf("unexpected rounds across runs: %+v", all)
	}
	none, _ := m.ListRounds(ctx, "missing", 10)
	if none == nil || len(none) != 0 {
		t.Fatalf("want an empty non-nil slice, got %#v", none)
	}
}

func TestMemoryGetRound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id, _ := m.SaveRound(ctx, opt.RoundSummary{RunID: "a", Round: 7})
	rec, err := m.GetRound(ctx, id)
	if err != nil {
		t.Fatalf("GetRound: %v", err)
	}
	if rec.ID != id || rec.Summary.Round != 7 || rec.RecordedAt.IsZero() {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := m.GetRound(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestNormalizeLimit(t *testing.T) {
	for in, want := range map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit} {
		if got := normalizeLimit(in); got != want {
			t.Fatalf("normalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

type failingStore struct{ *Memory }

func (failingStore) SaveRound(context.Context, opt.RoundSummary) (string, error) {
	return "", errors.New("disk full")
}

func TestRecorder(t *testing.T) {
	m := NewMemory()
	r := &Recorder{Store: m, Log: testr.New(t)}
	r.BoardUpdated(context.Background(), opt.Progress{})
	r.RoundFinished(context.Background(), opt.RoundSummary{RunID: "x", Round: 2})
	got, _ := m.ListRounds(context.Background(), "x", 1)
	if len(got) != 1 || got[0].Summary.Round != 2 {
		t.Fatalf("round not recorded: %+v", got)
	}

	// failures are logged, not propagated
	(&Recorder{Store: failingStore{m}, Log: testr.New(t)}).RoundFinished(context.Background(), opt.RoundSummary{})
}
