package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeopt/internal/opt"
)

func TestPublisherForwardsEvents(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("run")
	p := NewPublisher(b, 0, 0, testr.New(t))
	defer p.Close()
	ctx := context.Background()

	p.BoardUpdated(ctx, opt.Progress{RunID: "run", Round: 1, Vias: 7})
	p.RoundFinished(ctx, opt.RoundSummary{RunID: "run", Round: 1, Commits: 2})

	evt := <-ch
	assert.Equal(t, EventBoardUpdated, evt.Type)
	require.NotNil(t, evt.Board)
	assert.Equal(t, 7, evt.Board.Vias)
	evt = <-ch
	assert.Equal(t, EventRoundFinished, evt.Type)
	require.NotNil(t, evt.Round)
	assert.Equal(t, 2, evt.Round.Commits)

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, 7, latest.Vias)
	sum, ok := p.LatestRound()
	require.True(t, ok)
	assert.Equal(t, 1, sum.Round)
}

func TestPublisherThrottlesBoardUpdates(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("run")
	// one token and practically no refill
	p := NewPublisher(b, 0.0001, 1, testr.New(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p.BoardUpdated(ctx, opt.Progress{RunID: "run", Vias: 10 - i})
	}
	p.RoundFinished(ctx, opt.RoundSummary{RunID: "run"})
	require.NoError(t, p.Close())

	assert.Len(t, ch, 2, "one board update and the summary")
	assert.EqualValues(t, 4, p.Throttled())
	latest, _ := p.Latest()
	assert.Equal(t, 6, latest.Vias, "snapshot keeps the newest sample even when throttled")
}

// stalledBroker blocks every Publish until release is closed and keeps what
// it was handed.
type stalledBroker struct {
	*Broker
	release chan struct{}

	mu        sync.Mutex
	published []Event
}

func (b *stalledBroker) Publish(_ string, evt Event) {
	<-b.release
	b.mu.Lock()
	b.published = append(b.published, evt)
	b.mu.Unlock()
}

func (b *stalledBroker) events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.published...)
}

func TestPublisherDoesNotBlockOnSlowBroker(t *testing.T) {
	b := &stalledBroker{Broker: NewBroker(), release: make(chan struct{})}
	p := NewPublisher(b, 0, 0, testr.New(t))
	ctx := context.Background()

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for i := 0; i < outboxSize+10; i++ {
			p.BoardUpdated(ctx, opt.Progress{RunID: "run", Vias: i})
		}
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("BoardUpdated blocked on a stalled broker")
	}
	assert.Positive(t, p.Overflowed())

	close(b.release)
	p.RoundFinished(ctx, opt.RoundSummary{RunID: "run", Round: 3})
	require.NoError(t, p.Close())

	events := b.events()
	require.NotEmpty(t, events)
	assert.Equal(t, EventRoundFinished, events[len(events)-1].Type, "queued events are published before Close returns")
	assert.EqualValues(t, outboxSize+10, int64(len(events)-1)+p.Overflowed())

	p.BoardUpdated(ctx, opt.Progress{RunID: "run", Vias: 1})
	latest, _ := p.Latest()
	assert.Equal(t, 1, latest.Vias)
	assert.Len(t, b.events(), len(events), "nothing is published after Close")
}

type countingSink struct{ boards, rounds int }

func (c *countingSink) BoardUpdated(context.Context, opt.Progress)      { c.boards++ }
func (c *countingSink) RoundFinished(context.Context, opt.RoundSummary) { c.rounds++ }

func TestTee(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	sink := Tee(a, nil, b)
	sink.BoardUpdated(context.Background(), opt.Progress{})
	sink.RoundFinished(context.Background(), opt.RoundSummary{})
	sink.RoundFinished(context.Background(), opt.RoundSummary{})
	assert.Equal(t, 1, a.boards)
	assert.Equal(t, 2, b.rounds)
}
