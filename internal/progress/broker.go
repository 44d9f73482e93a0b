// Package progress fans scheduler progress out to subscribers, in process or
// over Redis Pub/Sub.
package progress

import (
	"sync"
	"time"

	"routeopt/internal/opt"
)

// Event types.
const (
	EventBoardUpdated  = "board.updated"
	EventRoundFinished = "round.finished"
)

// Event is one progress notification. Exactly one of Board and Round is set.
type Event struct {
	Type  string            `json:"type"`
	RunID string            `json:"runId"`
	Time  time.Time         `json:"time"`
	Board *opt.Progress     `json:"board,omitempty"`
	Round *opt.RoundSummary `json:"round,omitempty"`
}

// EventBroker delivers events published for a run to that run's subscribers.
type EventBroker interface {
	Subscribe(runID string) chan Event
	Unsubscribe(runID string, ch chan Event)
	Publish(runID string, evt Event)
}

// Broker is the in-process EventBroker. Slow subscribers miss events rather
// than block the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

var _ EventBroker = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

func (b *Broker) Publish(runID string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers returns the number of subscribers of a run.
func (b *Broker) Subscribers(runID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[runID])
}
