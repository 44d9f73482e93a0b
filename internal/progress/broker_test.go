package progress

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	run := "r1"
	ch := b.Subscribe(run)

	evt := Event{Type: EventRoundFinished, RunID: run}
	b.Publish(run, evt)
	b.Publish("other-run", Event{Type: EventBoardUpdated})

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected event from another run: %+v", got)
	default:
	}

	b.Unsubscribe(run, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if n := b.Subscribers(run); n != 0 {
		t.Fatalf("want no subscribers, got %d", n)
	}
	// a second unsubscribe is a no-op
	b.Unsubscribe(run, ch)
}

func TestBrokerDropsForSlowSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("r", Event{Type: EventBoardUpdated})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	if len(ch) != cap(ch) {
		t.Fatalf("want a full buffer, got %d/%d", len(ch), cap(ch))
	}
}
