package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-logr/logr"
	redis "github.com/redis/go-redis/v9"

	"routeopt/internal/logging"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so progress can be
// watched from other processes.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string
	log    logr.Logger

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

var _ EventBroker = (*RedisBroker)(nil)

// NewRedisBroker connects to the Redis server at url. Channels are named
// prefix + ":" + runID.
func NewRedisBroker(url, prefix string, log logr.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "routeopt:progress"
	}
	return &RedisBroker{rdb: redis.NewClient(opts), prefix: prefix, log: log, subs: map[chan Event]*redis.PubSub{}}, nil
}

// Ping checks the connection.
func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Subscribe(runID string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.channel(runID))
	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Error(err, "Failed to subscribe to progress channel", "channel", b.channel(runID))
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.V(logging.DEBUG).Info("Dropping malformed progress message", "channel", msg.Channel, "error", err.Error())
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the underlying subscription; ch is closed once its
// reader goroutine exits.
func (b *RedisBroker) Unsubscribe(_ string, ch chan Event) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(runID string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Error(err, "Failed to encode progress event", "type", evt.Type)
		return
	}
	if err := b.rdb.Publish(ctx, b.channel(runID), data).Err(); err != nil {
		b.log.Error(err, "Failed to publish progress event", "type", evt.Type, "channel", b.channel(runID))
	}
}

// Close unsubscribes everything and closes the client.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.rdb.Close()
}

func (b *RedisBroker) channel(runID string) string { return b.prefix + ":" + runID }
