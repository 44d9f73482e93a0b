// Package webhooks posts round summaries to configured HTTP endpoints.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"routeopt/internal/logging"
	"routeopt/internal/metrics"
	"routeopt/internal/opt"
)

const (
	DefaultMaxAttempts = 5
	queueSize          = 64
)

// Delivery is one pending POST of a payload to a URL.
type Delivery struct {
	ID        string
	EventType string
	URL       string
	Payload   []byte
	Attempts  int
}

// Worker delivers round summaries in the background, retrying failed posts
// with exponential backoff. It is an opt.ProgressSink.
type Worker struct {
	URLs        []string
	Secret      string
	MaxAttempts int
	HTTP        *http.Client
	Log         logr.Logger

	// backoff is replaced in tests.
	backoff func(attempts int) time.Duration

	queue    chan Delivery
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

var _ opt.ProgressSink = (*Worker)(nil)

func NewWorker(urls []string, secret string, maxAttempts int, log logr.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Worker{
		URLs:        urls,
		Secret:      secret,
		MaxAttempts: maxAttempts,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Log:         log,
		backoff:     nextBackoff,
		queue:       make(chan Delivery, queueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start runs the delivery loop until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				w.flush(ctx)
				return
			case d := <-w.queue:
				w.deliver(ctx, d)
			}
		}
	}()
}

// Stop makes one more attempt for each queued delivery, abandons pending
// retries and waits for the loop to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Worker) flush(ctx context.Context) {
	for {
		select {
		case d := <-w.queue:
			w.deliver(ctx, d)
		default:
			return
		}
	}
}

func (w *Worker) BoardUpdated(context.Context, opt.Progress) {}

// RoundFinished queues the summary for every URL. A full queue drops the
// notification rather than stalling the scheduler.
func (w *Worker) RoundFinished(_ context.Context, s opt.RoundSummary) {
	if len(w.URLs) == 0 {
		return
	}
	id := uuid.NewString()
	body, err := json.Marshal(map[string]any{
		"id":    id,
		"type":  "round.finished",
		"runId": s.RunID,
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"data":  s,
	})
	if err != nil {
		w.Log.Error(err, "Failed to encode round webhook", "round", s.Round)
		return
	}
	for _, u := range w.URLs {
		d := Delivery{ID: id, EventType: "round.finished", URL: u, Payload: body}
		select {
		case w.queue <- d:
		default:
			metrics.WebhookDeliveries.WithLabelValues(metrics.DeliveryDropped).Inc()
			w.Log.Info("Webhook queue full, dropping notification", "url", u, "round", s.Round)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, d Delivery) {
	log := w.Log.WithValues("id", d.ID, "url", d.URL)
	for {
		d.Attempts++
		err := w.post(ctx, d)
		if err == nil {
			metrics.WebhookDeliveries.WithLabelValues(metrics.DeliveryDelivered).Inc()
			log.V(logging.DEBUG).Info("Webhook delivered", "attempts", d.Attempts)
			return
		}
		if d.Attempts >= w.MaxAttempts {
			metrics.WebhookDeliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
			log.Error(err, "Failed to deliver webhook, giving up", "attempts", d.Attempts)
			return
		}
		metrics.WebhookDeliveries.WithLabelValues(metrics.DeliveryRetried).Inc()
		log.V(logging.VERBOSE).Info("Webhook delivery failed, retrying", "attempts", d.Attempts, "reason", err.Error())
		timer := time.NewTimer(w.backoff(d.Attempts - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-w.stop:
			timer.Stop()
			metrics.WebhookDeliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
			log.Info("Worker stopping, giving up webhook delivery", "attempts", d.Attempts)
			return
		case <-timer.C:
		}
	}
}

func (w *Worker) post(ctx context.Context, d Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	req.Header.Set("X-Delivery-Id", d.ID)
	if w.Secret != "" {
		req.Header.Set(SignatureHeader, SignHMAC(w.Secret, d.Payload))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Minute {
		base = time.Minute
	}
	return base
}
