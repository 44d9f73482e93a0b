package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeopt/internal/opt"
)

func newTestWorker(t *testing.T, url string, maxAttempts int) *Worker {
	t.Helper()
	w := NewWorker([]string{url}, "secret", maxAttempts, testr.New(t))
	w.backoff = func(int) time.Duration { return time.Millisecond }
	return w
}

func TestWorkerDeliversSignedSummary(t *testing.T) {
	var (
		mu      sync.Mutex
		body    []byte
		sig, ty string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		sig = r.Header.Get(SignatureHeader)
		ty = r.Header.Get("X-Event-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := newTestWorker(t, srv.URL, 3)
	w.Start(context.Background())
	w.RoundFinished(context.Background(), opt.RoundSummary{RunID: "run-1", Round: 4, Improved: true})
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, body)
	assert.Equal(t, "round.finished", ty)
	assert.True(t, VerifyHMAC("secret", body, sig), "signature must match body")

	var payload struct {
		RunID string           `json:"runId"`
		Data  opt.RoundSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "run-1", payload.RunID)
	assert.Equal(t, 4, payload.Data.Round)
}

func TestWorkerRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := newTestWorker(t, srv.URL, 3)
	w.Start(context.Background())
	w.RoundFinished(context.Background(), opt.RoundSummary{Round: 1})
	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()
	assert.EqualValues(t, 3, calls.Load())
}

func TestWorkerRecoversAfterFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := newTestWorker(t, srv.URL, 5)
	w.Start(context.Background())
	w.RoundFinished(context.Background(), opt.RoundSummary{Round: 1})
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()
	assert.EqualValues(t, 2, calls.Load())
}

func TestWorkerWithoutURLsIsNoop(t *testing.T) {
	w := NewWorker(nil, "", 0, testr.New(t))
	w.RoundFinished(context.Background(), opt.RoundSummary{Round: 1})
	assert.Empty(t, w.queue)
	assert.Equal(t, DefaultMaxAttempts, w.MaxAttempts)
}

func TestSignature(t *testing.T) {
	sig := SignHMAC("k", []byte("body"))
	assert.True(t, VerifyHMAC("k", []byte("body"), sig))
	assert.False(t, VerifyHMAC("other", []byte("body"), sig))
	assert.False(t, VerifyHMAC("k", []byte("body"), "not-hex"))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(-1))
	assert.Equal(t, 4*time.Second, nextBackoff(2))
	assert.Equal(t, time.Minute, nextBackoff(20))
}

func TestStopAbandonsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := newTestWorker(t, srv.URL, 5)
	w.backoff = func(int) time.Duration { return time.Hour }
	w.Start(context.Background())
	w.RoundFinished(context.Background(), opt.RoundSummary{Round: 1})
	w.RoundFinished(context.Background(), opt.RoundSummary{Round: 2})
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited for retry backoff")
	}
	assert.EqualValues(t, 2, calls.Load(), "each queued delivery gets exactly one attempt")
}
