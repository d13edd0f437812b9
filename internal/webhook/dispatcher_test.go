package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fastConfig(url string) Config {
	return Config{
		URL:            url,
		MaxRetries:     5,
		AttemptTimeout: time.Second,
		BaseDelay:      time.Millisecond,
		MaxDelay:       4 * time.Millisecond,
	}
}

func TestBackoff(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	assert.Equal(t, 1*time.Second, backoff(0, base, max))
	assert.Equal(t, 2*time.Second, backoff(1, base, max))
	assert.Equal(t, 4*time.Second, backoff(2, base, max))
	assert.Equal(t, 8*time.Second, backoff(3, base, max))
	assert.Equal(t, 16*time.Second, backoff(4, base, max))
	assert.Equal(t, 30*time.Second, backoff(5, base, max)) // capped
	assert.Equal(t, 30*time.Second, backoff(40, base, max))
	assert.Equal(t, 30*time.Second, backoff(80, base, max)) // shift overflow
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.AttemptTimeout)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
}

func TestDeliverSucceedsAfterRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 4 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "mint", payload.Type)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(fastConfig(srv.URL), discardLogger(), nil)
	d.deliverWithRetry(Payload{Type: "mint", Signature: "sig1", EventName: "TokensMinted"})

	assert.Equal(t, int32(4), attempts.Load())
}

func TestDeliverStopsAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDispatcher(fastConfig(srv.URL), discardLogger(), nil)
	d.deliverWithRetry(Payload{Type: "mint", Signature: "sig1"})

	// exhaustion is swallowed after exactly MaxRetries attempts
	assert.Equal(t, int32(5), attempts.Load())
}

func TestDeliverStopsOnFirstSuccess(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(fastConfig(srv.URL), discardLogger(), nil)
	d.deliverWithRetry(Payload{Type: "burn"})

	assert.Equal(t, int32(1), attempts.Load())
}

func TestDeliverNoopWithoutURL(t *testing.T) {
	d := NewDispatcher(Config{}, discardLogger(), nil)
	d.Deliver(Payload{Type: "mint"})
	assert.Empty(t, d.queue)
}

func TestDeliverDropsWhenQueueFull(t *testing.T) {
	cfg := fastConfig("http://127.0.0.1:1")
	cfg.QueueSize = 2
	d := NewDispatcher(cfg, discardLogger(), nil)

	// no workers running; the third enqueue must drop, not block
	done := make(chan struct{})
	go func() {
		d.Deliver(Payload{Signature: "a"})
		d.Deliver(Payload{Signature: "b"})
		d.Deliver(Payload{Signature: "c"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on a full queue")
	}
	assert.Len(t, d.queue, 2)
}

func TestRunDeliversQueuedPayloads(t *testing.T) {
	delivered := make(chan Payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		delivered <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(fastConfig(srv.URL), discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	d.Deliver(Payload{Type: "seize", Signature: "sig9", EventName: "TokensSeized"})

	select {
	case payload := <-delivered:
		assert.Equal(t, "sig9", payload.Signature)
	case <-time.After(2 * time.Second):
		t.Fatal("payload was not delivered")
	}

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
