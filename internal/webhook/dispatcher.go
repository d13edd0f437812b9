package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"auditrelay/internal/ledger"
	"auditrelay/internal/platform/metrics"
)

// Payload is one outbound notification: the mapped action plus the raw
// decoded event fields. One POST per mapped event, never batched.
type Payload struct {
	Type      string                  `json:"type"`
	Signature string                  `json:"signature"`
	ProgramID string                  `json:"programId"`
	EventName string                  `json:"eventName"`
	Data      map[string]ledger.Value `json:"data"`
}

// Config carries the dispatcher knobs out of the environment. Zero values
// fall back to the documented defaults.
type Config struct {
	URL            string
	MaxRetries     int           // default 5
	AttemptTimeout time.Duration // default 10s
	QueueSize      int           // default 256
	Workers        int           // default 4

	// Backoff bounds; tests shrink these so retries run in milliseconds.
	BaseDelay time.Duration // default 1s
	MaxDelay  time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Dispatcher delivers payloads to the configured subscriber with bounded
// retries, decoupled from ingestion by a bounded queue and a fixed worker
// pool. Backlog and failure are observable (queue depth gauge, dead-letter
// and queue-full counters) rather than invisible.
type Dispatcher struct {
	cfg     Config
	queue   chan Payload
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:     cfg,
		queue:   make(chan Payload, cfg.QueueSize),
		client:  &http.Client{},
		logger:  logger,
		metrics: m,
	}
}

// Deliver enqueues a payload and returns immediately. With no target URL it
// is a no-op. A full queue drops the payload: a down subscriber must not
// build unbounded backlog, and the drop is counted.
func (d *Dispatcher) Deliver(payload Payload) {
	if d.cfg.URL == "" {
		return
	}
	select {
	case d.queue <- payload:
		d.gaugeDepth()
	default:
		if d.metrics != nil {
			d.metrics.WebhookQueueFull.Inc()
		}
		d.logger.Warn("webhook queue full, payload dropped",
			"event", payload.EventName,
			"signature", payload.Signature,
		)
	}
}

// Run consumes the queue until ctx is cancelled. A delivery that has started
// runs to completion (success or retry exhaustion) even across shutdown;
// cancellation only stops picking up new work.
func (d *Dispatcher) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case payload := <-d.queue:
					d.gaugeDepth()
					d.deliverWithRetry(payload)
				}
			}
		})
	}
	return g.Wait()
}

// deliverWithRetry attempts up to MaxRetries POSTs with capped exponential
// backoff between attempts (not after the last). Exhaustion is logged and
// swallowed; delivery failure never reaches the ingestion path.
func (d *Dispatcher) deliverWithRetry(payload Payload) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("webhook payload marshal failed", "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		if attempt > 0 && d.metrics != nil {
			d.metrics.WebhookRetries.Inc()
		}
		if err := d.post(body); err == nil {
			if d.metrics != nil {
				d.metrics.WebhookDelivered.Inc()
			}
			return
		} else {
			lastErr = err
		}
		if attempt < d.cfg.MaxRetries-1 {
			time.Sleep(backoff(attempt, d.cfg.BaseDelay, d.cfg.MaxDelay))
		}
	}

	if d.metrics != nil {
		d.metrics.WebhookDeadLetter.Inc()
	}
	d.logger.Error("webhook delivery failed after all attempts",
		"attempts", d.cfg.MaxRetries,
		"event", payload.EventName,
		"signature", payload.Signature,
		"error", lastErr,
	)
}

// post issues one attempt bound to its own timeout. Deliberately detached
// from the run context: an accepted delivery outlives shutdown signals.
func (d *Dispatcher) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
}

// backoff is min(base * 2^attempt, max), attempt 0-indexed.
func backoff(attempt int, base, max time.Duration) time.Duration {
	d := base << uint(attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}

func (d *Dispatcher) gaugeDepth() {
	if d.metrics != nil {
		d.metrics.WebhookQueueDepth.Set(float64(len(d.queue)))
	}
}
