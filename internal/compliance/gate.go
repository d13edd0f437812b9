package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"auditrelay/internal/blacklist"
	"auditrelay/internal/platform/metrics"
)

// ScreeningResult is the external screening service's answer shape, also
// returned by the screening probe endpoint.
type ScreeningResult struct {
	Screened bool `json:"screened"`
	Match    bool `json:"match"`
}

// Gate answers "is this address blocked under this namespace". It reads the
// blocklist first and only then consults the optional external screening
// service. The gate never mutates the blocklist.
//
// Transport failure policy: fail-open by default (an unreachable screening
// service yields "not blocked"), switchable to fail-closed. Either way the
// failure is logged and counted, never raised.
type Gate struct {
	store        blacklist.Store
	screeningURL string
	failClosed   bool
	client       *http.Client
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// GateConfig carries the screening knobs out of the environment.
type GateConfig struct {
	ScreeningURL string
	Timeout      time.Duration
	FailClosed   bool
}

func NewGate(store blacklist.Store, cfg GateConfig, logger *slog.Logger, m *metrics.Metrics) *Gate {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gate{
		store:        store,
		screeningURL: cfg.ScreeningURL,
		failClosed:   cfg.FailClosed,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
		metrics:      m,
	}
}

// IsBlocked checks the local blocklist, then the screening service. A locally
// listed address short-circuits without any network call. With no screening
// endpoint configured the answer is purely local.
func (g *Gate) IsBlocked(ctx context.Context, namespace, address string) bool {
	entries, err := g.store.List(ctx, namespace)
	if err != nil {
		g.logger.Error("blocklist read failed", "namespace", namespace, "error", err)
	}
	for _, e := range entries {
		if e.Address == address {
			g.countBlocked()
			return true
		}
	}

	if g.screeningURL == "" {
		return false
	}

	result, err := g.callScreening(ctx, address)
	if err != nil {
		g.logger.Warn("screening call failed",
			"address", address,
			"fail_closed", g.failClosed,
			"error", err,
		)
		if g.metrics != nil {
			g.metrics.ScreeningFailures.Inc()
		}
		if g.failClosed {
			g.countBlocked()
		}
		return g.failClosed
	}
	if result.Match {
		g.countBlocked()
	}
	return result.Match
}

// Screen asks the external service about one address for the probe endpoint.
// Any failure, or no configured endpoint, yields the screened-no-match stub
// answer; the probe never errors on transport trouble.
func (g *Gate) Screen(ctx context.Context, address string) ScreeningResult {
	if g.screeningURL == "" {
		return ScreeningResult{Screened: true, Match: false}
	}
	result, err := g.callScreening(ctx, address)
	if err != nil {
		if g.metrics != nil {
			g.metrics.ScreeningFailures.Inc()
		}
		g.logger.Warn("screening call failed", "address", address, "error", err)
		return ScreeningResult{Screened: true, Match: false}
	}
	return result
}

func (g *Gate) callScreening(ctx context.Context, address string) (ScreeningResult, error) {
	body, err := json.Marshal(map[string]string{"address": address})
	if err != nil {
		return ScreeningResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.screeningURL, bytes.NewReader(body))
	if err != nil {
		return ScreeningResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return ScreeningResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ScreeningResult{}, fmt.Errorf("screening returned HTTP %d", resp.StatusCode)
	}
	var result ScreeningResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ScreeningResult{}, fmt.Errorf("malformed screening response: %w", err)
	}
	return result, nil
}

func (g *Gate) countBlocked() {
	if g.metrics != nil {
		g.metrics.BlockedLookups.Inc()
	}
}
