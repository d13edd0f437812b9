package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// LogHandler receives one (signature, logs, err) triple per confirmed
// transaction touching the subscribed program.
type LogHandler func(signature string, logs []string, err error)

// Subscriber maintains a websocket subscription to the ledger RPC node's log
// stream and feeds each notification to the handler. Delivery is at-least-once
// across reconnects; ordering across transactions is not guaranteed.
type Subscriber struct {
	url       string
	programID string
	handler   LogHandler
	logger    *slog.Logger

	// reconnect backoff bounds, overridable in tests
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewSubscriber(url, programID string, handler LogHandler, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:        url,
		programID:  programID,
		handler:    handler,
		logger:     logger,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Run connects and consumes notifications until ctx is cancelled. Stream
// failures trigger a reconnect with capped backoff; they never propagate.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := s.minBackoff
	for {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("log stream disconnected",
				"url", s.url,
				"error", err,
				"retry_in", backoff.String(),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, s.maxBackoff)
			continue
		}
		backoff = s.minBackoff
	}
}

func (s *Subscriber) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial log stream: %w", err)
	}
	defer conn.Close()

	// close the connection when ctx ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []any{
			map[string]any{"mentions": []string{s.programID}},
			map[string]any{"commitment": "confirmed"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("subscribed to program logs", "program_id", s.programID, "url", s.url)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read log stream: %w", err)
		}
		sig, logs, logErr, ok := parseLogNotification(data)
		if !ok {
			continue // subscription confirmations and pings
		}
		s.handler(sig, logs, logErr)
	}
}

type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type streamMessage struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string          `json:"signature"`
				Logs      []string        `json:"logs"`
				Err       json.RawMessage `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// parseLogNotification extracts the (signature, logs, err) triple from a
// stream frame. Non-notification frames report ok=false.
func parseLogNotification(data []byte) (signature string, logs []string, err error, ok bool) {
	var msg streamMessage
	if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil {
		return "", nil, nil, false
	}
	if msg.Method != "logsNotification" {
		return "", nil, nil, false
	}
	v := msg.Params.Result.Value
	var txErr error
	if len(v.Err) > 0 && string(v.Err) != "null" {
		txErr = errors.New(string(v.Err))
	}
	return v.Signature, v.Logs, txErr, true
}
