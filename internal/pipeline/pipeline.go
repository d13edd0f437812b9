package pipeline

import (
	"context"
	"log/slog"

	"auditrelay/internal/audit"
	"auditrelay/internal/ledger"
	"auditrelay/internal/platform/metrics"
	"auditrelay/internal/webhook"
)

// Dispatcher is the downstream notification sink. Deliver must never block
// the caller.
type Dispatcher interface {
	Deliver(payload webhook.Payload)
}

// Pipeline is the ingestion path: decode a transaction's logs, map each event
// to an audit record, append it, and hand the event to the dispatcher. Every
// fault on this path is recovered locally; nothing propagates to the log
// source.
type Pipeline struct {
	decoder    *ledger.Decoder
	mapper     *Mapper
	ledger     audit.Ledger
	dispatcher Dispatcher
	programID  string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func New(
	decoder *ledger.Decoder,
	mapper *Mapper,
	auditLedger audit.Ledger,
	dispatcher Dispatcher,
	programID string,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		decoder:    decoder,
		mapper:     mapper,
		ledger:     auditLedger,
		dispatcher: dispatcher,
		programID:  programID,
		logger:     logger,
		metrics:    m,
	}
}

// Process handles one (signature, logs, err) triple. Batches that the source
// itself marked failed are dropped whole; otherwise each decoded event is
// processed independently.
func (p *Pipeline) Process(ctx context.Context, signature string, logs []string, err error) {
	if err != nil {
		p.count(func(m *metrics.Metrics) { m.BatchesDropped.Inc() })
		p.logger.Debug("dropping failed transaction batch", "signature", signature, "error", err)
		return
	}

	events, skipped := p.decoder.Decode(signature, logs)
	if skipped > 0 {
		p.count(func(m *metrics.Metrics) { m.LinesMalformed.Add(float64(skipped)) })
	}

	for _, ev := range events {
		p.count(func(m *metrics.Metrics) { m.EventsDecoded.Inc() })

		record, ok := p.mapper.Map(ev.Name, ev.Fields, signature)
		if !ok {
			p.count(func(m *metrics.Metrics) { m.EventsIgnored.Inc() })
			continue
		}
		p.count(func(m *metrics.Metrics) { m.EventsMapped.Inc() })

		if err := p.ledger.Append(ctx, record); err != nil {
			p.count(func(m *metrics.Metrics) { m.AppendFailures.Inc() })
			p.logger.Error("audit append failed",
				"signature", signature,
				"event", ev.Name,
				"error", err,
			)
			// delivery still proceeds: the subscriber notification is
			// independent of the local trail
		}

		p.dispatcher.Deliver(webhook.Payload{
			Type:      string(record.Type),
			Signature: signature,
			ProgramID: p.programID,
			EventName: ev.Name,
			Data:      ev.Fields,
		})
	}
}

func (p *Pipeline) count(fn func(*metrics.Metrics)) {
	if p.metrics != nil {
		fn(p.metrics)
	}
}
