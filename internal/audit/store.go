package audit

import "context"

// Ledger is the append-only audit trail. Stores are interface-driven so the
// pipeline and handlers can run against in-memory, postgres, or teed
// implementations without rewiring.
//
// Append assigns the record timestamp at append time; callers leave it empty.
// There is no update or delete, and no deduplication: the trail shows what
// the source delivered, redeliveries included.
type Ledger interface {
	Append(ctx context.Context, record Record) error
	// Query returns matching records newest-first (reverse append order).
	Query(ctx context.Context, filter Filter) ([]Record, error)
}
