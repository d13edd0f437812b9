package blacklist

import "context"

// Entry is one blocked address within a namespace. AddedAt uses the same
// fixed-width ISO-8601 format as the audit trail.
type Entry struct {
	Address string `json:"address"`
	Reason  string `json:"reason,omitempty"`
	AddedAt string `json:"addedAt"`
}

// Store holds per-namespace blocked address sets. Uniqueness of
// (namespace, address) is the store's invariant, not the caller's:
//
//   - Add is idempotent and first-reason-wins; a second add with a different
//     reason is silently ignored, not merged.
//   - Remove of an absent pair is a no-op.
//   - List returns entries in insertion order; an unknown namespace yields an
//     empty list, never an error.
type Store interface {
	Add(ctx context.Context, namespace, address, reason string) error
	Remove(ctx context.Context, namespace, address string) error
	List(ctx context.Context, namespace string) ([]Entry, error)
}
