package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLedgerAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryLedger()

	require.NoError(t, l.Append(ctx, Record{Type: ActionMint, Namespace: "mintA", Address: "addr1", Amount: "100"}))
	require.NoError(t, l.Append(ctx, Record{Type: ActionBurn, Namespace: "mintA", Address: "addr2", Amount: "50"}))
	require.NoError(t, l.Append(ctx, Record{Type: ActionMint, Namespace: "mintB", Address: "addr3", Amount: "7"}))

	all, err := l.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	// newest first
	assert.Equal(t, "addr3", all[0].Address)
	assert.Equal(t, "addr2", all[1].Address)
	assert.Equal(t, "addr1", all[2].Address)

	// timestamps assigned at append, non-decreasing in append order
	for _, r := range all {
		_, err := time.Parse(TimestampLayout, r.Timestamp)
		assert.NoError(t, err)
	}
	assert.GreaterOrEqual(t, all[0].Timestamp, all[2].Timestamp)
}

func TestInMemoryLedgerFiltersAreANDed(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryLedger()

	require.NoError(t, l.Append(ctx, Record{Type: ActionMint, Namespace: "mintA"}))
	require.NoError(t, l.Append(ctx, Record{Type: ActionMint, Namespace: "mintB"}))
	require.NoError(t, l.Append(ctx, Record{Type: ActionBurn, Namespace: "mintA"}))

	got, err := l.Query(ctx, Filter{Action: ActionMint, Namespace: "mintA"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ActionMint, got[0].Type)
	assert.Equal(t, "mintA", got[0].Namespace)
}

func TestInMemoryLedgerTimeRangeInclusive(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryLedger()

	require.NoError(t, l.Append(ctx, Record{Type: ActionMint}))
	all, err := l.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	ts := all[0].Timestamp

	got, err := l.Query(ctx, Filter{From: ts, To: ts})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = l.Query(ctx, Filter{From: "9999-01-01T00:00:00.000Z"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = l.Query(ctx, Filter{To: "2000-01-01T00:00:00.000Z"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInMemoryLedgerEmptyResultIsNotNil(t *testing.T) {
	got, err := NewInMemoryLedger().Query(context.Background(), Filter{Namespace: "unknown"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInMemoryLedgerKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryLedger()

	rec := Record{Type: ActionMint, Signature: "sig1", Address: "addr1"}
	require.NoError(t, l.Append(ctx, rec))
	require.NoError(t, l.Append(ctx, rec))

	got, err := l.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFilterMatches(t *testing.T) {
	rec := Record{
		Timestamp: "2026-08-28T10:00:00.000Z",
		Type:      ActionFreeze,
		Namespace: "mintA",
	}

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"action match", Filter{Action: ActionFreeze}, true},
		{"action mismatch", Filter{Action: ActionThaw}, false},
		{"namespace mismatch", Filter{Namespace: "mintB"}, false},
		{"from inclusive", Filter{From: "2026-08-28T10:00:00.000Z"}, true},
		{"to inclusive", Filter{To: "2026-08-28T10:00:00.000Z"}, true},
		{"before from", Filter{From: "2026-08-28T10:00:00.001Z"}, false},
		{"after to", Filter{To: "2026-08-28T09:59:59.999Z"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(rec))
		})
	}
}
