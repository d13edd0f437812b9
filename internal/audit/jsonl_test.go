package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkTee(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	sink := NewFileSink(path)
	defer sink.Close()

	l := WithFileSink(NewInMemoryLedger(), sink)
	require.NoError(t, l.Append(ctx, Record{Type: ActionMint, Address: "addr1", Amount: "100"}))
	require.NoError(t, l.Append(ctx, Record{Type: ActionBurn, Address: "addr2", Amount: "50"}))

	// primary store still serves queries
	got, err := l.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, ActionMint, lines[0].Type)
	assert.Equal(t, ActionBurn, lines[1].Type)
	assert.NotEmpty(t, lines[0].Timestamp)
}
