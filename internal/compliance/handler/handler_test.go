package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditrelay/internal/audit"
	"auditrelay/internal/blacklist"
	"auditrelay/internal/compliance"
	"auditrelay/internal/compliance/handler"
	"auditrelay/internal/jwttoken"
	"auditrelay/internal/platform/middleware"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func validAddr(b byte) string {
	return base58.Encode(bytes.Repeat([]byte{b}, 32))
}

type fixture struct {
	ledger *audit.InMemoryLedger
	store  *blacklist.InMemoryStore
	router chi.Router
}

func newFixture(t *testing.T, validator middleware.TokenValidator, defaultNamespace, screeningURL string) *fixture {
	t.Helper()

	ledger := audit.NewInMemoryLedger()
	store := blacklist.NewInMemoryStore()
	gate := compliance.NewGate(store, compliance.GateConfig{ScreeningURL: screeningURL}, discardLogger(), nil)

	h := handler.New(ledger, store, gate, validator, defaultNamespace, discardLogger())
	r := chi.NewRouter()
	h.Register(r)

	return &fixture{ledger: ledger, store: store, router: r}
}

func (f *fixture) do(method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAuditLogJSON(t *testing.T) {
	f := newFixture(t, nil, "", "")
	ctx := context.Background()

	require.NoError(t, f.ledger.Append(ctx, audit.Record{Type: audit.ActionMint, Address: "addr1", Amount: "100"}))
	require.NoError(t, f.ledger.Append(ctx, audit.Record{Type: audit.ActionBurn, Address: "addr2", Amount: "50"}))

	rec := f.do(http.MethodGet, "/compliance/audit-log", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out struct {
		Entries []audit.Record `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Entries, 2)
	assert.Equal(t, audit.ActionBurn, out.Entries[0].Type) // newest first
}

func TestAuditLogActionFilter(t *testing.T) {
	f := newFixture(t, nil, "", "")
	ctx := context.Background()

	require.NoError(t, f.ledger.Append(ctx, audit.Record{Type: audit.ActionMint}))
	require.NoError(t, f.ledger.Append(ctx, audit.Record{Type: audit.ActionFreeze}))

	rec := f.do(http.MethodGet, "/compliance/audit-log?action=freeze", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Entries []audit.Record `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Entries, 1)
	assert.Equal(t, audit.ActionFreeze, out.Entries[0].Type)
}

func TestAuditLogCSV(t *testing.T) {
	f := newFixture(t, nil, "", "")
	require.NoError(t, f.ledger.Append(context.Background(), audit.Record{Type: audit.ActionMint, Address: "addr1"}))

	rec := f.do(http.MethodGet, "/compliance/audit-log?format=csv", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "timestamp,type,signature,namespace,address,reason,actor,amount\n"))
	assert.Contains(t, rec.Body.String(), "addr1")
}

func TestAuditLogRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t, nil, "", "")
	rec := f.do(http.MethodGet, "/compliance/audit-log?format=xml", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlacklistAddListRemove(t *testing.T) {
	f := newFixture(t, nil, "", "")
	addr := validAddr(7)

	rec := f.do(http.MethodPost, "/compliance/blacklist", map[string]string{
		"namespace": "mintA",
		"address":   addr,
		"reason":    "sanctions",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/compliance/blacklist?namespace=mintA", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Namespace string            `json:"namespace"`
		Entries   []blacklist.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "mintA", list.Namespace)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, addr, list.Entries[0].Address)
	assert.Equal(t, "sanctions", list.Entries[0].Reason)

	rec = f.do(http.MethodDelete, "/compliance/blacklist/"+addr+"?namespace=mintA", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := f.store.List(context.Background(), "mintA")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// both mutations left audit records, newest first
	records, err := f.ledger.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, audit.ActionBlacklistRemove, records[0].Type)
	assert.Equal(t, audit.ActionBlacklistAdd, records[1].Type)
	assert.Equal(t, "anonymous", records[1].Actor)
	assert.Equal(t, "sanctions", records[1].Reason)
}

func TestBlacklistAddValidation(t *testing.T) {
	f := newFixture(t, nil, "", "")

	cases := []struct {
		name string
		body any
	}{
		{"missing address", map[string]string{"namespace": "mintA"}},
		{"missing namespace", map[string]string{"address": validAddr(1)}},
		{"not base58", map[string]string{"namespace": "mintA", "address": "not-base58-0OIl"}},
		{"wrong length", map[string]string{"namespace": "mintA", "address": base58.Encode([]byte{1, 2, 3})}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/compliance/blacklist", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestBlacklistAddMalformedBody(t *testing.T) {
	f := newFixture(t, nil, "", "")
	req := httptest.NewRequest(http.MethodPost, "/compliance/blacklist", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlacklistDefaultNamespace(t *testing.T) {
	f := newFixture(t, nil, "mintDefault", "")
	addr := validAddr(9)

	rec := f.do(http.MethodPost, "/compliance/blacklist", map[string]string{"address": addr}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := f.store.List(context.Background(), "mintDefault")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, addr, entries[0].Address)
}

func TestBlacklistListRequiresNamespace(t *testing.T) {
	f := newFixture(t, nil, "", "")
	rec := f.do(http.MethodGet, "/compliance/blacklist", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScreeningStubAnswer(t *testing.T) {
	f := newFixture(t, nil, "", "")

	rec := f.do(http.MethodPost, "/compliance/screening", map[string]string{"address": validAddr(1)}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"screened":true,"match":false}`, rec.Body.String())

	// no denial, nothing recorded
	records, err := f.ledger.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScreeningMatchIsRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"screened":true,"match":true}`))
	}))
	defer srv.Close()

	f := newFixture(t, nil, "", srv.URL)
	addr := validAddr(2)

	rec := f.do(http.MethodPost, "/compliance/screening", map[string]string{"address": addr}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"screened":true,"match":true}`, rec.Body.String())

	records, err := f.ledger.Query(context.Background(), audit.Filter{Action: audit.ActionBlocked})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, addr, records[0].Address)
}

func TestScreeningRequiresAddress(t *testing.T) {
	f := newFixture(t, nil, "", "")
	rec := f.do(http.MethodPost, "/compliance/screening", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestRawLogs(t *testing.T) {
	f := newFixture(t, nil, "", "")

	rec := f.do(http.MethodPost, "/compliance/webhook", map[string]any{
		"type":      "raw_log",
		"programId": "prog1",
		"signature": "sig1",
		"logs":      []string{"Program log: one"},
		"err":       map[string]any{"InstructionError": []any{0, "Custom"}},
	}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	records, err := f.ledger.Query(context.Background(), audit.Filter{Action: audit.ActionRawLog})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sig1", records[0].Signature)
	assert.Equal(t, []string{"Program log: one"}, records[0].RawLogs)
	assert.NotEmpty(t, records[0].ErrorInfo)
}

func TestIngestIgnoresOtherShapes(t *testing.T) {
	f := newFixture(t, nil, "", "")

	rec := f.do(http.MethodPost, "/compliance/webhook", map[string]any{"type": "heartbeat"}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	records, err := f.ledger.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMutationsRequireTokenWhenValidatorConfigured(t *testing.T) {
	svc := jwttoken.NewService("test-secret", "auditrelay")
	f := newFixture(t, svc, "", "")
	addr := validAddr(5)
	body := map[string]string{"namespace": "mintA", "address": addr, "reason": "fraud"}

	// no token
	rec := f.do(http.MethodPost, "/compliance/blacklist", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// garbage token
	rec = f.do(http.MethodPost, "/compliance/blacklist", body, http.Header{"Authorization": []string{"Bearer nope"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// expired token
	expired, err := svc.Generate("officer-1", -time.Minute)
	require.NoError(t, err)
	rec = f.do(http.MethodPost, "/compliance/blacklist", body, http.Header{"Authorization": []string{"Bearer " + expired}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// valid token; the subject becomes the audit actor
	token, err := svc.Generate("officer-1", time.Hour)
	require.NoError(t, err)
	rec = f.do(http.MethodPost, "/compliance/blacklist", body, http.Header{"Authorization": []string{"Bearer " + token}})
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := f.ledger.Query(context.Background(), audit.Filter{Action: audit.ActionBlacklistAdd})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "officer-1", records[0].Actor)

	// reads stay open
	rec = f.do(http.MethodGet, "/compliance/audit-log", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
