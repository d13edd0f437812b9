package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"

	"auditrelay/internal/audit"
	"auditrelay/internal/blacklist"
	"auditrelay/internal/compliance"
	"auditrelay/internal/platform/middleware"
	dErrors "auditrelay/pkg/domainerrors"
)

// Handler exposes the compliance surface: audit-log query/export, blocklist
// mutations, the screening probe, and raw-log ingestion. Mutations require
// auth when a validator is configured; reads are open.
type Handler struct {
	logger           *slog.Logger
	ledger           audit.Ledger
	store            blacklist.Store
	gate             *compliance.Gate
	validator        middleware.TokenValidator
	defaultNamespace string
}

func New(
	ledger audit.Ledger,
	store blacklist.Store,
	gate *compliance.Gate,
	validator middleware.TokenValidator,
	defaultNamespace string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		logger:           logger,
		ledger:           ledger,
		store:            store,
		gate:             gate,
		validator:        validator,
		defaultNamespace: defaultNamespace,
	}
}

// Register mounts the compliance routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/compliance/audit-log", h.handleAuditLog)
	r.Get("/compliance/blacklist", h.handleListBlacklist)
	r.Post("/compliance/screening", h.handleScreening)
	r.Post("/compliance/webhook", h.handleIngest)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/compliance/blacklist", h.handleAddBlacklist)
		r.Delete("/compliance/blacklist/{address}", h.handleRemoveBlacklist)
	})
}

func (h *Handler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:    audit.Action(q.Get("action")),
		Namespace: q.Get("namespace"),
		From:      q.Get("from"),
		To:        q.Get("to"),
	}
	format := q.Get("format")
	if format == "" {
		format = audit.FormatJSON
	}
	if format != audit.FormatJSON && format != audit.FormatCSV {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "format must be json or csv"))
		return
	}

	records, err := h.ledger.Query(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit query failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		writeError(w, dErrors.New(dErrors.CodeInternal, "audit query failed"))
		return
	}

	body, err := audit.Export(records, format)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "export failed"))
		return
	}
	if format == audit.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) handleListBlacklist(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = h.defaultNamespace
	}
	if namespace == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "namespace required (query or NAMESPACE)"))
		return
	}
	entries, err := h.store.List(r.Context(), namespace)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "blacklist list failed", "error", err)
		writeError(w, dErrors.New(dErrors.CodeInternal, "blacklist list failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace": namespace,
		"entries":   entries,
	})
}

type blacklistRequest struct {
	Namespace string `json:"namespace"`
	Address   string `json:"address"`
	Reason    string `json:"reason"`
}

func (h *Handler) handleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	var req blacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	namespace := req.Namespace
	if namespace == "" {
		namespace = h.defaultNamespace
	}
	if namespace == "" || req.Address == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "namespace and address required"))
		return
	}
	if !validAddress(req.Address) {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "address is not a valid base58 public key"))
		return
	}

	ctx := r.Context()
	if err := h.store.Add(ctx, namespace, req.Address, req.Reason); err != nil {
		h.logger.ErrorContext(ctx, "blacklist add failed", "error", err)
		writeError(w, dErrors.New(dErrors.CodeInternal, "blacklist add failed"))
		return
	}
	h.record(r, audit.Record{
		Type:      audit.ActionBlacklistAdd,
		Namespace: namespace,
		Address:   req.Address,
		Reason:    req.Reason,
		Actor:     actor(r),
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleRemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = h.defaultNamespace
	}
	if namespace == "" || address == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "namespace and address required"))
		return
	}

	ctx := r.Context()
	if err := h.store.Remove(ctx, namespace, address); err != nil {
		h.logger.ErrorContext(ctx, "blacklist remove failed", "error", err)
		writeError(w, dErrors.New(dErrors.CodeInternal, "blacklist remove failed"))
		return
	}
	h.record(r, audit.Record{
		Type:      audit.ActionBlacklistRemove,
		Namespace: namespace,
		Address:   address,
		Actor:     actor(r),
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleScreening(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "address required"))
		return
	}

	result := h.gate.Screen(r.Context(), req.Address)
	if result.Match {
		// gate denials belong in the trail
		h.record(r, audit.Record{
			Type:    audit.ActionBlocked,
			Address: req.Address,
			Reason:  "screening match",
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// handleIngest accepts raw log batches relayed over HTTP by a detached
// indexer. Only the raw-log shape is recorded; anything else is acknowledged
// and discarded.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type      string   `json:"type"`
		ProgramID string   `json:"programId"`
		Signature string   `json:"signature"`
		Logs      []string `json:"logs"`
		Err       any      `json:"err"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Type == "raw_log" || req.Type == "program_logs" {
		var errInfo string
		if req.Err != nil {
			if b, err := json.Marshal(req.Err); err == nil {
				errInfo = string(b)
			}
		}
		h.record(r, audit.Record{
			Type:      audit.ActionRawLog,
			ProgramID: req.ProgramID,
			Signature: req.Signature,
			RawLogs:   req.Logs,
			ErrorInfo: errInfo,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

// record appends and logs on failure; mutation responses do not depend on the
// trail write succeeding.
func (h *Handler) record(r *http.Request, rec audit.Record) {
	if err := h.ledger.Append(r.Context(), rec); err != nil {
		h.logger.ErrorContext(r.Context(), "audit append failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"action", string(rec.Type),
			"error", err,
		)
	}
}

func actor(r *http.Request) string {
	if a := middleware.GetActor(r.Context()); a != "" {
		return a
	}
	return "anonymous"
}

func validAddress(address string) bool {
	raw, err := base58.Decode(address)
	return err == nil && len(raw) == 32
}
