package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/settle"
)

// SettlementService defines the service-layer methods the settlement handler
// requires.
type SettlementService interface {
	Resolve(ctx context.Context, caller string, propositionID int64, verdict bool) (domain.Resolution, error)
	Claim(ctx context.Context, staker string, propositionID int64) (domain.ClaimReceipt, error)
	ResolutionFor(ctx context.Context, propositionID int64) (domain.Resolution, error)
}

// SettlementHandler serves resolution and claim endpoints, plus the operator
// verdict feed.
type SettlementHandler struct {
	svc    SettlementService
	auth   domain.Authorizer
	bus    domain.SignalBus // nil when no durable verdict stream is configured
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler. bus may be nil; the
// verdict feed endpoint then reports itself unavailable.
func NewSettlementHandler(svc SettlementService, auth domain.Authorizer, bus domain.SignalBus, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		svc:    svc,
		auth:   auth,
		bus:    bus,
		logger: logHandler(logger, "settlement"),
	}
}

// resolveRequest is the body for resolving a proposition.
type resolveRequest struct {
	Verdict bool `json:"verdict"`
}

// Resolve settles a proposition with the caller's verdict. Only designated
// resolvers are accepted; the service enforces that.
// POST /api/propositions/{id}/resolve
func (h *SettlementHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Identity header")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposition id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Resolve(r.Context(), caller, id, req.Verdict)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: resolve failed",
			slog.Int64("proposition_id", id),
			slog.String("caller", caller),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to resolve proposition")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Claim pays out the caller's winning stakes on a resolved proposition.
// POST /api/propositions/{id}/claim
func (h *SettlementHandler) Claim(w http.ResponseWriter, r *http.Request) {
	staker, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Identity header")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposition id")
		return
	}

	receipt, err := h.svc.Claim(r.Context(), staker, id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: claim failed",
			slog.Int64("proposition_id", id),
			slog.String("staker", staker),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to claim")
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// GetResolution returns the resolution record for a proposition.
// GET /api/propositions/{id}/resolution
func (h *SettlementHandler) GetResolution(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposition id")
		return
	}

	res, err := h.svc.ResolutionFor(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get resolution")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// verdictRequest is the body for submitting a verdict to the durable feed.
type verdictRequest struct {
	PropositionID int64  `json:"proposition_id"`
	Verdict       bool   `json:"verdict"`
	Source        string `json:"source,omitempty"`
}

// SubmitVerdict appends a verdict to the durable stream consumed by the
// settlement worker. Unlike Resolve, this accepts verdicts for propositions
// that have not ended yet; the worker applies them once the deadline passes.
// POST /api/verdicts
func (h *SettlementHandler) SubmitVerdict(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Identity header")
		return
	}
	if !h.auth.CanResolve(caller) {
		writeError(w, http.StatusForbidden, "caller is not a resolver")
		return
	}
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "verdict feed is not configured")
		return
	}

	var req verdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PropositionID <= 0 {
		writeError(w, http.StatusBadRequest, "proposition_id is required")
		return
	}

	msg := settle.VerdictMessage{
		PropositionID: req.PropositionID,
		Verdict:       req.Verdict,
		Source:        req.Source,
	}
	if msg.Source == "" {
		msg.Source = caller
	}
	if err := settle.SubmitVerdict(r.Context(), h.bus, msg); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: submit verdict failed",
			slog.Int64("proposition_id", req.PropositionID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to submit verdict")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"proposition_id": req.PropositionID,
		"verdict":        req.Verdict,
		"status":         "queued",
	})
}
