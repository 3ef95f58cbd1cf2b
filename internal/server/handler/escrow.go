package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// EscrowService defines the service-layer methods the escrow handler requires.
type EscrowService interface {
	Deposit(ctx context.Context, caller, account string, amount int64) error
	BalanceOf(ctx context.Context, account string) (int64, error)
}

// EscrowHandler serves escrow balance and deposit endpoints.
type EscrowHandler struct {
	svc    EscrowService
	logger *slog.Logger
}

// NewEscrowHandler creates an EscrowHandler with the given service and logger.
func NewEscrowHandler(svc EscrowService, logger *slog.Logger) *EscrowHandler {
	return &EscrowHandler{
		svc:    svc,
		logger: logHandler(logger, "escrow"),
	}
}

// depositRequest is the body for an administrative top-up.
type depositRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// Deposit credits an escrow account. The service rejects callers that are not
// administrators.
// POST /api/escrow/deposits
func (h *EscrowHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Identity header")
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Deposit(r.Context(), caller, req.Account, req.Amount); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: deposit failed",
			slog.String("caller", caller),
			slog.String("account", req.Account),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to deposit")
		return
	}

	balance, err := h.svc.BalanceOf(r.Context(), req.Account)
	if err != nil {
		writeDomainError(w, err, "failed to read balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"balance": balance,
	})
}

// Balance returns the caller's own escrow balance.
// GET /api/escrow/balance
func (h *EscrowHandler) Balance(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Identity header")
		return
	}

	balance, err := h.svc.BalanceOf(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err, "failed to read balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": caller,
		"balance": balance,
	})
}
