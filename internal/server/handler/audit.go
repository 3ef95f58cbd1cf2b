package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// AuditHandler exposes the append-only audit log to administrators.
type AuditHandler struct {
	audit  domain.AuditStore
	auth   domain.Authorizer
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler with the given store and authorizer.
func NewAuditHandler(audit domain.AuditStore, auth domain.Authorizer, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		auth:   auth,
		logger: logHandler(logger, "audit"),
	}
}

// auditEntryView is the wire form of one audit row.
type auditEntryView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// listAuditResponse wraps the audit list output.
type listAuditResponse struct {
	Entries []auditEntryView `json:"entries"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// List returns recent audit entries, newest first. Administrators only.
// GET /api/audit?limit=50&offset=0
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Identity header")
		return
	}
	if !h.auth.CanAdminister(caller) {
		writeError(w, http.StatusForbidden, "caller is not an administrator")
		return
	}

	opts := parseListOpts(r)
	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	views := make([]auditEntryView, len(entries))
	for i, e := range entries {
		views[i] = auditEntryView{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, listAuditResponse{
		Entries: views,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}
