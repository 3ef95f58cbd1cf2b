package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// PropositionService defines the methods that the proposition handler requires
// from the service layer. It is declared locally so the handler package does
// not depend on the concrete service implementation.
type PropositionService interface {
	Open(ctx context.Context, creator, question, category string, duration time.Duration) (domain.Proposition, error)
	GetProposition(ctx context.Context, id int64) (domain.Proposition, error)
	PropositionsByCreator(ctx context.Context, creator string) ([]domain.Proposition, error)
	Odds(ctx context.Context, propositionID int64) (domain.Odds, error)
}

// PropositionHandler serves proposition-related HTTP endpoints.
type PropositionHandler struct {
	svc    PropositionService
	logger *slog.Logger
}

// NewPropositionHandler creates a PropositionHandler with the given service
// and logger.
func NewPropositionHandler(svc PropositionService, logger *slog.Logger) *PropositionHandler {
	return &PropositionHandler{
		svc:    svc,
		logger: logHandler(logger, "proposition"),
	}
}

// propositionView decorates a proposition with its derived lifecycle status.
type propositionView struct {
	domain.Proposition
	Status domain.Status `json:"status"`
}

func viewOf(p domain.Proposition) propositionView {
	return propositionView{Proposition: p, Status: p.Status(time.Now())}
}

// openRequest is the body for creating a proposition.
type openRequest struct {
	Question        string `json:"question"`
	Category        string `json:"category"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// Open creates a new proposition owned by the caller.
// POST /api/propositions
func (h *PropositionHandler) Open(w http.ResponseWriter, r *http.Request) {
	creator, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Identity header")
		return
	}

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.svc.Open(r.Context(), creator, req.Question, req.Category,
		time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: open proposition failed",
			slog.String("creator", creator),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to open proposition")
		return
	}

	writeJSON(w, http.StatusCreated, viewOf(p))
}

// Get returns a single proposition by its ID.
// GET /api/propositions/{id}
func (h *PropositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposition id")
		return
	}

	p, err := h.svc.GetProposition(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get proposition")
		return
	}

	writeJSON(w, http.StatusOK, viewOf(p))
}

// listPropositionsResponse wraps the list endpoint output.
type listPropositionsResponse struct {
	Propositions []propositionView `json:"propositions"`
	Total        int               `json:"total"`
}

// ListByCreator returns propositions opened by one creator. The creator query
// parameter defaults to the caller's own identity.
// GET /api/propositions?creator=0x...
func (h *PropositionHandler) ListByCreator(w http.ResponseWriter, r *http.Request) {
	creator := r.URL.Query().Get("creator")
	if creator == "" {
		id, ok := callerIdentity(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "creator query parameter or X-Identity header required")
			return
		}
		creator = id
	}

	props, err := h.svc.PropositionsByCreator(r.Context(), creator)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list propositions failed",
			slog.String("creator", creator),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list propositions")
		return
	}

	views := make([]propositionView, len(props))
	for i, p := range props {
		views[i] = viewOf(p)
	}
	writeJSON(w, http.StatusOK, listPropositionsResponse{
		Propositions: views,
		Total:        len(views),
	})
}

// Odds returns the live odds for a proposition.
// GET /api/propositions/{id}/odds
func (h *PropositionHandler) Odds(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposition id")
		return
	}

	odds, err := h.svc.Odds(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to compute odds")
		return
	}

	writeJSON(w, http.StatusOK, odds)
}
