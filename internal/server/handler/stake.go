package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// StakeService defines the service-layer methods the stake handler requires.
type StakeService interface {
	PlaceStake(ctx context.Context, staker string, propositionID int64, side domain.Side, amount int64) (domain.Stake, error)
	StakesFor(ctx context.Context, propositionID int64) ([]domain.Stake, error)
	StakesByStaker(ctx context.Context, propositionID int64, staker string) ([]domain.Stake, error)
}

// StakeHandler serves stake-related HTTP endpoints.
type StakeHandler struct {
	svc    StakeService
	logger *slog.Logger
}

// NewStakeHandler creates a StakeHandler with the given service and logger.
func NewStakeHandler(svc StakeService, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{
		svc:    svc,
		logger: logHandler(logger, "stake"),
	}
}

// placeStakeRequest is the body for placing a stake.
type placeStakeRequest struct {
	Side   domain.Side `json:"side"`
	Amount int64       `json:"amount"`
}

// Place records a stake by the caller on one side of a proposition.
// POST /api/propositions/{id}/stakes
func (h *StakeHandler) Place(w http.ResponseWriter, r *http.Request) {
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

	var req placeStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stake, err := h.svc.PlaceStake(r.Context(), staker, id, req.Side, req.Amount)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: place stake failed",
			slog.Int64("proposition_id", id),
			slog.String("staker", staker),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to place stake")
		return
	}

	writeJSON(w, http.StatusCreated, stake)
}

// listStakesResponse wraps the stake list output.
type listStakesResponse struct {
	Stakes []domain.Stake `json:"stakes"`
	Total  int            `json:"total"`
}

// List returns all stakes on a proposition, or only the caller's when the
// mine=true query parameter is set.
// GET /api/propositions/{id}/stakes?mine=true
func (h *StakeHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposition id")
		return
	}

	var stakes []domain.Stake
	if r.URL.Query().Get("mine") == "true" {
		staker, ok := callerIdentity(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "missing or invalid X-Identity header")
			return
		}
		stakes, err = h.svc.StakesByStaker(r.Context(), id, staker)
	} else {
		stakes, err = h.svc.StakesFor(r.Context(), id)
	}
	if err != nil {
		writeDomainError(w, err, "failed to list stakes")
		return
	}

	writeJSON(w, http.StatusOK, listStakesResponse{
		Stakes: stakes,
		Total:  len(stakes),
	})
}
