package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/Harshitk-cp/concord/internal/ledger"
	"github.com/Harshitk-cp/concord/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CycleHandler struct {
	driver *service.Driver
}

func NewCycleHandler(d *service.Driver) *CycleHandler {
	return &CycleHandler{driver: d}
}

type runCycleRequest struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

type cycleResponse struct {
	Summary        domain.CycleSummary     `json:"summary"`
	Content        string                  `json:"content"`
	Contradictions []*domain.Contradiction `json:"contradictions"`
	Gaps           []domain.Gap            `json:"gaps"`
}

// Run drives a new cycle over the submitted content until it terminates.
func (h *CycleHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	run, err := h.driver.Run(r.Context(), req.ID, req.Content, nil)
	if err != nil {
		writeRunError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, cycleResponse{
		Summary:        run.Summary,
		Content:        run.Cycle.Content,
		Contradictions: run.Cycle.Contradictions,
		Gaps:           run.Cycle.Gaps,
	})
}

type integrityErrorResponse struct {
	Error      string `json:"error"`
	FirstIndex int    `json:"first_invalid_index"`
}

// writeRunError maps an abandoned cycle to a status. A broken ledger reports the
// first invalid index the same way /v1/ledger/verify does.
func writeRunError(w http.ResponseWriter, err error) {
	var ie *ledger.IntegrityError
	switch {
	case errors.As(err, &ie):
		writeJSON(w, http.StatusConflict, integrityErrorResponse{Error: err.Error(), FirstIndex: ie.Index})
	case errors.Is(err, ledger.ErrChainIntegrity):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrCauseEffectViolation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "cycle cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "failed to run cycle")
	}
}

func (h *CycleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sum, err := h.driver.Engine().Lookup(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCycleNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get cycle")
		return
	}

	writeJSON(w, http.StatusOK, sum)
}
