package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/concord/internal/service"
)

type CoordinationHandler struct {
	coordinator *service.Coordinator
}

func NewCoordinationHandler(c *service.Coordinator) *CoordinationHandler {
	return &CoordinationHandler{coordinator: c}
}

type groundingRequest struct {
	Facts       map[string]any `json:"facts"`
	SourceAgent string         `json:"source_agent"`
}

type reconcileResponse struct {
	Resynchronized int `json:"resynchronized_agents"`
	Resolved       int `json:"resolved_conflicts"`
}

func (h *CoordinationHandler) Grounding(w http.ResponseWriter, r *http.Request) {
	var req groundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.coordinator.EstablishCommonGrounding(r.Context(), req.Facts, req.SourceAgent)
	if err != nil {
		if errors.Is(err, service.ErrNoFacts) || errors.Is(err, service.ErrSourceAgentMissing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to establish grounding")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *CoordinationHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req service.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.coordinator.CoordinateRealTimeAction(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrActionTypeMissing) || errors.Is(err, service.ErrUnknownAgent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to coordinate action")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *CoordinationHandler) Emergence(w http.ResponseWriter, r *http.Request) {
	var req service.EmergencePattern
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.coordinator.HandleUnderstandingEmergence(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrPatternTypeMissing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to handle emergence")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *CoordinationHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coordinator.Status())
}

func (h *CoordinationHandler) Understanding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coordinator.Understanding())
}

// Reconcile runs one resync and retry pass on demand.
func (h *CoordinationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	resynced := h.coordinator.ResyncAutonomous(r.Context())
	resolved, err := h.coordinator.RetryPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retry pending conflicts")
		return
	}

	writeJSON(w, http.StatusOK, reconcileResponse{Resynchronized: resynced, Resolved: resolved})
}
