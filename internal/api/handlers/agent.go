package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/Harshitk-cp/concord/internal/service"
	"github.com/go-chi/chi/v5"
)

// AgentHandler serves the peer side of the coordination transport.
type AgentHandler struct {
	peer domain.AgentHandler
}

func NewAgentHandler(peer domain.AgentHandler) *AgentHandler {
	return &AgentHandler{peer: peer}
}

func (h *AgentHandler) Handle(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !domain.ValidMessageKind(kind) {
		writeError(w, http.StatusNotFound, "unknown message kind")
		return
	}

	var msg domain.AgentMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg.Kind = domain.MessageKind(kind)

	resp, err := h.peer.Handle(r.Context(), msg)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSnapshotMissing),
			errors.Is(err, service.ErrContradictionMissing),
			errors.Is(err, service.ErrTaskMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStaleSnapshot):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "agent failed to handle message")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
