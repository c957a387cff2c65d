package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/concord/internal/service"
)

// ReflectHandler exposes the internal workspace of this agent.
type ReflectHandler struct {
	workspace *service.Workspace
}

func NewReflectHandler(ws *service.Workspace) *ReflectHandler {
	return &ReflectHandler{workspace: ws}
}

type reflectRequest struct {
	Content string `json:"content"`
}

type reflectStatusResponse struct {
	Status  service.WorkspaceStatus   `json:"status"`
	History service.HistoryReflection `json:"history"`
}

func (h *ReflectHandler) Reflect(w http.ResponseWriter, r *http.Request) {
	var req reflectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	res, err := h.workspace.Process(r.Context(), req.Content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reflect")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *ReflectHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, reflectStatusResponse{
		Status:  h.workspace.Status(),
		History: h.workspace.ReflectOnHistory(),
	})
}
