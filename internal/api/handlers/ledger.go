package handlers

import (
	"errors"
	"net/http"

	"github.com/Harshitk-cp/concord/internal/ledger"
)

type LedgerHandler struct {
	ledger *ledger.Ledger
}

func NewLedgerHandler(l *ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

type verifyResponse struct {
	Valid      bool   `json:"valid"`
	Length     int    `json:"length"`
	Head       string `json:"head"`
	Error      string `json:"error,omitempty"`
	FirstIndex *int   `json:"first_invalid_index,omitempty"`
}

func (h *LedgerHandler) Export(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Export())
}

func (h *LedgerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	resp := verifyResponse{
		Valid:  true,
		Length: h.ledger.Len(),
		Head:   h.ledger.Head(),
	}
	if err := h.ledger.ValidateIntegrity(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
		var ie *ledger.IntegrityError
		if errors.As(err, &ie) {
			resp.FirstIndex = &ie.Index
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
