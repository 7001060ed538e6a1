package rest

import (
	"net/http"

	"educore/internal/integrity"
)

// handleIntegrityCheck exposes the guard to internal collaborators (the
// flagging workflow, batch re-checks). Check never errors; a degraded
// classifier shows up inside the verdict, not as a failure status.
func (h *Handler) handleIntegrityCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.guard == nil {
		writeError(w, http.StatusServiceUnavailable, "integrity guard is not configured")
		return
	}

	var req integrity.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.AnswerText == "" {
		writeError(w, http.StatusBadRequest, "answer_text is required")
		return
	}

	verdict := h.guard.Check(r.Context(), req)
	writeJSON(w, http.StatusOK, verdict)
}
