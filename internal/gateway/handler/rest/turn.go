package rest

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"educore/internal/assistant"
)

// handleTurn runs one conversational turn or direct function call.
// Validation failures come back as 400s with the reason; anything that
// keeps the orchestrator from producing a reply at all is a 502, with the
// detail logged rather than returned.
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req assistant.TurnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Caller = callerFrom(r)

	reply, err := h.orc.Respond(r.Context(), req)
	if err != nil {
		if errors.Is(err, assistant.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("turn failed",
			zap.String("user", req.Caller.UserID),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "the assistant could not complete this request")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
