package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"educore/internal/capability"
	"educore/internal/flagging"
)

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	role := strings.TrimSpace(r.Header.Get("X-User-Role"))
	if !strings.EqualFold(role, capability.RoleAdmin) {
		writeError(w, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}

// handleFlags lists flag entries, newest first. Admin only.
func (h *Handler) handleFlags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	if h.flags == nil {
		writeError(w, http.StatusServiceUnavailable, "flag store is not configured")
		return
	}

	status := flagging.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.flags.List(r.Context(), status, limit)
	if err != nil {
		h.log.Error("flag list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list flags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flags": entries})
}

// handleFlagResolve closes one flag as resolved or dismissed. Admin only.
func (h *Handler) handleFlagResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	if h.flags == nil {
		writeError(w, http.StatusServiceUnavailable, "flag store is not configured")
		return
	}

	var req struct {
		ID         string `json:"id"`
		Resolution string `json:"resolution,omitempty"`
		Dismiss    bool   `json:"dismiss,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	by := strings.TrimSpace(r.Header.Get("X-User-Id"))
	entry, err := h.flags.Resolve(r.Context(), req.ID, by, req.Resolution, req.Dismiss)
	if err != nil {
		if errors.Is(err, flagging.ErrNotFound) {
			writeError(w, http.StatusNotFound, "flag not found")
			return
		}
		h.log.Error("flag resolve failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not resolve flag")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
