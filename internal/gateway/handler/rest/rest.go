// Package rest serves the JSON API: capability listing, assistant turns,
// integrity checks, and the flag review surface. Caller identity arrives in
// the X-User-Id and X-User-Role headers; authentication itself is a
// collaborator in front of this process.
package rest

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"educore/internal/assistant"
	"educore/internal/capability"
	"educore/internal/flagging"
	"educore/internal/integrity"
)

type Handler struct {
	orc      *assistant.Orchestrator
	registry *capability.Registry
	guard    *integrity.Guard
	flags    flagging.Store
	log      *zap.Logger
}

func New(orc *assistant.Orchestrator, registry *capability.Registry, guard *integrity.Guard, flags flagging.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orc: orc, registry: registry, guard: guard, flags: flags, log: logger}
}

// Register installs the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/capabilities", h.handleCapabilities)
	mux.HandleFunc("/api/assistant/turn", h.handleTurn)
	mux.HandleFunc("/api/integrity/check", h.handleIntegrityCheck)
	mux.HandleFunc("/api/flags", h.handleFlags)
	mux.HandleFunc("/api/flags/resolve", h.handleFlagResolve)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCapabilities lists the declarations callable by the caller's role.
// AllowedRoles never appears in the output; an unknown capability stays
// invisible rather than described-but-denied.
func (h *Handler) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	decls := h.registry.DeclarationsForRole(callerFrom(r).Role)
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": decls})
}

func callerFrom(r *http.Request) assistant.Identity {
	return assistant.Identity{
		UserID: strings.TrimSpace(r.Header.Get("X-User-Id")),
		Role:   strings.TrimSpace(r.Header.Get("X-User-Role")),
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
