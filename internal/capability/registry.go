// Package capability keeps the catalog of callable platform functions and
// executes calls against it. Registration is best-effort and silent: a bad
// entry is reported in the returned result, never panicked on, and the rest
// of the catalog keeps working.
package capability

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RoleAdmin sees every declaration regardless of AllowedRoles.
const RoleAdmin = "admin"

// Registration describes one capability offered to the model: a handler, a
// human-readable description, a parameter schema, and an optional role
// allow-list. An empty AllowedRoles means any role, including anonymous,
// may invoke.
type Registration struct {
	Name         string
	Description  string
	Handler      Handler
	Parameters   *ParameterSchema
	AllowedRoles []string
}

// RegisterResult reports whether a registration was accepted. Rejections
// carry a reason for the startup pass to log; they are never raised, so one
// bad definition cannot abort startup.
type RegisterResult struct {
	Name     string
	Accepted bool
	Reason   string
}

// Declaration is the model-facing description of a capability. AllowedRoles
// is internal-only and deliberately absent.
type Declaration struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Parameters  *ParameterSchema `json:"parameters,omitempty"`
}

type entry struct {
	Registration
	roles     map[string]struct{} // lowercased allow-list, nil when unrestricted
	validator *jsonschema.Schema  // nil when Parameters is nil
}

// Registry holds capability registrations and resolves invocation names.
// Build one at process start, run the fixed registration pass, then hand it
// to the dispatcher and orchestrator; it is effectively immutable afterwards
// and reads take only the RLock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Register adds or replaces a capability by name. Re-registering a name
// overwrites the previous entry (last write wins) and keeps its position in
// the declaration order.
func (r *Registry) Register(reg Registration) RegisterResult {
	res := RegisterResult{Name: strings.TrimSpace(reg.Name)}
	if r == nil {
		res.Reason = "registry is nil"
		return res
	}
	if res.Name == "" {
		res.Reason = "name is empty"
		return res
	}
	if reg.Handler == nil {
		res.Reason = "handler is nil"
		return res
	}
	var validator *jsonschema.Schema
	if reg.Parameters != nil {
		v, err := reg.Parameters.compile(res.Name)
		if err != nil {
			res.Reason = "parameter schema: " + err.Error()
			return res
		}
		validator = v
	}

	e := &entry{Registration: reg, validator: validator}
	e.Registration.Name = res.Name
	if len(reg.AllowedRoles) > 0 {
		roles := make(map[string]struct{}, len(reg.AllowedRoles))
		for _, role := range reg.AllowedRoles {
			role = strings.ToLower(strings.TrimSpace(role))
			if role != "" {
				roles[role] = struct{}{}
			}
		}
		if len(roles) > 0 {
			e.roles = roles
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = map[string]*entry{}
	}
	if _, exists := r.entries[res.Name]; !exists {
		r.order = append(r.order, res.Name)
	}
	r.entries[res.Name] = e
	res.Accepted = true
	return res
}

// DeclarationsForRole lists the declarations visible to role, in
// registration order. An unspecified role and the administrative role see
// everything; any other role sees unrestricted entries plus those whose
// allow-list contains it (case-insensitive).
func (r *Registry) DeclarationsForRole(role string) []Declaration {
	if r == nil {
		return nil
	}
	role = strings.ToLower(strings.TrimSpace(role))
	all := role == "" || role == RoleAdmin

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Declaration, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if e == nil {
			continue
		}
		if !all && e.roles != nil {
			if _, ok := e.roles[role]; !ok {
				continue
			}
		}
		out = append(out, Declaration{
			Name:        e.Registration.Name,
			Description: e.Description,
			Parameters:  e.Parameters,
		})
	}
	return out
}

// Len reports how many capabilities are registered.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}
