package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CallRequest is one invocation as supplied by a caller or the model. Name
// may use either spelling convention.
type CallRequest struct {
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	CallerRole string         `json:"-"`
}

// CallResult pairs the canonical name with the normalized handler result.
type CallResult struct {
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
}

// Dispatcher resolves, authorizes, validates, and executes capability calls
// against one registry.
type Dispatcher struct {
	registry    *Registry
	callTimeout time.Duration
	log         *zap.Logger
}

// NewDispatcher wires a dispatcher to a registry. callTimeout bounds each
// invocation; zero leaves calls on the caller's deadline alone.
func NewDispatcher(registry *Registry, callTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, callTimeout: callTimeout, log: logger}
}

// Execute runs one capability call. Unresolvable names fail with
// *NotRegisteredError naming the raw request; a caller role outside the
// entry's allow-list fails with *NotAuthorizedError (an empty role is
// permitted here, listing narrowing happens upstream); handler failures
// surface as *HandlerError and are never swallowed. Results leave as plain
// maps, slices, and scalars.
func (d *Dispatcher) Execute(ctx context.Context, req CallRequest) (CallResult, error) {
	if d == nil || d.registry == nil {
		return CallResult{}, fmt.Errorf("capability: dispatcher is not configured")
	}

	canonical, ok := d.registry.Resolve(req.Name)
	if !ok {
		return CallResult{}, &NotRegisteredError{Requested: strings.TrimSpace(req.Name)}
	}
	e, ok := d.registry.lookup(canonical)
	if !ok {
		return CallResult{}, &NotRegisteredError{Requested: canonical}
	}

	role := strings.ToLower(strings.TrimSpace(req.CallerRole))
	if e.roles != nil && role != "" {
		if _, member := e.roles[role]; !member {
			return CallResult{}, &NotAuthorizedError{Name: canonical, Role: role}
		}
	}

	args, err := plainArguments(req.Arguments)
	if err != nil {
		return CallResult{}, &InvalidArgumentsError{Name: canonical, Err: err}
	}
	if e.validator != nil {
		if err := e.validator.Validate(args); err != nil {
			return CallResult{}, &InvalidArgumentsError{Name: canonical, Err: err}
		}
	}

	callCtx := ctx
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := e.Handler.Invoke(callCtx, args)
	if err != nil {
		d.log.Warn("capability call failed",
			zap.String("capability", canonical),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return CallResult{}, &HandlerError{Name: canonical, Err: err}
	}

	plain, err := Plain(out)
	if err != nil {
		return CallResult{}, &HandlerError{Name: canonical, Err: fmt.Errorf("normalize result: %w", err)}
	}
	d.log.Debug("capability call completed",
		zap.String("capability", canonical),
		zap.Duration("took", time.Since(start)))
	return CallResult{Name: canonical, Result: plain}, nil
}
