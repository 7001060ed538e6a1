package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"educore/internal/capability"
	"educore/internal/integrity"
	"educore/internal/llm"
)

// DefaultMaxRounds is the number of tool-call rounds executed per turn.
// The model gets one final look at the results; calls it requests beyond
// the limit are not executed within the same turn.
const DefaultMaxRounds = 1

const systemPrompt = `You are the course assistant for an education platform.
Answer questions about courses, assignments, enrollments and notifications.
When an available function answers the question, call it instead of guessing.
Keep answers short and grounded in function results. Never invent course data.`

// Result payload caps applied before tool output is echoed back to the model.
const (
	maxResultRunes = 4000
	maxResultItems = 100
)

// Capabilities that act on the caller's own records. A direct call to one
// of these gets the caller's ID injected when the request leaves it out.
var defaultIdentityCalls = map[string]string{
	"getMyProfile":       "user_id",
	"getMyEnrollments":   "user_id",
	"getMyNotifications": "user_id",
	"getCourses":         "user_id",
}

// Config wires an Orchestrator. Registry, Dispatcher and Model are
// required; everything else degrades gracefully when absent.
type Config struct {
	Registry   *capability.Registry
	Dispatcher *capability.Dispatcher
	Model      llm.Client
	Broker     llm.PermitBroker
	Guard      *integrity.Guard
	Flags      FlagSink
	Logger     *zap.Logger

	MaxRounds     int
	MaxQueryRunes int

	// IdentityCalls overrides the default canonical-name → parameter map
	// used for identity injection on direct calls. Nil keeps the default.
	IdentityCalls map[string]string
}

// Orchestrator drives conversational turns against one registry and model.
type Orchestrator struct {
	cfg Config
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil || cfg.Dispatcher == nil {
		return nil, errors.New("assistant: registry and dispatcher are required")
	}
	if cfg.Model == nil {
		return nil, errors.New("assistant: model client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.MaxQueryRunes <= 0 {
		cfg.MaxQueryRunes = DefaultMaxQueryRunes
	}
	if cfg.IdentityCalls == nil {
		cfg.IdentityCalls = defaultIdentityCalls
	}
	return &Orchestrator{cfg: cfg}, nil
}

// Respond runs one turn. Validation failures and total orchestration
// failures (the model itself unreachable, no budget left) return an error;
// everything below that, a failing capability call or a degraded
// classifier, is folded into the reply instead.
func (o *Orchestrator) Respond(ctx context.Context, req TurnRequest) (*TurnReply, error) {
	// A direct call may omit the query; a present one is still held to the
	// input contract.
	if req.Direct == nil || strings.TrimSpace(req.Query) != "" {
		if err := ValidateQuery(req.Query, o.cfg.MaxQueryRunes); err != nil {
			return nil, err
		}
	}

	reply := &TurnReply{
		TurnID:          uuid.NewString(),
		FunctionCalls:   []FunctionCall{},
		FunctionResults: []FunctionResult{},
	}
	if req.Direct != nil {
		o.runDirect(ctx, req, reply)
		return reply, nil
	}
	if err := o.runModel(ctx, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// runDirect executes an explicitly named function. The model is never
// consulted and the answer is never sent for integrity review: content is
// a canned acknowledgement around the raw result, not model prose.
func (o *Orchestrator) runDirect(ctx context.Context, req TurnRequest, reply *TurnReply) {
	requested := strings.TrimSpace(req.Direct.Name)
	args := make(map[string]any, len(req.Direct.Arguments)+1)
	for k, v := range req.Direct.Arguments {
		args[k] = v
	}
	o.injectIdentity(requested, args, req.Caller)

	reply.FunctionCalls = append(reply.FunctionCalls, FunctionCall{Name: requested, Arguments: args})

	res, err := o.cfg.Dispatcher.Execute(ctx, capability.CallRequest{
		Name:       requested,
		Arguments:  args,
		CallerRole: req.Caller.Role,
	})
	if err != nil {
		o.cfg.Logger.Warn("direct call failed",
			zap.String("name", requested), zap.Error(err))
		reply.Content = "The function call could not be completed: " + err.Error()
		return
	}
	reply.FunctionResults = append(reply.FunctionResults, FunctionResult{Name: res.Name, Result: res.Result})
	reply.Content = fmt.Sprintf("Executed %s.\n%s", res.Name, compactJSON(res.Result))
}

func (o *Orchestrator) injectIdentity(requested string, args map[string]any, caller Identity) {
	if caller.UserID == "" {
		return
	}
	name := requested
	if canonical, ok := o.cfg.Registry.Resolve(requested); ok {
		name = canonical
	}
	param, ok := o.cfg.IdentityCalls[name]
	if !ok {
		return
	}
	if v, exists := args[param]; exists && v != nil && v != "" {
		return
	}
	args[param] = caller.UserID
}

func (o *Orchestrator) runModel(ctx context.Context, req TurnRequest, reply *TurnReply) error {
	tcli, ok := llm.AsToolClient(o.cfg.Model)
	if !ok {
		return fmt.Errorf("assistant: model %s: %w", o.cfg.Model.Name(), llm.ErrToolsUnsupported)
	}
	tools, err := o.toolDecls(req.Caller.Role)
	if err != nil {
		return err
	}

	if o.cfg.Broker != nil {
		budget := 1 + o.cfg.MaxRounds
		if o.cfg.Guard != nil {
			budget++
		}
		lease, err := o.cfg.Broker.Reserve(ctx, budget)
		if err != nil {
			return fmt.Errorf("assistant: reserve model budget: %w", err)
		}
		ctx = lease.Context(ctx)
	}
	ctx = llm.WithPhase(ctx, llm.PhaseAssistant)

	messages := []llm.Message{{Role: llm.RoleUser, Text: req.Query}}
	executed := 0
	for {
		turn, err := tcli.GenerateWithTools(ctx, llm.ToolRequest{
			System:   systemPrompt,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return fmt.Errorf("assistant: model call: %w", err)
		}
		if len(turn.Calls) == 0 {
			reply.Content = turn.Text
			break
		}
		if executed >= o.cfg.MaxRounds {
			o.cfg.Logger.Info("tool round limit reached",
				zap.Int("max_rounds", o.cfg.MaxRounds),
				zap.Int("dropped_calls", len(turn.Calls)))
			reply.Content = strings.TrimSpace(turn.Text)
			if reply.Content == "" {
				reply.Content = "I reached the limit of function calls for one reply. Ask a follow-up question to continue."
			}
			break
		}
		results := o.executeCalls(ctx, turn.Calls, req.Caller.Role, reply)
		messages = append(messages, turn, llm.Message{Role: llm.RoleUser, Results: results})
		executed++
	}
	o.review(ctx, req, reply)
	return nil
}

// executeCalls runs model-requested calls strictly in the order listed.
// A failing call occupies its result position with an error marker and
// never aborts the rest.
func (o *Orchestrator) executeCalls(ctx context.Context, calls []llm.ToolCall, role string, reply *TurnReply) []llm.ToolResult {
	results := make([]llm.ToolResult, 0, len(calls))
	for _, c := range calls {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		reply.FunctionCalls = append(reply.FunctionCalls, FunctionCall{ID: id, Name: c.Name, Arguments: c.Args})

		res, err := o.cfg.Dispatcher.Execute(ctx, capability.CallRequest{
			Name:       c.Name,
			Arguments:  c.Args,
			CallerRole: role,
		})
		if err != nil {
			o.cfg.Logger.Warn("model-requested call failed",
				zap.String("name", c.Name), zap.Error(err))
			reply.FunctionResults = append(reply.FunctionResults, FunctionResult{ID: id, Name: c.Name, Error: err.Error()})
			results = append(results, llm.ToolResult{ID: id, Name: c.Name, Response: map[string]any{"error": err.Error()}})
			continue
		}
		reply.FunctionResults = append(reply.FunctionResults, FunctionResult{ID: id, Name: res.Name, Result: res.Result})
		// The transcript keeps the model's own spelling so the response
		// pairs with its call.
		results = append(results, llm.ToolResult{ID: id, Name: c.Name, Response: toolResponse(res.Result)})
	}
	return results
}

func (o *Orchestrator) toolDecls(role string) ([]llm.ToolDecl, error) {
	decls := o.cfg.Registry.DeclarationsForRole(role)
	out := make([]llm.ToolDecl, 0, len(decls))
	for _, d := range decls {
		var params json.RawMessage
		if d.Parameters != nil {
			b, err := json.Marshal(d.Parameters)
			if err != nil {
				return nil, fmt.Errorf("assistant: tool %s: %w", d.Name, err)
			}
			params = b
		}
		out = append(out, llm.ToolDecl{Name: d.Name, Description: d.Description, Parameters: params})
	}
	return out, nil
}

// review runs the integrity guard over a model-branch answer and hands
// flagged verdicts to the sink. Classifier degradation never fails the
// turn; it rides along inside the verdict.
func (o *Orchestrator) review(ctx context.Context, req TurnRequest, reply *TurnReply) {
	if o.cfg.Guard == nil {
		return
	}
	verdict := o.cfg.Guard.Check(ctx, integrity.Request{
		AnswerText:    reply.Content,
		OriginalQuery: req.Query,
		CourseContext: req.CourseContext,
	})
	reply.Integrity = &verdict
	if !verdict.Flagged || o.cfg.Flags == nil {
		return
	}
	rec := FlagRecord{
		TurnID:  reply.TurnID,
		UserID:  req.Caller.UserID,
		Role:    req.Caller.Role,
		Query:   req.Query,
		Answer:  reply.Content,
		Verdict: verdict,
	}
	if err := o.cfg.Flags.Record(ctx, rec); err != nil {
		o.cfg.Logger.Error("recording integrity flag failed",
			zap.String("turn_id", reply.TurnID), zap.Error(err))
	}
}

func toolResponse(v any) map[string]any {
	v = llm.Compact(llm.RedactMedia(v), maxResultRunes, maxResultItems)
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": v}
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
