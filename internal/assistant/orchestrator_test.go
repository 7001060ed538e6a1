package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"educore/internal/capability"
	"educore/internal/integrity"
	"educore/internal/llm"
)

type captureSink struct {
	mu   sync.Mutex
	err  error
	recs []FlagRecord
}

func (s *captureSink) Record(ctx context.Context, rec FlagRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *captureSink) records() []FlagRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FlagRecord(nil), s.recs...)
}

type brokenClient struct{}

func (brokenClient) Name() string { return "broken" }
func (brokenClient) Close() error { return nil }
func (brokenClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	return nil, errors.New("classifier offline")
}

type stubBroker struct {
	err      error
	reserved int
}

type passLease struct{}

func (passLease) Context(ctx context.Context) context.Context { return ctx }

func (b *stubBroker) Reserve(ctx context.Context, n int) (llm.Lease, error) {
	b.reserved = n
	if b.err != nil {
		return nil, b.err
	}
	return passLease{}, nil
}

func seedRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	results := []capability.RegisterResult{
		reg.Register(capability.Registration{
			Name:        "getCourses",
			Description: "List published courses.",
			Parameters: capability.Object(map[string]*capability.ParameterSchema{
				"user_id": capability.String("Only courses visible to this user."),
			}),
			Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
				return []any{map[string]any{"id": "cs101", "title": "Intro to CS"}}, nil
			}),
		}),
		reg.Register(capability.Registration{
			Name:        "getMyProfile",
			Description: "The caller's own profile.",
			Parameters: capability.Object(map[string]*capability.ParameterSchema{
				"user_id": capability.String("User ID."),
			}, "user_id"),
			Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
				return map[string]any{"user_id": args["user_id"], "name": "Sam"}, nil
			}),
		}),
		reg.Register(capability.Registration{
			Name:         "gradeSubmission",
			Description:  "Record a grade.",
			AllowedRoles: []string{"faculty", "admin"},
			Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
				return map[string]any{"graded": true}, nil
			}),
		}),
		reg.Register(capability.Registration{
			Name:        "explode",
			Description: "Always fails.",
			Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
				return nil, errors.New("kaput")
			}),
		}),
	}
	for _, r := range results {
		require.True(t, r.Accepted, r.Reason)
	}
	return reg
}

func newOrchestrator(t *testing.T, model llm.Client, mod func(*Config)) *Orchestrator {
	t.Helper()
	reg := seedRegistry(t)
	cfg := Config{
		Registry:   reg,
		Dispatcher: capability.NewDispatcher(reg, 0, zap.NewNop()),
		Model:      model,
	}
	if mod != nil {
		mod(&cfg)
	}
	o, err := New(cfg)
	require.NoError(t, err)
	return o
}

func TestRespondRejectsInvalidQuery(t *testing.T) {
	o := newOrchestrator(t, llm.NewFakeToolClient(), nil)
	for _, q := range []string{"", "   ", "drop; tables"} {
		_, err := o.Respond(context.Background(), TurnRequest{Query: q})
		require.ErrorIs(t, err, ErrInvalidQuery, "query %q", q)
	}
}

func TestDirectCallSkipsModel(t *testing.T) {
	model := llm.NewFakeToolClient()
	o := newOrchestrator(t, model, nil)

	reply, err := o.Respond(context.Background(), TurnRequest{
		Direct: &DirectCall{Name: "getCourses"},
		Caller: Identity{UserID: "u-1", Role: "student"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, reply.TurnID)
	require.Contains(t, reply.Content, "Executed getCourses")
	require.Contains(t, reply.Content, "cs101")
	require.Len(t, reply.FunctionCalls, 1)
	require.Len(t, reply.FunctionResults, 1)
	require.Equal(t, "getCourses", reply.FunctionResults[0].Name)
	require.Empty(t, model.Requests(), "the direct branch must never call the model")
}

func TestDirectCallInjectsCallerIdentity(t *testing.T) {
	o := newOrchestrator(t, llm.NewFakeToolClient(), nil)

	// Snake spelling: injection keys on the resolved canonical name, and
	// getMyProfile requires user_id, so the call only validates if
	// injection ran first.
	reply, err := o.Respond(context.Background(), TurnRequest{
		Direct: &DirectCall{Name: "get_my_profile"},
		Caller: Identity{UserID: "u-42", Role: "student"},
	})
	require.NoError(t, err)
	require.Len(t, reply.FunctionResults, 1)
	require.Equal(t, "getMyProfile", reply.FunctionResults[0].Name)
	res, ok := reply.FunctionResults[0].Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "u-42", res["user_id"])
}

func TestDirectCallKeepsExplicitUserID(t *testing.T) {
	o := newOrchestrator(t, llm.NewFakeToolClient(), nil)

	reply, err := o.Respond(context.Background(), TurnRequest{
		Direct: &DirectCall{
			Name:      "getMyProfile",
			Arguments: map[string]any{"user_id": "u-someone-else"},
		},
		Caller: Identity{UserID: "u-42", Role: "admin"},
	})
	require.NoError(t, err)
	res := reply.FunctionResults[0].Result.(map[string]any)
	require.Equal(t, "u-someone-else", res["user_id"])
}

func TestDirectCallIdentityOverride(t *testing.T) {
	// An override map that no longer lists getMyProfile disables injection
	// for it, so the handler sees no user_id and fails.
	o := newOrchestrator(t, llm.NewFakeToolClient(), func(c *Config) {
		c.IdentityCalls = map[string]string{"getCourses": "user_id"}
	})

	reply, err := o.Respond(context.Background(), TurnRequest{
		Direct: &DirectCall{Name: "getMyProfile"},
		Caller: Identity{UserID: "u-42", Role: "student"},
	})
	require.NoError(t, err)
	require.Empty(t, reply.FunctionResults)
	require.Contains(t, reply.Content, "could not be completed")
}

func TestDirectCallUnknownName(t *testing.T) {
	o := newOrchestrator(t, llm.NewFakeToolClient(), nil)

	reply, err := o.Respond(context.Background(), TurnRequest{
		Direct: &DirectCall{Name: "doSomething", Arguments: map[string]any{"x": 1}},
	})
	require.NoError(t, err, "an unknown name is a reply, not a request failure")
	require.Contains(t, reply.Content, "doSomething")
	require.Len(t, reply.FunctionCalls, 1)
	require.Empty(t, reply.FunctionResults)
	require.Nil(t, reply.Integrity)
}

func TestDirectCallRoleDenied(t *testing.T) {
	o := newOrchestrator(t, llm.NewFakeToolClient(), nil)

	reply, err := o.Respond(context.Background(), TurnRequest{
		Direct: &DirectCall{Name: "gradeSubmission"},
		Caller: Identity{UserID: "u-1", Role: "student"},
	})
	require.NoError(t, err)
	require.Contains(t, reply.Content, "gradeSubmission")
	require.Contains(t, reply.Content, "student")
	require.Empty(t, reply.FunctionResults)
}

func TestModelTurnPlainAnswer(t *testing.T) {
	model := llm.NewFakeToolClient(llm.Message{Text: "CS101 runs in the fall term."})
	o := newOrchestrator(t, model, nil)

	reply, err := o.Respond(context.Background(), TurnRequest{
		Query:  "When does CS101 run?",
		Caller: Identity{UserID: "u-1", Role: "student"},
	})
	require.NoError(t, err)
	require.Equal(t, "CS101 runs in the fall term.", reply.Content)
	require.Empty(t, reply.FunctionCalls)
	require.Empty(t, reply.FunctionResults)

	reqs := model.Requests()
	require.Len(t, reqs, 1)
	require.NotEmpty(t, reqs[0].System)
	var names []string
	for _, td := range reqs[0].Tools {
		names = append(names, td.Name)
	}
	require.Contains(t, names, "getCourses")
	require.Contains(t, names, "getMyProfile")
	require.NotContains(t, names, "gradeSubmission", "students must not be offered faculty tools")
}

func TestModelTurnExecutesCallsInOrder(t *testing.T) {
	model := llm.NewFakeToolClient(
		llm.Message{Calls: []llm.ToolCall{
			{ID: "c1", Name: "getCourses", Args: map[string]any{}},
			{ID: "c2", Name: "explode"},
			{ID: "c3", Name: "get_my_profile", Args: map[string]any{"user_id": "u-9"}},
		}},
		llm.Message{Text: "Here is what I found."},
	)
	o := newOrchestrator(t, model, nil)

	reply, err := o.Respond(context.Background(), TurnRequest{
		Query:  "What am I enrolled in?",
		Caller: Identity{UserID: "u-9", Role: "student"},
	})
	require.NoError(t, err)
	require.Equal(t, "Here is what I found.", reply.Content)
	require.Len(t, reply.FunctionCalls, 3)
	require.Len(t, reply.FunctionResults, 3, "calls and results stay parallel")

	require.Equal(t, "getCourses", reply.FunctionResults[0].Name)
	require.Empty(t, reply.FunctionResults[0].Error)

	require.Equal(t, "explode", reply.FunctionResults[1].Name)
	require.Contains(t, reply.FunctionResults[1].Error, "kaput")
	require.Nil(t, reply.FunctionResults[1].Result, "a failed call still occupies its slot")

	require.Equal(t, "get_my_profile", reply.FunctionCalls[2].Name, "the transcript keeps the model's spelling")
	require.Equal(t, "getMyProfile", reply.FunctionResults[2].Name, "results carry the canonical name")

	reqs := model.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	require.Len(t, last.Results, 3)
	require.Equal(t, "c2", last.Results[1].ID)
	require.Contains(t, last.Results[1].Response, "error")
}

func TestModelTurnRoundLimit(t *testing.T) {
	model := llm.NewFakeToolClient(
		llm.Message{Calls: []llm.ToolCall{{ID: "c1", Name: "getCourses"}}},
		llm.Message{Calls: []llm.ToolCall{{ID: "c2", Name: "getCourses"}}},
	)
	o := newOrchestrator(t, model, nil)

	reply, err := o.Respond(context.Background(), TurnRequest{
		Query:  "Keep looking things up forever.",
		Caller: Identity{Role: "student"},
	})
	require.NoError(t, err)
	require.Len(t, reply.FunctionCalls, 1, "calls past the round limit are not executed")
	require.Len(t, reply.FunctionResults, 1)
	require.NotEmpty(t, reply.Content, "a truncated turn still answers")
	require.Len(t, model.Requests(), 2)
}

func TestModelTurnHonorsConfiguredRounds(t *testing.T) {
	model := llm.NewFakeToolClient(
		llm.Message{Calls: []llm.ToolCall{{ID: "c1", Name: "getCourses"}}},
		llm.Message{Calls: []llm.ToolCall{{ID: "c2", Name: "getMyProfile", Args: map[string]any{"user_id": "u"}}}},
		llm.Message{Text: "two rounds of results later"},
	)
	o := newOrchestrator(t, model, func(c *Config) { c.MaxRounds = 2 })

	reply, err := o.Respond(context.Background(), TurnRequest{
		Query:  "Dig deeper.",
		Caller: Identity{Role: "student"},
	})
	require.NoError(t, err)
	require.Equal(t, "two rounds of results later", reply.Content)
	require.Len(t, reply.FunctionCalls, 2)
	require.Len(t, reply.FunctionResults, 2)
	require.Len(t, model.Requests(), 3)
}

func TestModelUnreachableSurfaces(t *testing.T) {
	model := llm.NewFakeToolClient()
	model.Err = errors.New("upstream 503")
	o := newOrchestrator(t, model, nil)

	_, err := o.Respond(context.Background(), TurnRequest{
		Query:  "Anything there?",
		Caller: Identity{Role: "student"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "model call")
}

func TestTurnReservesModelBudget(t *testing.T) {
	broker := &stubBroker{}
	o := newOrchestrator(t, llm.NewFakeToolClient(llm.Message{Text: "hi"}), func(c *Config) {
		c.Broker = broker
		c.Guard = integrity.NewGuard(llm.NewFakeClient(), integrity.FailOpen, nil)
	})

	_, err := o.Respond(context.Background(), TurnRequest{Query: "hello", Caller: Identity{Role: "student"}})
	require.NoError(t, err)
	require.Equal(t, 3, broker.reserved, "one opening call, one round, one review")

	broker.err = errors.New("budget exhausted")
	_, err = o.Respond(context.Background(), TurnRequest{Query: "hello again", Caller: Identity{Role: "student"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "reserve model budget")
}

func TestGuardFailOpenAttachesVerdict(t *testing.T) {
	o := newOrchestrator(t, llm.NewFakeToolClient(llm.Message{Text: "an answer"}), func(c *Config) {
		c.Guard = integrity.NewGuard(brokenClient{}, integrity.FailOpen, nil)
	})

	reply, err := o.Respond(context.Background(), TurnRequest{
		Query:  "Is this reviewed?",
		Caller: Identity{Role: "student"},
	})
	require.NoError(t, err, "a degraded classifier never fails the turn")
	require.NotNil(t, reply.Integrity)
	require.False(t, reply.Integrity.Flagged)
	require.Equal(t, 100, reply.Integrity.IntegrityScore)
	require.NotEmpty(t, reply.Integrity.CheckError)
}

func TestGuardFailClosedHoldsAnswer(t *testing.T) {
	sink := &captureSink{}
	o := newOrchestrator(t, llm.NewFakeToolClient(llm.Message{Text: "an answer"}), func(c *Config) {
		c.Guard = integrity.NewGuard(brokenClient{}, integrity.FailClosed, nil)
		c.Flags = sink
	})

	reply, err := o.Respond(context.Background(), TurnRequest{
		Query:  "Is this reviewed?",
		Caller: Identity{UserID: "u-9", Role: "student"},
	})
	require.NoError(t, err, "a degraded classifier holds the answer instead of failing the turn")
	require.NotNil(t, reply.Integrity)
	require.True(t, reply.Integrity.Flagged)
	require.Equal(t, 0, reply.Integrity.IntegrityScore)
	require.NotEmpty(t, reply.Integrity.CheckError)

	recs := sink.records()
	require.Len(t, recs, 1, "held answers land in the review queue")
	require.Equal(t, "u-9", recs[0].UserID)
}

func TestFlaggedAnswerReachesSink(t *testing.T) {
	guardCli := llm.NewFakeClient().Queue(`{"flagged": true, "integrity_score": 25, "summary": "full solution"}`)
	sink := &captureSink{}
	o := newOrchestrator(t, llm.NewFakeToolClient(llm.Message{Text: "here is the finished essay"}), func(c *Config) {
		c.Guard = integrity.NewGuard(guardCli, integrity.FailOpen, nil)
		c.Flags = sink
	})

	reply, err := o.Respond(context.Background(), TurnRequest{
		Query:  "write my essay",
		Caller: Identity{UserID: "u-3", Role: "student"},
	})
	require.NoError(t, err)
	require.NotNil(t, reply.Integrity)
	require.True(t, reply.Integrity.Flagged)

	recs := sink.records()
	require.Len(t, recs, 1)
	require.Equal(t, reply.TurnID, recs[0].TurnID)
	require.Equal(t, "u-3", recs[0].UserID)
	require.Equal(t, "write my essay", recs[0].Query)
	require.Equal(t, "here is the finished essay", recs[0].Answer)
	require.Equal(t, 25, recs[0].Verdict.IntegrityScore)
}

func TestSinkFailureDoesNotFailTurn(t *testing.T) {
	guardCli := llm.NewFakeClient().Queue(`{"flagged": true}`)
	sink := &captureSink{err: errors.New("flag store down")}
	o := newOrchestrator(t, llm.NewFakeToolClient(llm.Message{Text: "essay"}), func(c *Config) {
		c.Guard = integrity.NewGuard(guardCli, integrity.FailOpen, nil)
		c.Flags = sink
	})

	reply, err := o.Respond(context.Background(), TurnRequest{Query: "write it", Caller: Identity{Role: "student"}})
	require.NoError(t, err)
	require.True(t, reply.Integrity.Flagged)
}

func TestDirectBranchSkipsGuard(t *testing.T) {
	guardCli := llm.NewFakeClient()
	sink := &captureSink{}
	o := newOrchestrator(t, llm.NewFakeToolClient(), func(c *Config) {
		c.Guard = integrity.NewGuard(guardCli, integrity.FailOpen, nil)
		c.Flags = sink
	})

	reply, err := o.Respond(context.Background(), TurnRequest{
		Direct: &DirectCall{Name: "getCourses"},
		Caller: Identity{UserID: "u-1", Role: "student"},
	})
	require.NoError(t, err)
	require.Nil(t, reply.Integrity, "canned acknowledgements are not reviewed")
	require.Empty(t, guardCli.Calls())
	require.Empty(t, sink.records())
}
