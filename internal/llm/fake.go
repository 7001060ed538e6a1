package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeClient returns deterministic JSON payloads per phase for offline runs
// and tests. Queued replies take precedence over the canned defaults.
type FakeClient struct {
	mu     sync.Mutex
	queued []json.RawMessage
	calls  []FakeCall
}

// FakeCall records one observed request.
type FakeCall struct {
	Phase  string
	Prompt string
	Input  any
}

func NewFakeClient() *FakeClient { return &FakeClient{} }

// Queue appends a raw JSON reply to be returned before any canned default.
func (f *FakeClient) Queue(raw string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, json.RawMessage(raw))
	return f
}

// Calls returns a copy of the recorded requests.
func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	phase := PhaseFrom(ctx)
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Phase: phase, Prompt: prompt, Input: input})
	if len(f.queued) > 0 {
		raw := f.queued[0]
		f.queued = f.queued[1:]
		f.mu.Unlock()
		return raw, nil
	}
	f.mu.Unlock()

	var obj any
	switch phase {
	case PhaseIntegrity:
		obj = map[string]any{
			"flagged":         false,
			"integrity_score": 100,
			"summary":         "no concerns",
		}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}

// FakeToolClient replays scripted conversation turns. It records every
// request so tests can assert on the transcript the caller assembled.
type FakeToolClient struct {
	FakeClient

	tmu      sync.Mutex
	turns    []Message
	requests []ToolRequest
	Err      error
}

func NewFakeToolClient(turns ...Message) *FakeToolClient {
	return &FakeToolClient{turns: turns}
}

func (f *FakeToolClient) Name() string { return "FakeToolLLM" }

// Requests returns a copy of the recorded tool requests.
func (f *FakeToolClient) Requests() []ToolRequest {
	f.tmu.Lock()
	defer f.tmu.Unlock()
	out := make([]ToolRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeToolClient) GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error) {
	f.tmu.Lock()
	f.requests = append(f.requests, req)
	if f.Err != nil {
		err := f.Err
		f.tmu.Unlock()
		return Message{}, err
	}
	if len(f.turns) == 0 {
		f.tmu.Unlock()
		return Message{Role: RoleModel}, nil
	}
	turn := f.turns[0]
	f.turns = f.turns[1:]
	f.tmu.Unlock()
	if turn.Role == "" {
		turn.Role = RoleModel
	}
	return turn, nil
}
