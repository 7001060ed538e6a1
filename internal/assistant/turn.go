// Package assistant runs one conversational turn: validate the query,
// either dispatch an explicitly named function or hand the query to the
// model with the caller's callable capabilities as tools, execute requested
// calls in order, and assemble the reply together with its call/result
// transcript and integrity verdict.
package assistant

import (
	"context"

	"educore/internal/integrity"
)

// Identity is the authenticated caller. An empty role is anonymous.
type Identity struct {
	UserID string
	Role   string
}

// DirectCall names a function to execute without consulting the model.
type DirectCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// TurnRequest is one incoming query/reply cycle.
type TurnRequest struct {
	Query         string      `json:"query"`
	Direct        *DirectCall `json:"directFunctionCall,omitempty"`
	CourseContext string      `json:"courseContext,omitempty"`
	Caller        Identity    `json:"-"`
}

// FunctionCall records one requested invocation, in request order. Name is
// the spelling the caller or model used.
type FunctionCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// FunctionResult is the outcome at the matching position of FunctionCalls.
// Exactly one of Result and Error is meaningful; Name is canonical on
// success and the requested spelling on failure.
type FunctionResult struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TurnReply is the assembled answer. FunctionCalls and FunctionResults are
// parallel and equal-length on a completed turn, except on the direct
// branch's failure path where FunctionResults stays empty and Content
// restates the error.
type TurnReply struct {
	TurnID          string             `json:"turnId"`
	Content         string             `json:"content"`
	FunctionCalls   []FunctionCall     `json:"functionCalls"`
	FunctionResults []FunctionResult   `json:"functionResults"`
	Integrity       *integrity.Verdict `json:"integrity,omitempty"`
}

// FlagRecord carries a flagged answer to the persistence workflow.
type FlagRecord struct {
	TurnID  string
	UserID  string
	Role    string
	Query   string
	Answer  string
	Verdict integrity.Verdict
}

// FlagSink receives flagged verdicts. Implementations persist and escalate;
// a Record failure is logged by the orchestrator, never fatal to the turn.
type FlagSink interface {
	Record(ctx context.Context, rec FlagRecord) error
}
