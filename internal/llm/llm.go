package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidJSON reports a model reply that could not be used as JSON.
	ErrInvalidJSON = errors.New("llm: invalid JSON from model")
	// ErrToolsUnsupported reports a client that only speaks plain JSON mode.
	ErrToolsUnsupported = errors.New("llm: client does not support tool calling")
)

// Client is the minimal provider contract: single-shot JSON generation.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

// ToolClient extends Client with a function-calling conversation turn.
type ToolClient interface {
	Client
	GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error)
}

// AsToolClient reports whether c can run tool conversations. Middleware
// wrappers forward GenerateWithTools, so a wrapped provider keeps its answer.
func AsToolClient(c Client) (ToolClient, bool) {
	tc, ok := c.(ToolClient)
	return tc, ok
}

// Conversation roles as the wire protocol spells them.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ToolRequest is one model turn: the running transcript plus the tools the
// model may call.
type ToolRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDecl
}

// Message is one transcript entry. A user message carries Text and/or
// Results (tool outputs fed back); a model message carries Text and/or Calls.
type Message struct {
	Role    string
	Text    string
	Calls   []ToolCall
	Results []ToolResult
}

// ToolCall is an invocation the model asked for.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult echoes one call's output back to the model under the same ID.
type ToolResult struct {
	ID       string
	Name     string
	Response map[string]any
}

// ToolDecl advertises one callable function. Parameters holds the JSON-schema
// subset (object, typed properties, required) already serialized, so this
// package stays ignorant of who produced it.
type ToolDecl struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}
