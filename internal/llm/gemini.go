package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client. It serves
// both call shapes: single-shot JSON generation and tool conversation turns.
type GeminiClient struct {
	cli   *genai.Client
	model string
	rl    *rpsLimiter
}

// NewGeminiClient dials the Gemini API; the SDK reads its key from the
// environment. An optional client-side RPS bucket comes from LLM_RPS/LLM_BURST
// with GEMINI_RPS/GEMINI_BURST as fallback.
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	rps, _ := strconv.ParseFloat(firstEnv("LLM_RPS", "GEMINI_RPS"), 64)
	burst, _ := strconv.Atoi(firstEnv("LLM_BURST", "GEMINI_BURST"))
	return &GeminiClient{cli: cli, model: model, rl: newRPSLimiter(rps, burst)}, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }

func (g *GeminiClient) Close() error {
	g.rl.Stop()
	return nil
}

// GenerateJSON sends the concatenated prompt/input and requests
// application/json, retrying transient failures a few times.
func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.MarshalIndent(input, "", "  ")
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := g.rl.Acquire(ctx); err != nil {
			return nil, err
		}
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		switch {
		case err != nil:
			lastErr = err
		case len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0:
			lastErr = ErrInvalidJSON
		default:
			// Returned verbatim; consumers tolerate fenced JSON themselves.
			return json.RawMessage(resp.Candidates[0].Content.Parts[0].Text), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return nil, lastErr
}

// GenerateWithTools runs one conversation turn with function declarations
// attached and maps the reply back to the neutral Message form.
func (g *GeminiClient) GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts := make([]*genai.Part, 0, 1+len(m.Calls)+len(m.Results))
		if m.Text != "" {
			parts = append(parts, &genai.Part{Text: m.Text})
		}
		for _, c := range m.Calls {
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID: c.ID, Name: c.Name, Args: c.Args,
			}})
		}
		for _, r := range m.Results {
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID: r.ID, Name: r.Name, Response: r.Response,
			}})
		}
		if len(parts) == 0 {
			continue
		}
		role := m.Role
		if role == "" {
			role = RoleUser
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema, err := toGenaiSchema(t.Parameters)
			if err != nil {
				return Message{}, fmt.Errorf("llm: tool %s: %w", t.Name, err)
			}
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if err := g.rl.Acquire(ctx); err != nil {
		return Message{}, err
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Message{}, err
	}

	out := Message{Role: RoleModel}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, nil
	}
	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		if p.FunctionCall != nil {
			out.Calls = append(out.Calls, ToolCall{
				ID:   p.FunctionCall.ID,
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			})
			continue
		}
		if p.Text != "" {
			text.WriteString(p.Text)
		}
	}
	out.Text = text.String()
	return out, nil
}

// wireSchema is the JSON-schema subset tool declarations travel in.
type wireSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*wireSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *wireSchema            `json:"items,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
}

func toGenaiSchema(raw json.RawMessage) (*genai.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var w wireSchema
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return buildSchema(&w), nil
}

func buildSchema(w *wireSchema) *genai.Schema {
	if w == nil {
		return nil
	}
	s := &genai.Schema{Description: w.Description, Required: w.Required, Enum: w.Enum}
	switch strings.ToLower(w.Type) {
	case "object":
		s.Type = genai.TypeObject
		if len(w.Properties) > 0 {
			s.Properties = make(map[string]*genai.Schema, len(w.Properties))
			for k, v := range w.Properties {
				s.Properties[k] = buildSchema(v)
			}
		}
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		s.Items = buildSchema(w.Items)
	default:
		s.Type = genai.TypeString
	}
	return s
}
