package integrity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"educore/internal/llm"
)

// Review material caps, applied before the payload reaches the classifier.
const (
	maxFieldRunes = 6000
	maxListItems  = 50
)

// Request carries the material under review. Query and course context are
// optional and only sharpen the classifier's judgement.
type Request struct {
	AnswerText    string `json:"answer_text"`
	OriginalQuery string `json:"original_query,omitempty"`
	CourseContext string `json:"course_context,omitempty"`
}

// Guard asks a second model for an integrity verdict on assistant answers.
type Guard struct {
	cli  llm.Client
	mode FailMode
	log  *zap.Logger
}

// NewGuard wires the guard to its classifier client. mode selects the
// failure policy; a nil logger falls back to the no-op logger.
func NewGuard(cli llm.Client, mode FailMode, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode != FailClosed {
		mode = FailOpen
	}
	return &Guard{cli: cli, mode: mode, log: logger}
}

// Check reviews one assistant answer. Classifier failures, a call error,
// an unparseable reply or a missing flagged boolean, never surface as
// errors: in fail-open mode they yield a permissive verdict, in fail-closed
// mode a flagged zero-score verdict that holds the answer for manual
// review. Either way the cause lands in CheckError. An empty answer is
// trivially acceptable and skips the model call.
func (g *Guard) Check(ctx context.Context, req Request) Verdict {
	if strings.TrimSpace(req.AnswerText) == "" {
		return permissiveVerdict("")
	}
	if g == nil {
		return permissiveVerdict("integrity guard not configured")
	}
	if g.cli == nil {
		return g.fallback(errors.New("no classifier client configured"))
	}

	input := map[string]any{"answer_text": req.AnswerText}
	if req.OriginalQuery != "" {
		input["original_query"] = req.OriginalQuery
	}
	if req.CourseContext != "" {
		input["course_context"] = req.CourseContext
	}
	sanitized := llm.Compact(llm.RedactMedia(input), maxFieldRunes, maxListItems)

	ctx = llm.WithPhase(ctx, llm.PhaseIntegrity)
	raw, err := g.cli.GenerateJSON(ctx, rubric, sanitized)
	if err != nil {
		return g.fallback(fmt.Errorf("classifier call: %w", err))
	}
	v, err := parseVerdict(raw)
	if err != nil {
		return g.fallback(err)
	}
	if v.Flagged {
		g.log.Info("answer flagged",
			zap.Int("integrity_score", v.IntegrityScore),
			zap.Int("flags", len(v.Analysis.Flags)))
	}
	return v
}

func (g *Guard) fallback(cause error) Verdict {
	if g.mode == FailClosed {
		g.log.Warn("integrity check degraded, holding answer", zap.Error(cause))
		return restrictiveVerdict(cause.Error())
	}
	g.log.Warn("integrity check degraded, failing open", zap.Error(cause))
	return permissiveVerdict(cause.Error())
}
