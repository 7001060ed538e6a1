package flagging

import (
	"context"

	"go.uber.org/zap"

	"educore/internal/assistant"
)

// Sink adapts a Store to the orchestrator's flag callback.
type Sink struct {
	st  Store
	log *zap.Logger
}

var _ assistant.FlagSink = (*Sink)(nil)

func NewSink(st Store, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{st: st, log: logger}
}

func (s *Sink) Record(ctx context.Context, rec assistant.FlagRecord) error {
	e, err := s.st.Record(ctx, Entry{
		TurnID:  rec.TurnID,
		UserID:  rec.UserID,
		Role:    rec.Role,
		Query:   rec.Query,
		Answer:  rec.Answer,
		Score:   rec.Verdict.IntegrityScore,
		Summary: rec.Verdict.Analysis.Summary,
		Verdict: rec.Verdict,
	})
	if err != nil {
		return err
	}
	s.log.Info("integrity flag recorded",
		zap.String("flag_id", e.ID),
		zap.String("turn_id", e.TurnID),
		zap.Int("score", e.Score))
	return nil
}
