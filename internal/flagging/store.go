// Package flagging persists integrity flags raised over assistant answers
// so staff can review, resolve, or dismiss them. The assistant only writes
// here; the review surface reads and updates.
package flagging

import (
	"context"
	"errors"
	"time"

	"educore/internal/integrity"
)

var ErrNotFound = errors.New("flagging: not found")

// Status tracks a flag through review.
type Status string

const (
	StatusOpen      Status = "open"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

// Entry is one flagged answer with the verdict that raised it.
type Entry struct {
	ID         string            `json:"id"`
	TurnID     string            `json:"turn_id"`
	UserID     string            `json:"user_id,omitempty"`
	Role       string            `json:"role,omitempty"`
	Query      string            `json:"query,omitempty"`
	Answer     string            `json:"answer"`
	Score      int               `json:"score"`
	Summary    string            `json:"summary,omitempty"`
	Verdict    integrity.Verdict `json:"verdict"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	ResolvedBy string            `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
	Resolution string            `json:"resolution,omitempty"`
}

// Store persists flags. Record fills ID, Status and CreatedAt when unset;
// List returns newest first, filtered by status when one is given.
type Store interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	List(ctx context.Context, status Status, limit int) ([]Entry, error)
	Resolve(ctx context.Context, id, by, note string, dismiss bool) (Entry, error)
}
