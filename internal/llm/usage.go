package llm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UsageLedger accumulates model usage into a JSON file, bucketed by UTC day
// and call phase. It is a coarse operational record, not billing-grade
// accounting.
type UsageLedger struct {
	mu   sync.Mutex
	path string
}

type usageLedgerFile struct {
	UpdatedAt string              `json:"updated_at"`
	Days      map[string]usageDay `json:"days"`
}

type usageDay struct {
	Requests int64                `json:"requests"`
	Errors   int64                `json:"errors"`
	Phases   map[string]usageStat `json:"phases"`
	Clients  map[string]usageStat `json:"clients"`
}

type usageStat struct {
	Requests int64 `json:"requests"`
	Errors   int64 `json:"errors"`
}

// NewUsageLedger creates a ledger that writes to path.
func NewUsageLedger(path string) *UsageLedger {
	return &UsageLedger{path: path}
}

// WithUsageLedger records every call (JSON and tool turns) to path. An empty
// path disables recording.
func WithUsageLedger(path string) Middleware {
	ledger := NewUsageLedger(path)
	return func(next Client) Client {
		return &usageTracked{next: next, ledger: ledger}
	}
}

type usageTracked struct {
	next   Client
	ledger *UsageLedger
}

func (u *usageTracked) Name() string { return u.next.Name() }
func (u *usageTracked) Close() error { return u.next.Close() }

func (u *usageTracked) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	out, err := u.next.GenerateJSON(ctx, prompt, input)
	u.ledger.record(PhaseFrom(ctx), u.next.Name(), err != nil)
	return out, err
}

func (u *usageTracked) GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error) {
	msg, err := forwardTools(ctx, u.next, req)
	u.ledger.record(PhaseFrom(ctx), u.next.Name(), err != nil)
	return msg, err
}

func (l *UsageLedger) record(phase, client string, hasErr bool) {
	if l == nil || l.path == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	dayKey := time.Now().UTC().Format("2006-01-02")
	f := usageLedgerFile{Days: map[string]usageDay{}}
	if b, err := os.ReadFile(l.path); err == nil {
		_ = json.Unmarshal(b, &f)
		if f.Days == nil {
			f.Days = map[string]usageDay{}
		}
	}

	d := f.Days[dayKey]
	if d.Phases == nil {
		d.Phases = map[string]usageStat{}
	}
	if d.Clients == nil {
		d.Clients = map[string]usageStat{}
	}
	d.Requests++
	if hasErr {
		d.Errors++
	}
	bump := func(m map[string]usageStat, key string) {
		s := m[key]
		s.Requests++
		if hasErr {
			s.Errors++
		}
		m[key] = s
	}
	bump(d.Phases, phase)
	bump(d.Clients, client)
	f.Days[dayKey] = d
	f.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, l.path)
}
