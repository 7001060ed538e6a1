package integrity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// wireVerdict is the classifier's reply shape. Pointers distinguish an
// absent member from a zero value: a missing flagged is a hard parse
// failure, a missing score gets a derived default.
type wireVerdict struct {
	Flagged        *bool  `json:"flagged"`
	IntegrityScore *int   `json:"integrity_score"`
	Summary        string `json:"summary"`
	Flags          []Flag `json:"flags"`
}

// StripFences removes a wrapping markdown code fence, tolerating the common
// case where a model fences its JSON despite being asked not to. Input
// without a leading fence is returned trimmed.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "json")
	t = strings.TrimPrefix(t, "JSON")
	if i := strings.Index(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

func parseVerdict(raw json.RawMessage) (Verdict, error) {
	body := StripFences(string(raw))
	var w wireVerdict
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Verdict{}, fmt.Errorf("integrity: decode verdict: %w", err)
	}
	if w.Flagged == nil {
		return Verdict{}, errors.New("integrity: verdict missing flagged boolean")
	}

	v := Verdict{
		Flagged:  *w.Flagged,
		Analysis: Analysis{Summary: w.Summary, Flags: w.Flags},
	}
	switch {
	case w.IntegrityScore != nil:
		v.IntegrityScore = clampScore(*w.IntegrityScore)
	case v.Flagged:
		v.IntegrityScore = 50
	default:
		v.IntegrityScore = 100
	}
	if v.Analysis.Flags == nil {
		v.Analysis.Flags = []Flag{}
	}
	for i := range v.Analysis.Flags {
		v.Analysis.Flags[i].Severity = normalizeSeverity(v.Analysis.Flags[i].Severity)
	}
	return v, nil
}

func normalizeSeverity(s Severity) Severity {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
