// Package integrity screens assistant answers for academic-integrity
// violations using a second, independently configured model. The guard is
// advisory: by default it fails open, because an unavailable classifier must
// never block a legitimate answer from reaching a student.
package integrity

import "strings"

// Severity grades one violation finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Flag is one itemized violation in a verdict.
type Flag struct {
	Type           string   `json:"type"`
	Severity       Severity `json:"severity"`
	Explanation    string   `json:"explanation,omitempty"`
	TextSpan       string   `json:"text_span,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Analysis groups the reviewer's findings.
type Analysis struct {
	Summary string `json:"summary"`
	Flags   []Flag `json:"flags"`
}

// Verdict is the structured review of one assistant answer. CheckError is
// populated when the verdict is a fail-open default, so a degraded
// classifier is visible in logs and stored flags without failing the turn.
type Verdict struct {
	Flagged        bool     `json:"flagged"`
	IntegrityScore int      `json:"integrityScore"`
	Analysis       Analysis `json:"analysis"`
	CheckError     string   `json:"checkError,omitempty"`
}

// FailMode selects what a classifier failure does to the turn.
type FailMode string

const (
	// FailOpen converts any classifier failure into a permissive verdict.
	FailOpen FailMode = "open"
	// FailClosed surfaces classifier failures as errors to the caller.
	FailClosed FailMode = "closed"
)

// ParseFailMode reads a config string; anything but "closed" is open.
func ParseFailMode(s string) FailMode {
	if strings.EqualFold(strings.TrimSpace(s), string(FailClosed)) {
		return FailClosed
	}
	return FailOpen
}

func permissiveVerdict(checkErr string) Verdict {
	return Verdict{
		Flagged:        false,
		IntegrityScore: 100,
		Analysis:       Analysis{Flags: []Flag{}},
		CheckError:     checkErr,
	}
}

// restrictiveVerdict is the fail-closed counterpart: the answer is marked
// held for manual review instead of passing unexamined.
func restrictiveVerdict(checkErr string) Verdict {
	return Verdict{
		Flagged:        true,
		IntegrityScore: 0,
		Analysis: Analysis{
			Summary: "integrity review unavailable; answer held for manual review",
			Flags:   []Flag{},
		},
		CheckError: checkErr,
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
