package assistant

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxQueryRunes bounds a single query when no limit is configured.
const DefaultMaxQueryRunes = 4000

// ErrInvalidQuery wraps every query-validation failure so the transport
// boundary can map the whole family to a client error.
var ErrInvalidQuery = errors.New("assistant: invalid query")

// Characters rejected outright. The backing functions parameterize their
// data access, so this is an input contract against queries that are
// clearly probing the data layer rather than asking a question.
const disallowedQueryRunes = ";`\\<>{}"

// ValidateQuery enforces the input contract: non-blank, within maxRunes
// (DefaultMaxQueryRunes when non-positive), no control characters beyond
// ordinary whitespace, none of the disallowed punctuation.
func ValidateQuery(query string, maxRunes int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if maxRunes <= 0 {
		maxRunes = DefaultMaxQueryRunes
	}
	if n := utf8.RuneCountInString(query); n > maxRunes {
		return fmt.Errorf("%w: query is %d characters, limit is %d", ErrInvalidQuery, n, maxRunes)
	}
	for _, r := range query {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			// Ordinary formatting, fine.
		case unicode.IsControl(r):
			return fmt.Errorf("%w: query contains a control character", ErrInvalidQuery)
		case strings.ContainsRune(disallowedQueryRunes, r):
			return fmt.Errorf("%w: query contains disallowed character %q", ErrInvalidQuery, r)
		}
	}
	return nil
}
