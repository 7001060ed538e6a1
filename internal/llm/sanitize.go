package llm

import (
	"encoding/base64"
	"regexp"
)

var (
	reDataURL = regexp.MustCompile(`(?is)\bdata:(image|video|audio)/[a-z0-9+.-]+;base64,[a-z0-9+/=\r\n]+`)
	reImgTag  = regexp.MustCompile(`(?is)<img[^>]*src=["']data:(image)/[^"']+["'][^>]*>`)
)

// RedactMedia walks any JSON-like value and replaces embedded media payloads
// with a marker, so transcripts sent to a model or written to the audit log
// never carry base64 blobs.
func RedactMedia(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = RedactMedia(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = RedactMedia(vv)
		}
		return out
	case string:
		if reDataURL.MatchString(x) || reImgTag.MatchString(x) || looksLikeBase64Blob(x) {
			return "[REDACTED media]"
		}
		return x
	default:
		return v
	}
}

func looksLikeBase64Blob(s string) bool {
	if len(s) < 512 {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

// Compact walks a JSON-like value, truncating strings beyond maxString runes
// and capping slices at maxItems entries. Non-positive limits mean no limit.
// Capped slices gain a trailing marker so readers know content was dropped.
func Compact(v any, maxString, maxItems int) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = Compact(vv, maxString, maxItems)
		}
		return out
	case []any:
		n := len(x)
		capped := false
		if maxItems > 0 && n > maxItems {
			n = maxItems
			capped = true
		}
		out := make([]any, 0, n+1)
		for i := 0; i < n; i++ {
			out = append(out, Compact(x[i], maxString, maxItems))
		}
		if capped {
			out = append(out, "[TRUNCATED list]")
		}
		return out
	case string:
		if maxString > 0 {
			runes := []rune(x)
			if len(runes) > maxString {
				return string(runes[:maxString]) + "…[truncated]"
			}
		}
		return x
	default:
		return v
	}
}
