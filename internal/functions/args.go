package functions

import "strings"

// The dispatcher JSON-normalizes arguments before invocation, so strings
// arrive as string and every number as float64. These helpers keep the
// extraction noise out of the handlers.

func str(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}
