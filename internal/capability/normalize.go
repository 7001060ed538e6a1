package capability

import "encoding/json"

// Plainer lets a handler result provide its own plain-structure form before
// normalization.
type Plainer interface {
	Plain() any
}

// Plain flattens v into plain maps, slices, and scalars via a JSON round
// trip so nothing opaque leaves the dispatcher. Values implementing Plainer
// are converted first.
func Plain(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if p, ok := v.(Plainer); ok {
		v = p.Plain()
		if v == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// plainArguments applies the same round trip to an argument map, so schema
// validation and handlers always see decoded JSON types.
func plainArguments(args map[string]any) (map[string]any, error) {
	if len(args) == 0 {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(args))
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
