package capability

import (
	"testing"

	"educore/internal/tester"
)

type presignedLink struct {
	url string
}

func (p presignedLink) Plain() any {
	return map[string]any{"url": p.url}
}

func TestPlain(t *testing.T) {
	out, err := Plain(nil)
	tester.NoErr(t, err)
	tester.True(t, out == nil)

	type row struct {
		ID    string `json:"id"`
		Score int    `json:"score"`
	}
	out, err = Plain(row{ID: "s-1", Score: 90})
	tester.NoErr(t, err)
	tester.Eq(t, out, any(map[string]any{"id": "s-1", "score": float64(90)}))

	out, err = Plain([]row{{ID: "a"}, {ID: "b"}})
	tester.NoErr(t, err)
	rows, ok := out.([]any)
	tester.True(t, ok)
	tester.Eq(t, len(rows), 2)

	out, err = Plain(presignedLink{url: "https://cdn.example/materials/1"})
	tester.NoErr(t, err)
	tester.Eq(t, out, any(map[string]any{"url": "https://cdn.example/materials/1"}))
}

func TestPlainArguments(t *testing.T) {
	args, err := plainArguments(nil)
	tester.NoErr(t, err)
	tester.True(t, args != nil, "handlers always receive a map")
	tester.Eq(t, len(args), 0)

	args, err = plainArguments(map[string]any{"limit": 5, "tags": []string{"math"}})
	tester.NoErr(t, err)
	tester.Eq(t, args["limit"], any(float64(5)))
	tags, ok := args["tags"].([]any)
	tester.True(t, ok, "nested values are decoded JSON types")
	tester.Eq(t, tags[0], any("math"))
}
