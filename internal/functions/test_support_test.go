package functions

import (
	"context"
	"sync"
	"testing"

	"educore/internal/capability"
	"educore/internal/store"
	"educore/internal/tester"
)

func TestSearchFaqs(t *testing.T) {
	d, _ := setup(t)

	out := call(t, d, "student", "searchFaqs", map[string]any{"query": "password"})
	tester.Eq(t, out["count"], any(float64(1)))
	hit := out["faqs"].([]any)[0].(map[string]any)
	tester.Eq(t, hit["id"], any("faq-password"))

	all := call(t, d, "", "searchFaqs", nil)
	tester.Eq(t, all["count"], any(float64(4)), "empty query lists the whole FAQ")
}

func TestGetMyProfile(t *testing.T) {
	d, _ := setup(t)

	p := call(t, d, "student", "getMyProfile", map[string]any{"user_id": "u-alice"})
	tester.Eq(t, p["name"], any("Alice Tanaka"))
	tester.Eq(t, p["role"], any("student"))

	_, err := d.Execute(context.Background(), capability.CallRequest{
		Name: "getMyProfile", Arguments: map[string]any{"user_id": "u-ghost"},
	})
	tester.ErrIs(t, err, store.ErrNotFound)
}

// The pool-adapted lookups stay correct under concurrent use.
func TestPooledLookupsConcurrently(t *testing.T) {
	mem := store.NewMemory()
	reg := capability.NewRegistry()
	RegisterAll(reg, Deps{Store: mem, Pool: capability.NewPool(2)})
	d := capability.NewDispatcher(reg, 0, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Execute(context.Background(), capability.CallRequest{
				Name: "searchFaqs", Arguments: map[string]any{"query": "enroll"},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		tester.NoErr(t, err)
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s":       "  padded  ",
		"f":       float64(42),
		"i":       7,
		"flag":    true,
		"wrongly": "typed",
	}
	tester.Eq(t, str(args, "s"), "padded")
	tester.Eq(t, str(args, "missing"), "")
	tester.Eq(t, intArg(args, "f", -1), 42)
	tester.Eq(t, intArg(args, "i", -1), 7)
	tester.Eq(t, intArg(args, "missing", 9), 9)
	tester.Eq(t, intArg(args, "wrongly", 9), 9)
	tester.True(t, boolArg(args, "flag"))
	tester.False(t, boolArg(args, "missing"))
}
