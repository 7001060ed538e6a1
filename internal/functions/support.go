package functions

import (
	"context"
	"errors"
	"fmt"

	"educore/internal/capability"
	"educore/internal/store"
)

// The FAQ and profile lookups are adapted through the worker pool: they
// wrap synchronous library-style calls, so a burst of them queues on the
// pool instead of piling onto request goroutines. The adapted call itself
// does not observe cancellation; the pool's wait does.

// --------------------- searchFaqs ---------------------

type faqList struct {
	Query string      `json:"query,omitempty"`
	FAQs  []store.FAQ `json:"faqs"`
	Count int         `json:"count"`
}

func newSearchFaqs(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "searchFaqs",
		Description: "Search the platform FAQ. An empty query lists every entry.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"query": capability.String("Words to match against questions, answers and tags."),
		}),
		Handler: capability.Sync(d.Pool, func(args map[string]any) (any, error) {
			q := str(args, "query")
			faqs, err := d.Store.SearchFAQs(context.Background(), q)
			if err != nil {
				return nil, err
			}
			return faqList{Query: q, FAQs: faqs, Count: len(faqs)}, nil
		}),
	}
}

// --------------------- getMyProfile ---------------------

func newGetMyProfile(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "getMyProfile",
		Description: "Fetch a user's profile: name, email and role.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"user_id": capability.String("User whose profile to fetch."),
		}, "user_id"),
		Handler: capability.Sync(d.Pool, func(args map[string]any) (any, error) {
			userID := str(args, "user_id")
			if userID == "" {
				return nil, errors.New("user_id is required")
			}
			p, err := d.Store.Profile(context.Background(), userID)
			if err != nil {
				return nil, fmt.Errorf("profile %q: %w", userID, err)
			}
			return p, nil
		}),
	}
}
