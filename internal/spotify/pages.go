package spotify

import (
	"context"
	"encoding/json"
	"fmt"
)

// page is the envelope shared by all paginated endpoints: an items
// array plus an absolute URL for the next page, null on the last one.
type page struct {
	Items []json.RawMessage `json:"items"`
	Next  *string           `json:"next"`
}

// maxPages bounds cursor following. Well-behaved pagination never gets
// near this; it exists so an upstream bug returning a cyclic next
// pointer cannot spin forever.
const maxPages = 10000

// fetchAllPages walks cursor-linked pages starting at startPath,
// mapping each item with mapItem and flattening the results.
//
// Pages are fetched strictly sequentially: the provider's cursor
// semantics require page N to be consumed before page N+1 is requested.
// mapItem may return nil to skip an item (e.g. tracks removed upstream).
func fetchAllPages[T any](ctx context.Context, c *Client, startPath string, mapItem func(json.RawMessage) (*T, error)) ([]T, error) {
	var results []T

	next := startPath
	for pages := 0; next != ""; pages++ {
		if pages >= maxPages {
			return nil, fmt.Errorf("pagination exceeded %d pages starting at %s", maxPages, startPath)
		}

		var current page
		if err := c.AuthorizedRequest(ctx, next, &current); err != nil {
			return nil, err
		}

		for _, raw := range current.Items {
			item, err := mapItem(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to map page item: %w", err)
			}
			if item != nil {
				results = append(results, *item)
			}
		}

		if current.Next == nil {
			break
		}
		next = *current.Next
	}

	return results, nil
}
