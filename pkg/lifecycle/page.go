package lifecycle

import (
	"context"
	"fmt"
)

// MaxPages bounds CollectAll so a server that never stops returning a cursor
// cannot loop forever.
const MaxPages = 10000

// Page is one page of a paged list returned by the billing/CRM service
type Page[T any] struct {
	Items []T    `json:"items"`
	Next  string `json:"next_cursor,omitempty"`
}

// PageFunc fetches the page starting at cursor ("" for the first page)
type PageFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// CollectAll walks every page. Statistics are computed over the full set, not a page.
func CollectAll[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	var (
		all    []T
		cursor string
	)
	for i := 0; i < MaxPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", i+1, err)
		}
		all = append(all, page.Items...)
		if page.Next == "" {
			if all == nil {
				all = []T{}
			}
			return all, nil
		}
		cursor = page.Next
	}
	return nil, fmt.Errorf("gave up after %d pages: %w", MaxPages, ErrUnavailable)
}
