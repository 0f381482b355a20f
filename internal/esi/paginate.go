package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/logger"
)

// pageFanout bounds concurrent page fetches for one paginated call.
// The per-host token bucket still spaces the individual requests.
const pageFanout = 4

// GetPaginated fetches every page of a paginated endpoint and returns
// the concatenated raw items. Pagination style is discovered from the
// first response: an opaque cursor header when present, otherwise the
// 1-based page-count header.
func (c *Client) GetPaginated(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	q := cloneValues(query)
	q.Set("page", "1")
	body, header, err := c.getWithHeaders(ctx, path, q)
	if err != nil {
		return nil, err
	}

	var first []json.RawMessage
	if err := json.Unmarshal(body, &first); err != nil {
		return nil, errs.Internal("parse page 1 of %s: %v", path, err).Wrap(err)
	}

	// Cursor-style pagination first.
	if cursor := header.Get("X-Cursor-Next"); cursor != "" {
		return c.followCursor(ctx, path, query, first, cursor)
	}

	totalPages := pageCount(header)
	if totalPages <= 1 {
		return first, nil
	}

	// Remaining pages in parallel, order preserved by slot.
	pages := make([][]json.RawMessage, totalPages+1)
	pages[1] = first

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageFanout)
	for p := 2; p <= totalPages; p++ {
		g.Go(func() error {
			pq := cloneValues(query)
			pq.Set("page", strconv.Itoa(p))
			pbody, _, err := c.getWithHeaders(gctx, path, pq)
			if err != nil {
				return err
			}
			var items []json.RawMessage
			if err := json.Unmarshal(pbody, &items); err != nil {
				// A malformed page is skipped, not fatal for the batch.
				return nil
			}
			pages[p] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]json.RawMessage, 0, len(first)*totalPages)
	for p := 1; p <= totalPages; p++ {
		all = append(all, pages[p]...)
	}
	return all, nil
}

// followCursor walks cursor-header pagination to exhaustion.
func (c *Client) followCursor(ctx context.Context, path string, query url.Values, first []json.RawMessage, cursor string) ([]json.RawMessage, error) {
	all := first
	for cursor != "" {
		q := cloneValues(query)
		q.Set("cursor", cursor)
		body, header, err := c.getWithHeaders(ctx, path, q)
		if err != nil {
			return nil, err
		}
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, errs.Internal("parse cursor page of %s: %v", path, err).Wrap(err)
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		cursor = header.Get("X-Cursor-Next")
	}
	return all, nil
}

func pageCount(header http.Header) int {
	p := header.Get("X-Pages")
	if p == "" {
		return 1
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// decodeItems unmarshals raw paginated items into typed records, skipping
// malformed entries and reporting how many were dropped.
func decodeItems[T any](raw []json.RawMessage, what string) ([]T, int) {
	out := make([]T, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			skipped++
			continue
		}
		out = append(out, item)
	}
	if skipped > 0 {
		logger.Warn("ESI", fmt.Sprintf("%s: skipped %d malformed items", what, skipped))
	}
	return out, skipped
}
