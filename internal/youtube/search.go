package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sync"
)

// watchIDPattern matches watch links embedded in the results page markup.
var watchIDPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

// SearchResult is one hit from a search query, already trimmed down to
// what the web client renders.
type SearchResult struct {
	VideoID   string
	Title     string
	Channel   string
	Thumbnail string
}

// Search scrapes the results page for video ids and resolves each id's
// metadata, returning at most limit results in page order. Individual
// lookup failures drop that hit rather than failing the whole search.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("%s/results?search_query=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("youtube search failed with status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	ids := extractVideoIDs(string(body), limit)
	return c.lookupAll(ctx, ids), nil
}

// extractVideoIDs pulls up to limit distinct video ids out of a results
// page, preserving page order.
func extractVideoIDs(body string, limit int) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range watchIDPattern.FindAllStringSubmatch(body, -1) {
		id := m[1]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids
}

// lookupAll resolves metadata for each id concurrently, keeping page order
// and skipping ids whose lookup failed.
func (c *Client) lookupAll(ctx context.Context, ids []string) []SearchResult {
	results := make([]*SearchResult, len(ids))

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			v, err := c.yt.GetVideoContext(ctx, id)
			if err != nil {
				return
			}
			results[i] = &SearchResult{
				VideoID:   v.ID,
				Title:     v.Title,
				Channel:   v.Author,
				Thumbnail: pickThumbnail(v.Thumbnails),
			}
		}(i, id)
	}
	wg.Wait()

	out := make([]SearchResult, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
