package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultSearchTimeout = 15 * time.Second
	retryBackoff         = 500 * time.Millisecond
)

// Client calls a SearxNG-compatible metasearch instance over its JSON API.
type Client struct {
	BaseURL string
	client  *http.Client
	backoff time.Duration
}

// NewClient creates a new search client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	return &Client{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		backoff: retryBackoff,
	}
}

// SearchHit is one result from the search provider.
type SearchHit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Engine  string  `json:"engine"`
}

type searchResponse struct {
	Results []SearchHit `json:"results"`
}

// Search runs a query against the provider and returns at most maxResults
// hits in provider order. maxResults <= 0 returns everything the provider
// sent. A failed call is retried once after a short backoff; the caller's
// context deadline bounds both attempts.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	var hits []SearchHit
	var err error
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}

		hits, err = c.search(ctx, query)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if maxResults > 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

func (c *Client) search(ctx context.Context, query string) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	endpoint := fmt.Sprintf("%s/search?%s", c.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return searchResp.Results, nil
}
