package websearch

import (
	"context"
	"strings"

	"askdocs-ai/internal/answer"
	"askdocs-ai/internal/contextutil"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_fetcher.go -package=mocks askdocs-ai/internal/websearch Fetcher

const defaultMaxResults = 5

// Fetcher retrieves external evidence for questions the local document could
// not answer with enough confidence.
type Fetcher interface {
	// Fetch rewrites the question into search terms, queries the provider,
	// and maps hits to web answer sources. Provider and transport failures
	// degrade to an empty result; they never fail the request.
	Fetch(ctx context.Context, query string, maxResults int) []answer.Source
}

type searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error)
}

type fetcher struct {
	search searcher
}

// NewFetcher creates a Fetcher backed by the given search client.
func NewFetcher(client *Client) Fetcher {
	return &fetcher{search: client}
}

func (f *fetcher) Fetch(ctx context.Context, query string, maxResults int) []answer.Source {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(query) == "" {
		return nil
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	rewritten := rewriteQuery(query)

	hits, err := f.search.Search(ctx, rewritten, maxResults)
	if err != nil {
		logger.WarnContext(ctx, "external search failed, continuing without web evidence",
			"query", rewritten, "error", err)
		return nil
	}

	sources := make([]answer.Source, 0, len(hits))
	for _, hit := range hits {
		content := strings.TrimSpace(hit.Content)
		if content == "" {
			// A hit without a snippet carries nothing to merge.
			continue
		}

		var meta map[string]any
		if hit.Engine != "" {
			meta = map[string]any{"engine": hit.Engine}
		}

		sources = append(sources, answer.Source{
			Content:    content,
			Confidence: normalizeHitScore(hit.Score, len(sources)),
			Type:       answer.SourceWeb,
			Title:      strings.TrimSpace(hit.Title),
			URL:        hit.URL,
			Metadata:   meta,
		})
	}

	logger.InfoContext(ctx, "external evidence fetched",
		"query", rewritten,
		"hits", len(hits),
		"sources", len(sources),
	)
	return sources
}

// normalizeHitScore maps a provider relevance score onto [0,1]. SearxNG
// scores are unbounded positives, squashed with s/(s+1). Providers that
// return no score get a rank-decayed confidence instead.
func normalizeHitScore(score float64, rank int) float64 {
	if score > 0 {
		return score / (score + 1)
	}

	c := 0.6 - 0.1*float64(rank)
	if c < 0.1 {
		return 0.1
	}
	return c
}
