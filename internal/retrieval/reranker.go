package retrieval

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_reranker.go -package=mocks askdocs-ai/internal/retrieval Reranker

import (
	"context"
	"sort"

	"askdocs-ai/internal/contextutil"
)

const (
	defaultMinSelect   = 2
	defaultMaxSelect   = 5
	defaultRelativeGap = 0.25

	fallbackVectorWeight  = 0.7
	fallbackLexicalWeight = 0.3
)

// Scorer scores (query, passage) pairs with a cross-encoder model.
type Scorer interface {
	ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Reranker re-orders retrieval candidates by cross-encoder relevance and
// selects a dynamic number of final chunks.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Result) ([]RankedResult, error)
}

// RerankOptions controls selection bounds and the gap cutoff.
type RerankOptions struct {
	// MinSelect is always kept when that many candidates exist.
	MinSelect int
	// MaxSelect caps the selection.
	MaxSelect int
	// RelativeGap stops selection once (prev-curr)/prev exceeds it: a large
	// drop means one chunk dominates, a flat tail means a broad query.
	RelativeGap float64
}

// DefaultRerankOptions returns the standard selection settings.
func DefaultRerankOptions() RerankOptions {
	return RerankOptions{
		MinSelect:   defaultMinSelect,
		MaxSelect:   defaultMaxSelect,
		RelativeGap: defaultRelativeGap,
	}
}

type crossEncoderReranker struct {
	scorer Scorer
	opts   RerankOptions
}

// NewReranker creates a reranker backed by the given scorer. scorer may be
// nil, in which case the lexical blend is used for every query.
func NewReranker(scorer Scorer, opts RerankOptions) Reranker {
	if opts.MinSelect <= 0 {
		opts.MinSelect = defaultMinSelect
	}
	if opts.MaxSelect < opts.MinSelect {
		opts.MaxSelect = opts.MinSelect
	}
	if opts.RelativeGap <= 0 {
		opts.RelativeGap = defaultRelativeGap
	}
	return &crossEncoderReranker{
		scorer: scorer,
		opts:   opts,
	}
}

func (r *crossEncoderReranker) Rerank(ctx context.Context, query string, candidates []Result) ([]RankedResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(candidates) == 0 {
		return nil, nil
	}

	scores := r.scoreAll(ctx, query, candidates)

	ranked := make([]RankedResult, 0, len(candidates))
	for i, candidate := range candidates {
		ranked = append(ranked, RankedResult{
			Result:         candidate,
			RelevanceScore: scores[i],
			RetrievalRank:  i,
		})
	}

	// Stable sort: ties keep retrieval order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	if len(ranked) <= r.opts.MinSelect {
		return ranked, nil
	}

	selected := r.selectByGap(ranked)

	logger.InfoContext(ctx, "rerank completed",
		"candidates", len(candidates),
		"selected", len(selected),
		"top_score", selected[0].RelevanceScore,
	)
	return selected, nil
}

// scoreAll returns one relevance score per candidate, falling back to a
// deterministic lexical blend when the cross-encoder is unavailable.
func (r *crossEncoderReranker) scoreAll(ctx context.Context, query string, candidates []Result) []float64 {
	logger := contextutil.LoggerFromContext(ctx)

	if r.scorer != nil {
		passages := make([]string, len(candidates))
		for i, candidate := range candidates {
			passages[i] = candidate.Text
		}

		scores, err := r.scorer.ScorePairs(ctx, query, passages)
		if err == nil && len(scores) == len(candidates) {
			return scores
		}
		logger.WarnContext(ctx, "cross-encoder scoring failed, using lexical fallback", "error", err)
	}

	fallback := make([]float64, len(candidates))
	for i, candidate := range candidates {
		fallback[i] = fallbackVectorWeight*candidate.Score + fallbackLexicalWeight*lexicalScore(query, candidate.Text)
	}
	return fallback
}

// selectByGap keeps at least MinSelect results and extends up to MaxSelect
// while the relative score drop stays under the cutoff.
func (r *crossEncoderReranker) selectByGap(ranked []RankedResult) []RankedResult {
	maxSelect := r.opts.MaxSelect
	if maxSelect > len(ranked) {
		maxSelect = len(ranked)
	}

	keep := r.opts.MinSelect
	for i := r.opts.MinSelect; i < maxSelect; i++ {
		prev := ranked[i-1].RelevanceScore
		curr := ranked[i].RelevanceScore
		if relativeGap(prev, curr) > r.opts.RelativeGap {
			break
		}
		keep = i + 1
	}

	return ranked[:keep]
}

// relativeGap reports the fractional drop from prev to curr. Non-positive
// prev scores carry no magnitude information, so no gap is reported.
func relativeGap(prev, curr float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (prev - curr) / prev
}
