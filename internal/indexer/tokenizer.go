package indexer

import (
	"context"
	"log/slog"
	"unicode"
)

// charsPerToken is the estimation ratio used for window sizing and the
// floor-tier token counter. Roughly right for English prose.
const charsPerToken = 4

// TokenCounter measures text in model tokens for chunk sizing decisions.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
	// Name identifies the counter tier in logs.
	Name() string
}

// availabilityProber is implemented by counters that need a reachability
// check before use (remote tokenizers).
type availabilityProber interface {
	Available(ctx context.Context) bool
}

// SelectCounter returns the first usable counter from the given tiers,
// falling back to the chars-per-token estimator when none qualifies. The
// chunker selects one tier per run so sizing decisions stay consistent
// within a document.
func SelectCounter(ctx context.Context, logger *slog.Logger, tiers ...TokenCounter) TokenCounter {
	for _, tier := range tiers {
		if tier == nil {
			continue
		}
		if prober, ok := tier.(availabilityProber); ok && !prober.Available(ctx) {
			logger.WarnContext(ctx, "token counter unavailable, trying next tier", "counter", tier.Name())
			continue
		}
		return tier
	}
	return CharCounter{}
}

// CharCounter is the floor tier: chars / 4, never fails.
type CharCounter struct{}

func (CharCounter) CountTokens(_ context.Context, text string) (int, error) {
	return estimateByChars(text), nil
}

func (CharCounter) Name() string { return "chars" }

func estimateByChars(text string) int {
	runes := 0
	for range text {
		runes++
	}
	if runes == 0 {
		return 0
	}
	return (runes + charsPerToken - 1) / charsPerToken
}

// SubwordCounter approximates a byte-pair tokenizer without a vocabulary:
// each word contributes roughly one token per four letters, punctuation and
// CJK characters count individually. Overestimates slightly on code, which
// errs on the safe side for embedding input limits.
type SubwordCounter struct{}

func (SubwordCounter) CountTokens(_ context.Context, text string) (int, error) {
	tokens := 0
	wordLen := 0

	flush := func() {
		if wordLen > 0 {
			tokens += (wordLen + charsPerToken - 1) / charsPerToken
			wordLen = 0
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			flush()
			tokens++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			wordLen++
		default:
			flush()
			tokens++
		}
	}
	flush()

	return tokens, nil
}

func (SubwordCounter) Name() string { return "subword" }

// runCounter wraps the selected tier for a single chunking run. If the tier
// fails mid-run it degrades to the chars floor and stays there, so one
// document is never sized by two different tiers after a transient error.
type runCounter struct {
	tier     TokenCounter
	degraded bool
	logger   *slog.Logger
}

func newRunCounter(tier TokenCounter, logger *slog.Logger) *runCounter {
	return &runCounter{tier: tier, logger: logger}
}

func (r *runCounter) count(ctx context.Context, text string) int {
	if !r.degraded {
		n, err := r.tier.CountTokens(ctx, text)
		if err == nil {
			return n
		}
		r.degraded = true
		r.logger.WarnContext(ctx, "token counter failed, degrading to chars estimate",
			"counter", r.tier.Name(),
			"error", err,
		)
	}
	return estimateByChars(text)
}
