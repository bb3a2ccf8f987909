package answer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultConfidenceThreshold = 0.6
	defaultMinAnswerRunes      = 20
	defaultMaxArtifactRatio    = 0.4
)

// Markup and code punctuation that should not dominate a prose answer.
const artifactRunes = "{}[]<>#*_=|\\/~`$%^&@+"

// Refusal and hedge phrases that mark a generated answer as unusable no
// matter how confident the generator claims to be.
var defaultBoilerplatePhrases = []string{
	"i don't know",
	"i do not know",
	"i cannot answer",
	"i can't answer",
	"unable to answer",
	"insufficient information",
	"not enough information",
	"no relevant information",
	"does not contain information",
	"cannot be determined from",
	"as an ai language model",
}

// GateOptions configures the fallback gate.
type GateOptions struct {
	// ConfidenceThreshold is the minimum local confidence that avoids
	// fallback on its own.
	ConfidenceThreshold float64
	// MinAnswerRunes is the shortest answer accepted as substantive.
	MinAnswerRunes int
	// MaxArtifactRatio is the largest tolerated share of markup characters
	// among the answer's non-space characters.
	MaxArtifactRatio float64
	// BoilerplatePhrases are matched case-insensitively anywhere in the
	// answer; empty means the default list.
	BoilerplatePhrases []string
}

// DefaultGateOptions returns the default gate configuration.
func DefaultGateOptions() GateOptions {
	return GateOptions{
		ConfidenceThreshold: defaultConfidenceThreshold,
		MinAnswerRunes:      defaultMinAnswerRunes,
		MaxArtifactRatio:    defaultMaxArtifactRatio,
		BoilerplatePhrases:  defaultBoilerplatePhrases,
	}
}

// Gate decides whether a locally generated answer needs external evidence.
// It is pure: no I/O, no clock, same inputs always give the same decision.
type Gate struct {
	opts GateOptions
}

// NewGate creates a gate, filling unset options with defaults.
func NewGate(opts GateOptions) *Gate {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if opts.MinAnswerRunes <= 0 {
		opts.MinAnswerRunes = defaultMinAnswerRunes
	}
	if opts.MaxArtifactRatio <= 0 {
		opts.MaxArtifactRatio = defaultMaxArtifactRatio
	}
	if len(opts.BoilerplatePhrases) == 0 {
		opts.BoilerplatePhrases = defaultBoilerplatePhrases
	}
	return &Gate{opts: opts}
}

// Threshold returns the configured confidence threshold.
func (g *Gate) Threshold() float64 {
	return g.opts.ConfidenceThreshold
}

// ShouldTriggerFallback reports whether external evidence should be fetched
// for a local answer. threshold <= 0 uses the configured one. Confidence
// enters only the threshold comparison, so for fixed text the decision is
// monotone: once it passes at some confidence it passes at every higher one.
func (g *Gate) ShouldTriggerFallback(confidence, threshold float64, answerText string) bool {
	if threshold <= 0 {
		threshold = g.opts.ConfidenceThreshold
	}
	if confidence < threshold {
		return true
	}

	trimmed := strings.TrimSpace(answerText)
	if trimmed == "" {
		return true
	}
	if utf8.RuneCountInString(trimmed) < g.opts.MinAnswerRunes {
		return true
	}
	if artifactRatio(trimmed) > g.opts.MaxArtifactRatio {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range g.opts.BoilerplatePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	return false
}

// artifactRatio is the share of markup characters among non-space characters.
func artifactRatio(text string) float64 {
	var total, artifacts int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if strings.ContainsRune(artifactRunes, r) {
			artifacts++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(artifacts) / float64(total)
}
