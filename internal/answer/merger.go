package answer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	defaultLocalTrustThreshold = 0.6
	defaultWebPrimaryMargin    = 0.15
	defaultRedundancyOverlap   = 0.5

	blendPrimaryWeight   = 0.7
	blendSecondaryWeight = 0.3
)

// MergeOptions configures how local and web evidence are combined.
type MergeOptions struct {
	// LocalTrustThreshold is the local confidence above which web evidence
	// can supplement but never displace the local answer.
	LocalTrustThreshold float64
	// WebPrimaryMargin is how much higher the best web confidence must be
	// before web content leads the answer.
	WebPrimaryMargin float64
	// RedundancyOverlap is the token-overlap similarity above which a
	// sentence repeats already included text.
	RedundancyOverlap float64
}

// DefaultMergeOptions returns the default merge configuration.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		LocalTrustThreshold: defaultLocalTrustThreshold,
		WebPrimaryMargin:    defaultWebPrimaryMargin,
		RedundancyOverlap:   defaultRedundancyOverlap,
	}
}

// Merger combines the local answer with web sources into one final answer.
// Merging is deterministic: identical inputs produce identical output.
type Merger struct {
	opts MergeOptions
}

// NewMerger creates a merger, filling unset options with defaults.
func NewMerger(opts MergeOptions) *Merger {
	if opts.LocalTrustThreshold <= 0 {
		opts.LocalTrustThreshold = defaultLocalTrustThreshold
	}
	if opts.WebPrimaryMargin <= 0 {
		opts.WebPrimaryMargin = defaultWebPrimaryMargin
	}
	if opts.RedundancyOverlap <= 0 {
		opts.RedundancyOverlap = defaultRedundancyOverlap
	}
	return &Merger{opts: opts}
}

// Merge picks a strategy and synthesizes the final answer. With no web
// sources the local answer passes through unchanged. A low-trust local
// answer clearly beaten by web confidence is replaced (web_primary);
// otherwise the local answer leads and non-redundant web sentences follow
// (hybrid). The blended confidence favors the stronger source and is
// clamped to [0,1].
func (m *Merger) Merge(local Source, web []Source, query string) MergeResult {
	local.Confidence = clamp01(local.Confidence)

	if len(web) == 0 {
		return MergeResult{
			Answer:     local.Content,
			Confidence: local.Confidence,
			Strategy:   StrategyLocalOnly,
			Sources:    []Source{local},
		}
	}

	ranked := make([]Source, len(web))
	copy(ranked, web)
	for i := range ranked {
		ranked[i].Confidence = clamp01(ranked[i].Confidence)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	best := ranked[0]
	if local.Confidence < m.opts.LocalTrustThreshold &&
		best.Confidence-local.Confidence >= m.opts.WebPrimaryMargin {
		return m.webPrimary(local, ranked, query)
	}
	return m.hybrid(local, ranked, query)
}

// webPrimary leads with the best web source, adds query-relevant sentences
// from the remaining web sources, and appends local content only where it
// is not redundant.
func (m *Merger) webPrimary(local Source, ranked []Source, query string) MergeResult {
	queryTerms := contentTerms(query)

	var parts []string
	var contributors []Source
	var accepted []tokens

	lead := strings.TrimSpace(ranked[0].Content)
	if lead != "" {
		parts = append(parts, lead)
		contributors = append(contributors, ranked[0])
		accepted = sentenceTokens(lead)
	}

	for _, src := range ranked[1:] {
		block, updated := m.filterSentences(src.Content, accepted, queryTerms)
		if block == "" {
			continue
		}
		parts = append(parts, block)
		contributors = append(contributors, src)
		accepted = updated
	}

	if block, _ := m.filterSentences(local.Content, accepted, nil); block != "" {
		parts = append(parts, block)
		contributors = append(contributors, local)
	}

	confidence := clamp01(blendPrimaryWeight*ranked[0].Confidence + blendSecondaryWeight*local.Confidence)
	return MergeResult{
		Answer:     strings.Join(parts, "\n\n"),
		Confidence: confidence,
		Strategy:   StrategyWebPrimary,
		Sources:    contributors,
	}
}

// hybrid leads with the local answer and appends non-redundant,
// query-relevant web sentences in confidence order.
func (m *Merger) hybrid(local Source, ranked []Source, query string) MergeResult {
	queryTerms := contentTerms(query)

	var parts []string
	var contributors []Source
	var accepted []tokens

	lead := strings.TrimSpace(local.Content)
	if lead != "" {
		parts = append(parts, lead)
		contributors = append(contributors, local)
		accepted = sentenceTokens(lead)
	}

	for _, src := range ranked {
		block, updated := m.filterSentences(src.Content, accepted, queryTerms)
		if block == "" {
			continue
		}
		parts = append(parts, block)
		contributors = append(contributors, src)
		accepted = updated
	}

	higher, lower := local.Confidence, ranked[0].Confidence
	if lower > higher {
		higher, lower = lower, higher
	}
	confidence := clamp01(blendPrimaryWeight*higher + blendSecondaryWeight*lower)
	return MergeResult{
		Answer:     strings.Join(parts, "\n\n"),
		Confidence: confidence,
		Strategy:   StrategyHybrid,
		Sources:    contributors,
	}
}

// filterSentences keeps the sentences of content that do not repeat already
// accepted text and, when queryTerms is non-empty, share at least one term
// with the query. Returns the kept block and the grown accepted list.
func (m *Merger) filterSentences(content string, accepted []tokens, queryTerms tokens) (string, []tokens) {
	var kept []string
	for _, sentence := range splitSentences(content) {
		set := tokenSet(sentence)
		if m.isRedundant(set, accepted) {
			continue
		}
		if len(queryTerms) > 0 && !sharesTerm(set, queryTerms) {
			continue
		}
		kept = append(kept, sentence)
		accepted = append(accepted, set)
	}
	return strings.Join(kept, " "), accepted
}

func (m *Merger) isRedundant(set tokens, accepted []tokens) bool {
	for _, prev := range accepted {
		if tokenOverlap(set, prev) >= m.opts.RedundancyOverlap {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type tokens map[string]struct{}

var mergeStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
	"what": {}, "which": {}, "who": {}, "where": {}, "when": {}, "why": {}, "how": {},
	"do": {}, "does": {}, "did": {}, "i": {}, "you": {}, "me": {}, "my": {},
}

var sentenceBoundaryRe = regexp.MustCompile(`[.!?]+[ \t]+`)

// splitSentences breaks text into sentences on terminator-plus-space
// boundaries and on newlines. Terminators stay attached to their sentence.
func splitSentences(text string) []string {
	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		start := 0
		for _, loc := range sentenceBoundaryRe.FindAllStringIndex(line, -1) {
			term := strings.TrimRight(line[loc[0]:loc[1]], " \t")
			if seg := strings.TrimSpace(line[start:loc[0]] + term); seg != "" {
				sentences = append(sentences, seg)
			}
			start = loc[1]
		}
		if tail := strings.TrimSpace(line[start:]); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

// tokenSet lowercases text and collects its alphanumeric words.
func tokenSet(text string) tokens {
	set := make(tokens)
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			set[word.String()] = struct{}{}
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return set
}

// contentTerms is tokenSet minus stopwords.
func contentTerms(text string) tokens {
	set := tokenSet(text)
	for w := range mergeStopwords {
		delete(set, w)
	}
	return set
}

// tokenOverlap is the Jaccard similarity of two token sets.
func tokenOverlap(a, b tokens) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func sharesTerm(set, terms tokens) bool {
	for t := range set {
		if _, ok := terms[t]; ok {
			return true
		}
	}
	return false
}

func sentenceTokens(text string) []tokens {
	sentences := splitSentences(text)
	sets := make([]tokens, 0, len(sentences))
	for _, s := range sentences {
		sets = append(sets, tokenSet(s))
	}
	return sets
}
