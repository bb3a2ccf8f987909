package textproc

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

var (
	horizontalRunRe = regexp.MustCompile(`[ \t]{3,}`)
	punctRunRe      = regexp.MustCompile(`([!-/:-@\[-` + "`" + `{-~])\1{4,}`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
	fenceRe         = regexp.MustCompile("^\\s*(```|~~~)")
)

// SourceCleaner strips boilerplate noise from raw document text before it is
// chunked. Fenced code blocks pass through untouched so the noise rules cannot
// mangle code samples.
type SourceCleaner struct {
	rules  compiledRules
	logger *slog.Logger
}

// NewSourceCleaner creates a source cleaner using the default noise table.
func NewSourceCleaner(logger *slog.Logger) *SourceCleaner {
	return NewSourceCleanerWithRules(DefaultNoiseRules(), logger)
}

// NewSourceCleanerWithRules creates a source cleaner with a custom pattern
// table. Invalid expressions are skipped with a warning.
func NewSourceCleanerWithRules(rules RuleSet, logger *slog.Logger) *SourceCleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceCleaner{
		rules:  compileRules(rules, logger),
		logger: logger,
	}
}

// Clean removes noise lines, drops junk fragments, and normalizes whitespace
// and punctuation runs. Returns the empty string when nothing survives.
func (s *SourceCleaner) Clean(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	inFence := false

	for _, line := range lines {
		if fenceRe.MatchString(line) {
			inFence = !inFence
			kept = append(kept, line)
			continue
		}
		if inFence {
			kept = append(kept, line)
			continue
		}

		if s.matchesLineRule(line) {
			continue
		}
		if isJunkLine(line) {
			continue
		}

		out := horizontalRunRe.ReplaceAllString(line, " ")
		out = punctRunRe.ReplaceAllString(out, "$1")
		kept = append(kept, strings.TrimRight(out, " \t"))
	}

	cleaned := strings.Join(kept, "\n")
	cleaned = blankRunRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

func (s *SourceCleaner) matchesLineRule(line string) bool {
	for _, r := range s.rules.line {
		if r.re.MatchString(line) {
			return true
		}
	}
	return false
}

// isJunkLine reports whether a line under ten characters is a noise fragment.
// Blank lines (paragraph structure), headings, list items, and short lines
// with sentence punctuation ("Yes.") are kept.
func isJunkLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if len(trimmed) >= 10 {
		return false
	}
	if strings.ContainsAny(trimmed, ".!?") {
		return false
	}
	if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "- ") {
		return false
	}

	word := strings.ToLower(strings.Trim(trimmed, " \t|-•>·"))
	if _, ok := navFragments[word]; ok {
		return true
	}

	// Lines with no letters at all (separators, stray numbers) are junk.
	hasLetter := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return true
	}

	// A lone short token without punctuation is a stray fragment.
	return !strings.ContainsAny(trimmed, " \t")
}
