package textproc

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var intraLineSpaceRe = regexp.MustCompile(`[ \t]{2,}`)

// Cleaner removes retrieval and pipeline artifacts from generated answers.
// Cleaning is idempotent and never fails: an empty input yields an empty
// output, and invalid custom rules are dropped at construction time.
type Cleaner struct {
	rules  compiledRules
	logger *slog.Logger
}

// NewCleaner creates a response cleaner using the default leakage table.
func NewCleaner(logger *slog.Logger) *Cleaner {
	return NewCleanerWithRules(DefaultLeakageRules(), logger)
}

// NewCleanerWithRules creates a response cleaner with a custom pattern table.
// Invalid expressions are skipped with a warning and the cleaner runs with the
// remaining rules.
func NewCleanerWithRules(rules RuleSet, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		rules:  compileRules(rules, logger),
		logger: logger,
	}
}

// Clean applies whole-line rules, then inline rules, then whitespace and
// punctuation normalization.
func (c *Cleaner) Clean(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		if c.matchesLineRule(line) {
			continue
		}
		out := line
		for _, r := range c.rules.inline {
			out = r.re.ReplaceAllString(out, r.replace)
		}
		out = intraLineSpaceRe.ReplaceAllString(out, " ")
		kept = append(kept, strings.TrimRight(out, " \t"))
	}

	cleaned := strings.Join(kept, "\n")
	cleaned = blankRunRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}

	if last, _ := utf8.DecodeLastRuneInString(cleaned); unicode.IsLetter(last) || unicode.IsDigit(last) {
		cleaned += "."
	}
	return cleaned
}

// IsClean reports whether the text is free of leakage indicators. A false
// result means another Clean pass would still change the text.
func (c *Cleaner) IsClean(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if c.matchesLineRule(line) {
			return false
		}
		for _, r := range c.rules.inline {
			if r.re.MatchString(line) {
				return false
			}
		}
	}
	return true
}

func (c *Cleaner) matchesLineRule(line string) bool {
	for _, r := range c.rules.line {
		if r.re.MatchString(line) {
			return true
		}
	}
	return false
}
