package textproc

import (
	"log/slog"
	"regexp"
)

// LineRule drops an entire line when its expression matches the line.
type LineRule struct {
	Name string
	Expr string
}

// InlineRule rewrites matching spans inside a line, leaving the rest intact.
type InlineRule struct {
	Name    string
	Expr    string
	Replace string
}

// RuleSet is a pattern table: plain data, interpreted by the cleaners. Custom
// tables can extend or replace the defaults without code changes.
type RuleSet struct {
	Line   []LineRule
	Inline []InlineRule
}

type compiledLineRule struct {
	name string
	re   *regexp.Regexp
}

type compiledInlineRule struct {
	name    string
	re      *regexp.Regexp
	replace string
}

type compiledRules struct {
	line   []compiledLineRule
	inline []compiledInlineRule
}

// compileRules compiles a rule set, skipping rules whose expressions do not
// compile. A skipped rule is logged and the cleaner runs with the reduced set;
// an invalid custom pattern must never take cleaning down with it.
func compileRules(rs RuleSet, logger *slog.Logger) compiledRules {
	var out compiledRules
	for _, r := range rs.Line {
		re, err := regexp.Compile(r.Expr)
		if err != nil {
			logger.Warn("skipping invalid line rule", "rule", r.Name, "error", err)
			continue
		}
		out.line = append(out.line, compiledLineRule{name: r.Name, re: re})
	}
	for _, r := range rs.Inline {
		re, err := regexp.Compile(r.Expr)
		if err != nil {
			logger.Warn("skipping invalid inline rule", "rule", r.Name, "error", err)
			continue
		}
		out.inline = append(out.inline, compiledInlineRule{name: r.Name, re: re, replace: r.Replace})
	}
	return out
}

// DefaultNoiseRules is the source-cleaning table applied before chunking. It
// targets web-page and document boilerplate: navigation, breadcrumbs,
// copyright footers, cookie banners, table-of-contents leaders, page numbers.
func DefaultNoiseRules() RuleSet {
	return RuleSet{
		Line: []LineRule{
			{Name: "skip_link", Expr: `^\s*(?i:skip to (?:main )?content)\s*$`},
			{Name: "breadcrumb", Expr: `^\s*[^>\n]{1,40}(?:\s*[>»]\s*[^>\n]{1,40}){2,}\s*$`},
			{Name: "click_here", Expr: `^\s*(?i:click here)\b.*$`},
			{Name: "copyright", Expr: `^\s*(?:©|\(c\)|(?i:copyright))\s+.*$`},
			{Name: "all_rights", Expr: `^.*(?i:all rights reserved)\.?\s*$`},
			{Name: "cookie_banner", Expr: `^\s*(?i:(?:we|this (?:site|website)) uses? cookies)\b.*$`},
			{Name: "page_number", Expr: `^\s*(?i:page)\s+\d+(?:\s+(?i:of)\s+\d+)?\s*$`},
			{Name: "toc_heading", Expr: `^\s*(?i:table of contents)\s*:?\s*$`},
			{Name: "toc_leader", Expr: `^.*\.{4,}\s*\d+\s*$`},
			{Name: "share_prompt", Expr: `^\s*(?i:share (?:this|on)|follow us)\b.*$`},
		},
	}
}

// DefaultLeakageRules is the response-cleaning table. It removes retrieval
// plumbing that leaks into generated answers: source dividers and labels,
// score annotations, search preambles, debug and request echoes.
func DefaultLeakageRules() RuleSet {
	return RuleSet{
		Line: []LineRule{
			{Name: "source_divider", Expr: `^\s*-{2,}\s*(?i:source)\s*\d*\s*-{2,}\s*$`},
			{Name: "source_label", Expr: `^\s*(?i:source)\s+\d+\s*:\s*$`},
			{Name: "search_preamble", Expr: `^\s*(?i:based on (?:the |my )?(?:web |external )?search(?: results?)?)\s*[,.:]?\s*$`},
			{Name: "debug_line", Expr: `^\s*\[?(?i:DEBUG|TRACE)\]?\s*[:\]]\s.*$`},
			{Name: "request_echo", Expr: `^\s*(?:GET|POST|PUT|DELETE|PATCH|HEAD)\s+/\S*(?:\s+HTTP/\d(?:\.\d)?)?\s*$`},
			{Name: "retrieval_note", Expr: `^\s*\((?i:retrieved|fetched)\s+from\b[^)]*\)\s*$`},
			{Name: "emoji_status", Expr: `^\s*[\x{2139}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{1F300}-\x{1FAFF}]\x{FE0F}?\s+.*$`},
		},
		Inline: []InlineRule{
			{Name: "score_annotation", Expr: `\s*[(\[](?i:score|confidence|relevance)\s*[:=]\s*[0-9]*\.?[0-9]+\s*[)\]]`, Replace: ""},
			{Name: "source_prefix", Expr: `^\s*(?i:source)\s+\d+\s*:\s*`, Replace: ""},
			{Name: "web_marker", Expr: `\s*[(\[](?i:web result|web source|from (?:the )?web)[)\]]`, Replace: ""},
			{Name: "preamble_prefix", Expr: `^(?i:based on (?:the |my )?(?:web |external )?search(?: results?)?)\s*[,:]\s*`, Replace: ""},
		},
	}
}

// navFragments are short navigation words dropped by the source cleaner when
// they make up an entire line.
var navFragments = map[string]struct{}{
	"home": {}, "menu": {}, "next": {}, "prev": {}, "previous": {},
	"back": {}, "top": {}, "share": {}, "print": {}, "login": {},
	"logout": {}, "search": {}, "close": {}, "ok": {}, "more": {},
}
