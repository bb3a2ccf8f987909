package answer

// SourceType identifies where an answer source came from.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceWeb   SourceType = "web"
)

// Source is one contribution to the final answer, either the locally
// generated answer or a single web search hit.
type Source struct {
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"`
	Type       SourceType     `json:"source_type"`
	Title      string         `json:"title,omitempty"`
	URL        string         `json:"url,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Strategy names how local and web sources were combined.
type Strategy string

const (
	StrategyLocalOnly  Strategy = "local_only"
	StrategyWebPrimary Strategy = "web_primary"
	StrategyHybrid     Strategy = "hybrid"
)

// MergeResult is the outcome of combining local and web sources.
type MergeResult struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Strategy   Strategy `json:"strategy"`
	Sources    []Source `json:"sources"`
}
