package llm

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generation is a model answer plus the confidence derived from its token
// logprobs. Confidence is in [0,1]; when the server returns no logprobs the
// client reports the neutral default.
type Generation struct {
	Answer     string
	Confidence float64
}

// neutralConfidence is reported when the completion carries no logprob
// signal; it sits below typical gate thresholds so weak evidence still
// triggers fallback.
const neutralConfidence = 0.5
