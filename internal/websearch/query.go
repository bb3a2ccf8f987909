package websearch

import "strings"

// Interrogative framing stripped from the front of a question before it is
// dispatched to the search provider. Longer variants come before their
// shorter prefixes so the first match is the longest one.
var framingPrefixes = []string{
	"please",
	"can you tell me",
	"could you tell me",
	"can you explain",
	"could you explain",
	"tell me about",
	"tell me",
	"explain",
	"describe",
	"what is", "what are", "what was", "what were", "what does", "what do",
	"who is", "who are", "who was",
	"where is", "where are", "where does", "where do", "where can",
	"when is", "when was", "when does", "when do",
	"why is", "why are", "why does", "why do",
	"how do i", "how do you", "how does", "how do", "how can i", "how can", "how to", "how is", "how are",
	"is", "are", "was", "were", "does", "do", "did", "can", "could", "will", "would", "should",
}

var queryFillerWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"please": {}, "kindly": {}, "just": {}, "really": {}, "actually": {},
	"basically": {}, "simply": {},
}

// rewriteQuery turns a natural-language question into search terms: trailing
// punctuation and interrogative framing are stripped, filler words dropped,
// content terms kept in their original casing. Falls back to the trimmed
// input when rewriting would leave nothing to search for.
func rewriteQuery(question string) string {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return ""
	}

	base := strings.TrimRight(trimmed, " ?!.")
	if base == "" {
		return trimmed
	}

	s := base
	for {
		lower := strings.ToLower(s)
		stripped := false
		for _, prefix := range framingPrefixes {
			if lower == prefix {
				s = ""
				stripped = true
				break
			}
			if strings.HasPrefix(lower, prefix+" ") {
				s = strings.TrimSpace(s[len(prefix)+1:])
				stripped = true
				break
			}
		}
		if !stripped || s == "" {
			break
		}
	}

	var kept []string
	for _, word := range strings.Fields(s) {
		if _, filler := queryFillerWords[strings.ToLower(word)]; filler {
			continue
		}
		kept = append(kept, word)
	}

	if len(kept) == 0 {
		return base
	}
	return strings.Join(kept, " ")
}
