package rag

import "askdocs-ai/internal/answer"

// AnswerOptions tune a single answer request.
type AnswerOptions struct {
	// UseExternalFallback allows the engine to fetch web evidence when the
	// local answer is gated as insufficient.
	UseExternalFallback bool `json:"use_external_fallback,omitempty"`
	// ConfidenceThreshold overrides the gate threshold for this request.
	// Zero means the configured default.
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	// MaxSources caps how many web sources are fetched and merged. Zero
	// means the configured default.
	MaxSources int `json:"max_sources,omitempty"`
}

// AnswerRequest asks a question against one indexed document.
type AnswerRequest struct {
	DocumentID string        `json:"document_id"`
	Question   string        `json:"question"`
	Options    AnswerOptions `json:"options"`
	// Debug returns retrieval and gating detail alongside the answer.
	Debug bool `json:"debug,omitempty"`
}

// AnswerResponse is the final answer with its provenance.
type AnswerResponse struct {
	Answer           string          `json:"answer"`
	Confidence       float64         `json:"confidence"`
	Strategy         answer.Strategy `json:"strategy"`
	Sources          []answer.Source `json:"sources"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	// Debug is populated only when the request asked for it.
	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo carries retrieval and gating detail for evaluation runs.
type DebugInfo struct {
	// RetrievedChunks lists every retrieval candidate with its scores.
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
	// LocalConfidence is the blended pre-merge confidence of the local answer.
	LocalConfidence float64 `json:"local_confidence"`
	// GateTriggered reports whether the fallback gate fired.
	GateTriggered bool `json:"gate_triggered"`
	// WebSourceCount is how many web sources the fetch stage returned.
	WebSourceCount int `json:"web_source_count"`
}

// RetrievedChunk is one retrieval candidate with scoring information.
type RetrievedChunk struct {
	// ChunkID is the stable chunk identifier.
	ChunkID string `json:"chunk_id"`
	// Ordinal is the chunk position within the document.
	Ordinal int `json:"ordinal"`
	// ScoreVector is the vector similarity score.
	ScoreVector float64 `json:"score_vector"`
	// ScoreRerank is the cross-encoder score; only set for selected chunks.
	ScoreRerank float64 `json:"score_rerank,omitempty"`
	// Selected reports whether the re-ranker kept this chunk for context.
	Selected bool `json:"selected"`
	// Text is the chunk text (truncated).
	Text string `json:"text"`
	// Rank is the rank of this chunk in the retrieval results (1-based).
	Rank int `json:"rank"`
}
