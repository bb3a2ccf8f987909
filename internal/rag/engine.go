package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks askdocs-ai/internal/rag Engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"askdocs-ai/internal/answer"
	"askdocs-ai/internal/contextutil"
	"askdocs-ai/internal/llm"
	"askdocs-ai/internal/retrieval"
	"askdocs-ai/internal/service"
	"askdocs-ai/internal/storage"
	"askdocs-ai/internal/textproc"
	"askdocs-ai/internal/websearch"
)

const (
	defaultMaxSources   = 5
	defaultFetchTimeout = 20 * time.Second
	maxQuestionRunes    = 2000

	// Local confidence blends what the generator believed with how strong
	// the selected evidence was.
	genConfidenceWeight      = 0.6
	evidenceConfidenceWeight = 0.4

	// Context cap when the re-ranker fails and retrieval order is used as is.
	fallbackContextChunks = 5

	debugTextPreviewLen = 160
)

// noEvidenceAnswer is returned when neither the document nor the web
// produced usable content.
const noEvidenceAnswer = "I couldn't find enough information to answer this question."

// Engine answers questions over indexed documents, falling back to web
// evidence when local confidence is too low.
type Engine interface {
	Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error)
}

// Generator produces a grounded answer with a confidence estimate.
type Generator interface {
	Generate(ctx context.Context, question, contextText string) (llm.Generation, error)
}

// EngineOptions tune engine-wide defaults; per-request options override them.
type EngineOptions struct {
	// MaxSources caps fetched web sources when a request does not say.
	MaxSources int
	// FetchTimeout bounds the external fetch stage.
	FetchTimeout time.Duration
}

type answerEngine struct {
	documents storage.DocumentStore
	retriever retrieval.Retriever
	reranker  retrieval.Reranker
	generator Generator
	gate      *answer.Gate
	fetcher   websearch.Fetcher
	merger    *answer.Merger
	cleaner   *textproc.Cleaner
	opts      EngineOptions
}

// NewEngine creates the answering engine. fetcher may be nil, which disables
// external fallback regardless of request options.
func NewEngine(
	documents storage.DocumentStore,
	retriever retrieval.Retriever,
	reranker retrieval.Reranker,
	generator Generator,
	gate *answer.Gate,
	fetcher websearch.Fetcher,
	merger *answer.Merger,
	cleaner *textproc.Cleaner,
	opts EngineOptions,
) Engine {
	if opts.MaxSources <= 0 {
		opts.MaxSources = defaultMaxSources
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	return &answerEngine{
		documents: documents,
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		gate:      gate,
		fetcher:   fetcher,
		merger:    merger,
		cleaner:   cleaner,
		opts:      opts,
	}
}

// Answer runs the full pipeline: validate, retrieve, re-rank, generate,
// gate, optionally fetch web evidence, merge, and clean. Degraded stages
// (index down, fetch failure) reduce evidence instead of failing the
// request; the gate is always evaluated before any network call.
func (e *answerEngine) Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AnswerResponse{}, service.Invalid("question", "cannot be empty")
	}
	if utf8.RuneCountInString(question) > maxQuestionRunes {
		return AnswerResponse{}, service.Invalid("question", fmt.Sprintf("longer than %d characters", maxQuestionRunes))
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		return AnswerResponse{}, service.Invalid("document_id", "cannot be empty")
	}

	doc, err := e.documents.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return AnswerResponse{}, fmt.Errorf("%w: document %s", service.ErrNotFound, req.DocumentID)
		}
		return AnswerResponse{}, fmt.Errorf("failed to load document: %w", err)
	}

	fallbackEnabled := req.Options.UseExternalFallback && e.fetcher != nil

	logger.InfoContext(ctx, "answer pipeline started",
		"document", doc.Name,
		"question_length", len(question),
		"fallback_enabled", fallbackEnabled,
	)

	candidates, err := e.retriever.Retrieve(ctx, req.DocumentID, question)
	if err != nil {
		// Retrieval failures are degraded data, not request failures. The
		// gate escalates the missing evidence to fallback.
		if errors.Is(err, retrieval.ErrIndexUnavailable) {
			logger.WarnContext(ctx, "vector index unavailable, continuing with no local evidence", "error", err)
		} else {
			logger.WarnContext(ctx, "retrieval failed, continuing with no local evidence", "error", err)
		}
		candidates = nil
	}

	var selected []retrieval.RankedResult
	if len(candidates) > 0 {
		selected, err = e.reranker.Rerank(ctx, question, candidates)
		if err != nil {
			logger.WarnContext(ctx, "re-ranking failed, keeping retrieval order", "error", err)
			selected = rankedFromRetrieval(candidates, fallbackContextChunks)
		}
	}

	var gen llm.Generation
	if len(selected) > 0 {
		gen, err = e.generator.Generate(ctx, question, buildContext(selected))
		if err != nil {
			if !fallbackEnabled {
				logger.ErrorContext(ctx, "generation failed", "error", err)
				return AnswerResponse{}, fmt.Errorf("%w: failed to generate answer: %s", service.ErrExternalService, err)
			}
			logger.WarnContext(ctx, "generation failed, relying on external evidence", "error", err)
			gen = llm.Generation{}
		}
	} else {
		logger.InfoContext(ctx, "no local evidence, skipping generation", "document", doc.Name)
	}

	evidence := evidenceStrength(selected)
	localConfidence := genConfidenceWeight*gen.Confidence + evidenceConfidenceWeight*evidence

	// Gate before any network call.
	triggered := e.gate.ShouldTriggerFallback(localConfidence, req.Options.ConfidenceThreshold, gen.Answer)

	var webSources []answer.Source
	if triggered && fallbackEnabled {
		maxSources := req.Options.MaxSources
		if maxSources <= 0 {
			maxSources = e.opts.MaxSources
		}
		fetchCtx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
		webSources = e.fetcher.Fetch(fetchCtx, question, maxSources)
		cancel()
	}

	localSource := answer.Source{
		Content:    gen.Answer,
		Confidence: localConfidence,
		Type:       answer.SourceLocal,
		Metadata:   localMetadata(req.DocumentID, selected),
	}

	merged := e.merger.Merge(localSource, webSources, question)

	final := e.cleaner.Clean(merged.Answer)
	confidence := merged.Confidence
	if final == "" {
		final = noEvidenceAnswer
		confidence = 0
	}

	sources := make([]answer.Source, 0, len(merged.Sources))
	for _, s := range merged.Sources {
		if strings.TrimSpace(s.Content) != "" {
			sources = append(sources, s)
		}
	}

	resp := AnswerResponse{
		Answer:           final,
		Confidence:       confidence,
		Strategy:         merged.Strategy,
		Sources:          sources,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
	if req.Debug {
		resp.Debug = buildDebug(candidates, selected, localConfidence, triggered, len(webSources))
	}

	logger.InfoContext(ctx, "answer pipeline completed",
		"document", doc.Name,
		"strategy", string(merged.Strategy),
		"confidence", confidence,
		"local_confidence", localConfidence,
		"gate_triggered", triggered,
		"web_sources", len(webSources),
		"elapsed_ms", resp.ProcessingTimeMS,
	)
	return resp, nil
}

// buildContext concatenates the selected chunk texts for the generator.
// Plain blank-line joins: decorated headers tend to leak into answers.
func buildContext(selected []retrieval.RankedResult) string {
	var b strings.Builder
	for i, r := range selected {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(r.Text)
	}
	return b.String()
}

// evidenceStrength is the mean selected rerank score, each clamped to [0,1]
// since cross-encoder scores may be raw logits.
func evidenceStrength(selected []retrieval.RankedResult) float64 {
	if len(selected) == 0 {
		return 0
	}
	var sum float64
	for _, r := range selected {
		s := r.RelevanceScore
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		sum += s
	}
	return sum / float64(len(selected))
}

// rankedFromRetrieval wraps retrieval candidates unchanged, used when the
// re-ranking stage fails.
func rankedFromRetrieval(candidates []retrieval.Result, limit int) []retrieval.RankedResult {
	if len(candidates) < limit {
		limit = len(candidates)
	}
	ranked := make([]retrieval.RankedResult, 0, limit)
	for i := 0; i < limit; i++ {
		ranked = append(ranked, retrieval.RankedResult{
			Result:         candidates[i],
			RelevanceScore: candidates[i].Score,
			RetrievalRank:  i,
		})
	}
	return ranked
}

func localMetadata(documentID string, selected []retrieval.RankedResult) map[string]any {
	meta := map[string]any{"document_id": documentID}
	if len(selected) > 0 {
		ids := make([]string, 0, len(selected))
		for _, r := range selected {
			ids = append(ids, r.ChunkID)
		}
		meta["chunk_ids"] = ids
	}
	return meta
}

func buildDebug(candidates []retrieval.Result, selected []retrieval.RankedResult, localConfidence float64, triggered bool, webCount int) *DebugInfo {
	rerankScores := make(map[string]float64, len(selected))
	for _, r := range selected {
		rerankScores[r.ChunkID] = r.RelevanceScore
	}

	chunks := make([]RetrievedChunk, 0, len(candidates))
	for i, c := range candidates {
		rc := RetrievedChunk{
			ChunkID:     c.ChunkID,
			Ordinal:     c.Ordinal,
			ScoreVector: c.Score,
			Text:        previewText(c.Text),
			Rank:        i + 1,
		}
		if score, ok := rerankScores[c.ChunkID]; ok {
			rc.Selected = true
			rc.ScoreRerank = score
		}
		chunks = append(chunks, rc)
	}

	return &DebugInfo{
		RetrievedChunks: chunks,
		LocalConfidence: localConfidence,
		GateTriggered:   triggered,
		WebSourceCount:  webCount,
	}
}

func previewText(text string) string {
	if len(text) <= debugTextPreviewLen {
		return text
	}
	return text[:debugTextPreviewLen] + "..."
}
