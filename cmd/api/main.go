package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"askdocs-ai/internal/answer"
	"askdocs-ai/internal/config"
	"askdocs-ai/internal/docsource"
	"askdocs-ai/internal/handlers"
	"askdocs-ai/internal/http"
	"askdocs-ai/internal/indexer"
	"askdocs-ai/internal/llm"
	"askdocs-ai/internal/rag"
	"askdocs-ai/internal/retrieval"
	"askdocs-ai/internal/storage"
	"askdocs-ai/internal/textproc"
	"askdocs-ai/internal/vectorindex"
	"askdocs-ai/internal/websearch"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API provides hybrid RAG (Retrieval-Augmented Generation) functionality for answering questions over indexed documents.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: AskDocs AI API
//   description: |
//     Hybrid RAG (Retrieval-Augmented Generation) API for answering questions over indexed documents.
//     Answers are grounded in locally indexed content; when local evidence is weak, a confidence gate
//     can pull in external web sources and merge them with the local answer.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	documentRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	// Initialize vector index backend
	var index vectorindex.VectorIndex
	switch cfg.VectorBackend {
	case "pgvector":
		index, err = vectorindex.NewPgvectorIndex(cfg.PostgresDSN, cfg.PostgresTable)
	default:
		index, err = vectorindex.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantCollection)
	}
	if err != nil {
		log.Fatalf("Failed to create vector index: %v", err)
	}

	// Ensure the index exists with the correct vector size
	if err := index.EnsureReady(ctx, cfg.EmbeddingVectorSize); err != nil {
		log.Fatalf("Failed to prepare vector index: %v", err)
	}
	slog.Info("Vector index ready", "backend", cfg.VectorBackend, "vector_size", cfg.EmbeddingVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingVectorSize, 0)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.EmbeddingVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.EmbeddingVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.EmbeddingVectorSize)

	// Pick the best available token counter for chunk sizing
	tokenCounter := indexer.SelectCounter(ctx, logger,
		llm.NewTokenizerClient(cfg.TokenizeBaseURL, cfg.LLMAPIKey, 0),
		indexer.SubwordCounter{},
	)
	slog.Info("Token counter selected", "counter", tokenCounter.Name())

	// Create indexing pipeline
	chunkerOpts := indexer.DefaultChunkerOptions()
	chunkerOpts.TargetTokens = cfg.ChunkTargetTokens
	chunkerOpts.OverlapTokens = cfg.ChunkOverlapTokens
	chunker := indexer.NewWindowChunker(tokenCounter, chunkerOpts, logger)
	indexerPipeline := indexer.NewPipeline(documentRepo, chunkRepo, embedder, index, chunker)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, 0)

	// Create the retrieval stack
	queryCache := retrieval.NewQueryCache(cfg.CacheSize, cfg.CacheTTL)
	retriever := retrieval.NewRetriever(embedder, index, chunkRepo, queryCache, retrieval.DefaultOptions())

	var scorer retrieval.Scorer
	if cfg.RerankBaseURL != "" {
		scorer = llm.NewRerankClient(cfg.RerankBaseURL, cfg.LLMAPIKey, cfg.RerankModelName, 0)
		slog.Info("Cross-encoder re-ranking enabled", "model", cfg.RerankModelName)
	} else {
		slog.Info("No rerank server configured, using lexical re-ranking")
	}
	reranker := retrieval.NewReranker(scorer, retrieval.DefaultRerankOptions())

	// Create the answer post-processing components
	gateOpts := answer.DefaultGateOptions()
	gateOpts.ConfidenceThreshold = cfg.ConfidenceThreshold
	gate := answer.NewGate(gateOpts)
	merger := answer.NewMerger(answer.DefaultMergeOptions())
	cleaner := textproc.NewCleaner(logger)

	// External web search fallback is optional
	var fetcher websearch.Fetcher
	if cfg.WebSearchBaseURL != "" {
		fetcher = websearch.NewFetcher(websearch.NewClient(cfg.WebSearchBaseURL, cfg.WebFetchTimeout))
		slog.Info("Web search fallback available", "base_url", cfg.WebSearchBaseURL)
	} else {
		slog.Info("No web search server configured, answers use local evidence only")
	}

	// Create the answer engine
	engine := rag.NewEngine(
		documentRepo,
		retriever,
		reranker,
		llmClient,
		gate,
		fetcher,
		merger,
		cleaner,
		rag.EngineOptions{
			MaxSources:   cfg.MaxWebSources,
			FetchTimeout: cfg.WebFetchTimeout,
		},
	)
	slog.Info("Answer engine initialized")

	// Optional filesystem document source
	var syncer *docsource.Syncer
	if cfg.DocsDir != "" {
		syncer = docsource.NewSyncer(docsource.NewScanner(cfg.DocsDir), indexerPipeline)
	}

	// Create router with dependencies
	deps := &http.Deps{
		Ask: handlers.NewAskHandler(engine, handlers.AskDefaults{
			UseExternalFallback: cfg.ExternalFallback,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			MaxSources:          cfg.MaxWebSources,
		}),
		Documents: handlers.NewDocumentHandler(indexerPipeline, documentRepo, cfg.EmbeddingModelName),
		Health:    handlers.NewHealthHandler(index, db),
		Sync:      handlers.NewSyncHandler(syncer),
	}
	router := http.NewRouter(deps)

	// Start document sync in background after router is ready
	if syncer != nil {
		go func() {
			syncCtx := context.Background()
			slog.Info("Starting background document sync", "docs_dir", cfg.DocsDir)
			if err := syncer.SyncAll(syncCtx); err != nil {
				slog.Error("Document sync completed with errors", "error", err)
			} else {
				slog.Info("Document sync completed successfully")
			}
		}()
	}

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
