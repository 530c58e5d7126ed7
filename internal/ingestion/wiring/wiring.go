// Package wiring builds an *orchestrator.Orchestrator from an
// IngestionConfig, shared by cmd/ingest and cmd/ingest-mcp so both
// entry points construct the pipeline identically.
package wiring

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	manifoldconfig "manifold/internal/config"
	"manifold/internal/ingestion/chunker"
	"manifold/internal/ingestion/classifier"
	ingestcfg "manifold/internal/ingestion/config"
	"manifold/internal/ingestion/handlers"
	"manifold/internal/ingestion/handlers/adaptive"
	"manifold/internal/ingestion/objectsource"
	"manifold/internal/ingestion/orchestrator"
	"manifold/internal/ingestion/paths"
	"manifold/internal/ingestion/structured"
	"manifold/internal/lakehouse/graph"
	"manifold/internal/lakehouse/tabular"
	"manifold/internal/lakehouse/vector"
	"manifold/internal/objectstore"
	"manifold/internal/rag/embedder"
)

// PullObjectStore downloads every object from cfg.ObjectStore's bucket
// into scratchDir when a bucket is configured, implementing the
// "pull raw files into a scratch directory before crawl" object-store
// interface. Returns (0, nil) when no bucket is configured.
func PullObjectStore(ctx context.Context, cfg ingestcfg.IngestionConfig, scratchDir string) (int, error) {
	if cfg.ObjectStore.Bucket == "" {
		return 0, nil
	}
	store, err := objectstore.NewS3Store(ctx, manifoldconfig.S3Config{
		Endpoint:     cfg.ObjectStore.Endpoint,
		Region:       cfg.ObjectStore.Region,
		Bucket:       cfg.ObjectStore.Bucket,
		Prefix:       cfg.ObjectStore.Prefix,
		AccessKey:    cfg.ObjectStore.AccessKey,
		SecretKey:    cfg.ObjectStore.SecretKey,
		UsePathStyle: cfg.ObjectStore.UsePathStyle,
	})
	if err != nil {
		return 0, fmt.Errorf("init object store: %w", err)
	}
	return objectsource.Pull(ctx, store, scratchDir)
}

// ParseFolders parses a comma-separated "folder_path[:category]" list
// into FolderConfig entries, matching cmd/ingest's -folders flag shape.
func ParseFolders(flagVal string, recursive bool) []orchestrator.FolderConfig {
	var out []orchestrator.FolderConfig
	for _, entry := range strings.Split(flagVal, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		fc := orchestrator.FolderConfig{Path: parts[0], Recursive: recursive}
		if len(parts) == 2 {
			fc.PreAssignedCategory = parts[1]
		}
		out = append(out, fc)
	}
	return out
}

// SplitCSV splits a comma-separated string into a trimmed, non-empty slice.
func SplitCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// BuildOrchestrator wires every optional stage from cfg, skipping any
// backend whose credentials/DSN are unset so the Orchestrator's nil
// checks degrade gracefully into the "store unavailable" branches.
// The returned close func releases every store/pool opened here.
func BuildOrchestrator(ctx context.Context, cfg ingestcfg.IngestionConfig, resolver *paths.Resolver, customerID string, httpClient *http.Client) (*orchestrator.Orchestrator, string, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	registry := handlers.NewRegistry()
	if cfg.OCREndpoint != "" {
		registry.SetPDFOCR(handlers.NewHTTPOCR(cfg.OCREndpoint, httpClient))
	}
	if cfg.ImageAnalysisEndpoint != "" {
		registry.SetImageAnalysis(handlers.NewHTTPImageAnalysis(cfg.ImageAnalysisEndpoint, httpClient))
	}

	var generator *adaptive.Generator
	if genProvider, err := ingestcfg.BuildProviderIfConfigured(cfg.HandlerGenLLM, httpClient); err != nil {
		closeAll()
		return nil, "", nil, fmt.Errorf("handler-gen llm: %w", err)
	} else if genProvider != nil {
		generator = &adaptive.Generator{Provider: genProvider, Model: cfg.HandlerGenLLM.Model, Timeout: cfg.AdaptiveHandlerTimeout}
	}

	classifierProvider, err := ingestcfg.BuildProviderIfConfigured(cfg.ClassifierLLM, httpClient)
	if err != nil {
		closeAll()
		return nil, "", nil, fmt.Errorf("classifier llm: %w", err)
	}
	cls := &classifier.Classifier{Provider: classifierProvider, Model: cfg.ClassifierLLM.Model}

	var structuredExtractor *structured.Extractor
	if structuredProvider, err := ingestcfg.BuildProviderIfConfigured(cfg.StructuredLLM, httpClient); err != nil {
		closeAll()
		return nil, "", nil, fmt.Errorf("structured llm: %w", err)
	} else if structuredProvider != nil {
		structuredExtractor = &structured.Extractor{Provider: structuredProvider, Model: cfg.StructuredLLM.Model}
	}

	var emb embedder.Embedder
	if cfg.Embedding.BaseURL != "" {
		emb = embedder.NewClient(manifoldconfig.EmbeddingConfig{
			BaseURL:   cfg.Embedding.BaseURL,
			Path:      cfg.Embedding.Path,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			APIHeader: cfg.Embedding.APIHeader,
		}, cfg.Embedding.Dimension)
	} else {
		emb = embedder.NewDeterministic(cfg.Embedding.Dimension, true, 0)
		log.Warn().Msg("no embedding endpoint configured; using deterministic fallback embedder")
	}

	var vecStore vector.Store
	switch strings.ToLower(cfg.VectorBackend) {
	case "qdrant":
		vs, err := vector.NewQdrant(cfg.VectorDSN, fmt.Sprintf("customer_%s", customerID))
		if err != nil {
			closeAll()
			return nil, "", nil, fmt.Errorf("init qdrant vector store: %w", err)
		}
		vecStore = vs
	case "postgres", "":
		if cfg.VectorDSN != "" {
			pool, err := pgxpool.New(ctx, cfg.VectorDSN)
			if err != nil {
				closeAll()
				return nil, "", nil, fmt.Errorf("connect vector postgres: %w", err)
			}
			closers = append(closers, pool.Close)
			vs, err := vector.NewPostgres(ctx, pool, "cosine")
			if err != nil {
				closeAll()
				return nil, "", nil, fmt.Errorf("init postgres vector store: %w", err)
			}
			vecStore = vs
		}
	default:
		closeAll()
		return nil, "", nil, fmt.Errorf("unsupported vector backend %q", cfg.VectorBackend)
	}

	var tabStore tabular.Store
	if cfg.TabularDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.TabularDSN)
		if err != nil {
			closeAll()
			return nil, "", nil, fmt.Errorf("connect tabular postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		ts, err := tabular.NewPostgres(ctx, pool)
		if err != nil {
			closeAll()
			return nil, "", nil, fmt.Errorf("init tabular store: %w", err)
		}
		tabStore = ts
	}

	var graphStore graph.Store
	if cfg.Graph.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Graph.DSN)
		if err != nil {
			closeAll()
			return nil, "", nil, fmt.Errorf("connect graph postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		gs, err := graph.NewPostgres(ctx, pool)
		if err != nil {
			closeAll()
			return nil, "", nil, fmt.Errorf("init graph store: %w", err)
		}
		graphStore = gs
	} else {
		graphStore = graph.NewMemory()
	}

	handlerStoreDir, err := resolver.Resolve(customerID, paths.KindHandlerStore)
	if err != nil {
		closeAll()
		return nil, "", nil, fmt.Errorf("resolve handler store path: %w", err)
	}
	if err := adaptive.LoadPersisted(registry, handlerStoreDir); err != nil {
		closeAll()
		return nil, "", nil, fmt.Errorf("load persisted handlers: %w", err)
	}

	o := &orchestrator.Orchestrator{
		Handlers:         registry,
		Generator:        generator,
		Classifier:       cls,
		ChunkConfig:      chunker.DefaultConfig(),
		Structured:       structuredExtractor,
		Embedder:         emb,
		Tabular:          tabStore,
		Vector:           vecStore,
		Graph:            graphStore,
		MaxWorkers:       cfg.MaxWorkers,
		MaxFileSizeBytes: cfg.MaxFileSizeBytes,
		MaxCrawlDepth:    cfg.MaxCrawlDepth,
		EmbedBatchSize:   cfg.EmbedBatchSize,
		IndexMinRows:     cfg.IndexMinRows,
	}

	closeFn := func() {
		if vecStore != nil {
			_ = vecStore.Close()
		}
		if tabStore != nil {
			_ = tabStore.Close()
		}
		if graphStore != nil {
			_ = graphStore.Close()
		}
		closeAll()
	}
	return o, handlerStoreDir, closeFn, nil
}
