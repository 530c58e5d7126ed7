// Package orchestrator implements the Ingestion Orchestrator: the
// staged pipeline crawl → extract → classify → structurally-extract →
// chunk → embed → load, with progress observation, partial-failure
// tolerance, and per-stage concurrency control. Grounded on
// original_source/ingestion/orchestrator.py's IngestionOrchestrator
// state machine, generalized with customer_id scoping and the
// bounded-worker-pool model manifold's internal/agent/warpp.go and
// internal/tools/web/fetch_tool.go use golang.org/x/sync/errgroup for.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"manifold/internal/ingestion/chunker"
	"manifold/internal/ingestion/classifier"
	"manifold/internal/ingestion/entities"
	"manifold/internal/ingestion/handlers"
	"manifold/internal/ingestion/handlers/adaptive"
	"manifold/internal/ingestion/progress"
	"manifold/internal/ingestion/structured"
	"manifold/internal/ingestion/types"
	"manifold/internal/lakehouse/graph"
	"manifold/internal/lakehouse/tabular"
	"manifold/internal/lakehouse/vector"
	"manifold/internal/rag/embedder"
)

// Orchestrator wires every leaf subsystem together and drives one run's
// state machine. Any store/extractor field may be nil to disable that
// stage (e.g. no Graph store configured -> entity extraction is
// skipped), matching the source's lazy-loader "not available" branches.
type Orchestrator struct {
	Handlers  *handlers.Registry
	Generator *adaptive.Generator // optional: nil disables handler synthesis
	Classifier *classifier.Classifier
	ChunkConfig chunker.Config
	Structured *structured.Extractor // optional
	Embedder   embedder.Embedder
	Tabular    tabular.Store
	Vector     vector.Store
	Graph      graph.Store // optional: nil disables entity/graph stage

	MaxWorkers       int
	MaxFileSizeBytes int64
	MaxCrawlDepth    int
	EmbedBatchSize   int
	IndexMinRows     int

	HandlerStoreDir string // where Generator persists synthesized handler source
}

// processedDoc carries one file through chunk/embed/load after the
// extract/classify/structured-extract stages have populated it.
type processedDoc struct {
	desc   types.FileDescriptor
	chunks []types.Chunk
}

// Run executes the full pipeline for one customer's folder set and
// returns the final progress snapshot. Errors returned are run-level
// (e.g. the customer had zero folders); per-file failures are
// accumulated on the returned progress instead of aborting the run, so
// callers get an explicit result value rather than an exception-style
// abort partway through.
func (o *Orchestrator) Run(ctx context.Context, customerID string, folders []FolderConfig, deployment *types.DeploymentContext, sink *progress.Sink) (*types.IngestionProgress, error) {
	now := time.Now()
	p := &types.IngestionProgress{
		Status:           types.RunCrawling,
		StartedAt:        now,
		CountsByCategory: map[string]int{},
	}
	notify := func(phase string) {
		p.CurrentPhase = phase
		if sink != nil {
			sink.Notify(ctx, *p)
		}
	}
	notify("crawling")

	// Phase 1: crawl.
	files := crawlFolders(folders, o.MaxFileSizeBytes, o.MaxCrawlDepth)
	p.Total = len(files)
	if len(files) == 0 {
		p.Status = types.RunComplete
		completed := time.Now()
		p.CompletedAt = &completed
		notify("complete")
		return p, nil
	}

	// Phase 2: extract (bounded fan-out).
	o.extractAll(ctx, files, p, notify)

	// Phase 3: classify.
	p.Status = types.RunClassifying
	notify("classifying documents")
	o.classifyAll(ctx, files)
	for i := range files {
		if files[i].Category != "" {
			p.CountsByCategory[files[i].Category]++
		}
	}

	// Phase 3.5: structured extraction (gated per-file inside Extract).
	if o.Structured != nil && deployment != nil {
		p.Status = types.RunProcessing
		notify("structured extraction")
		o.structuredExtractAll(ctx, files, customerID, deployment, p)
	}

	// Phase 4: chunk + entity extraction.
	p.Status = types.RunProcessing
	notify("processing")
	docs := o.processAll(ctx, files, customerID, p, notify)

	// Phase 5: embed.
	p.Status = types.RunEmbedding
	notify("generating embeddings")
	if err := o.embedAndLoadVectors(ctx, customerID, docs, p); err != nil {
		p.AppendError(fmt.Sprintf("embedding: %v", err))
	}

	// Phase 6: load tabular records.
	p.Status = types.RunLoading
	notify("loading to lakehouse")
	if err := o.loadTabular(ctx, customerID, docs); err != nil {
		p.AppendError(fmt.Sprintf("tabular load: %v", err))
	}

	p.Status = types.RunComplete
	p.CurrentFile = ""
	completed := time.Now()
	p.CompletedAt = &completed
	notify("complete")
	return p, nil
}

// extractAll runs handler extraction for every file with bounded
// concurrency, a semaphore sized by MaxWorkers.
func (o *Orchestrator) extractAll(ctx context.Context, files []types.FileDescriptor, p *types.IngestionProgress, notify func(string)) {
	sem := semaphore.NewWeighted(int64(maxInt(o.MaxWorkers, 1)))
	done := make(chan int, len(files))

	for i := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			done <- i
			continue
		}
		go func(idx int) {
			defer sem.Release(1)
			defer func() { done <- idx }()
			o.extractOne(ctx, &files[idx])
		}(i)
	}
	for range files {
		<-done
	}

	for i := range files {
		if files[i].ExtractionStatus == types.StatusFailed {
			p.AppendError(fmt.Sprintf("%s: %s", files[i].Name, files[i].LastError))
		}
		if files[i].ExtractionStatus == types.StatusUnsupported {
			found := false
			for _, e := range p.UnknownExtensions {
				if e == files[i].Extension {
					found = true
					break
				}
			}
			if !found {
				p.UnknownExtensions = append(p.UnknownExtensions, files[i].Extension)
			}
		}
	}
	notify("extraction complete")
}

func (o *Orchestrator) extractOne(ctx context.Context, f *types.FileDescriptor) {
	h := o.Handlers.Get(f.Path)
	if h == nil && o.Generator != nil {
		if generated, _, ok := o.Generator.Generate(ctx, f.Path, o.HandlerStoreDir); ok {
			o.Handlers.Register(f.Extension, generated)
			h = generated
		}
	}
	if h == nil {
		f.ExtractionStatus = types.StatusUnsupported
		return
	}

	text, err := h.Extract(ctx, f.Path)
	if err != nil {
		f.ExtractionStatus = types.StatusFailed
		f.LastError = err.Error()
		return
	}
	f.ExtractedText = text
	if text == "" {
		f.ExtractionStatus = types.StatusEmpty
		return
	}
	f.ExtractionStatus = types.StatusOK
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
