package orchestrator

import (
	"context"
	"fmt"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"manifold/internal/ingestion/chunker"
	"manifold/internal/ingestion/entities"
	"manifold/internal/ingestion/types"
)

// entityGraphResult carries one file's entity/graph outcome back to the
// single progress-owning task; goroutines never touch *types.IngestionProgress
// directly: progress is written from a single task and read by observers.
type entityGraphResult struct {
	errs []string
}

// processAll chunks every extracted file and, when a Graph store is
// configured, fans entity extraction + graph loading out across
// MaxWorkers goroutines via errgroup, matching orchestrator.py's Phase 4
// (process) and Phase 4.5 (graph) blocks generalized with the bounded
// sub-stage composition manifold's worker-pool code uses errgroup for.
// Files without extracted text are dropped, matching _process_file's
// "skip files without extracted text" rule. Chunking itself stays
// sequential so docs preserves crawl order.
func (o *Orchestrator) processAll(ctx context.Context, files []types.FileDescriptor, customerID string, p *types.IngestionProgress, notify func(string)) []processedDoc {
	var docs []processedDoc

	for i := range files {
		f := &files[i]
		p.CurrentFile = f.Name
		notify(fmt.Sprintf("processing %s", f.Name))

		if f.ExtractedText == "" {
			continue
		}

		texts := chunker.Chunk(o.ChunkConfig, f.ExtractedText, f.Extension)
		if len(texts) == 0 {
			p.Failed++
			continue
		}

		chunks := make([]types.Chunk, len(texts))
		for j, t := range texts {
			chunks[j] = types.Chunk{
				ID:         fmt.Sprintf("%s_%d", f.Path, j),
				DocumentID: f.Path,
				Ordinal:    j,
				Text:       t,
				CharCount:  utf8.RuneCountInString(t),
				WordCount:  wordCount(t),
			}
		}

		docs = append(docs, processedDoc{desc: *f, chunks: chunks})
		p.Processed++
	}

	if o.Graph != nil {
		o.loadEntityGraphAll(ctx, files, customerID, p)
	}
	return docs
}

// loadEntityGraphAll runs entity extraction + graph loading for every
// file with extracted text, bounded to MaxWorkers concurrent files.
func (o *Orchestrator) loadEntityGraphAll(ctx context.Context, files []types.FileDescriptor, customerID string, p *types.IngestionProgress) {
	results := make([]entityGraphResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(o.MaxWorkers, 1))

	for i := range files {
		if files[i].ExtractedText == "" {
			continue
		}
		idx := i
		g.Go(func() error {
			results[idx] = o.loadEntityGraph(gctx, customerID, &files[idx])
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		for _, e := range r.errs {
			p.AppendError(e)
		}
	}
}

// loadEntityGraph runs entity extraction over one document and loads
// the resulting nodes/edges into the graph store, matching
// orchestrator.py's entity_extractor + graph_loader block. Errors are
// collected rather than written to progress directly, since this runs
// concurrently with sibling files.
func (o *Orchestrator) loadEntityGraph(ctx context.Context, customerID string, f *types.FileDescriptor) entityGraphResult {
	var res entityGraphResult
	extractor := &entities.Extractor{}

	ents, rels := extractor.Extract(f.ExtractedText, f.Path)
	if len(ents) == 0 {
		return res
	}

	if err := o.Graph.UpsertDocument(ctx, graphDocumentNode(customerID, f)); err != nil {
		res.errs = append(res.errs, fmt.Sprintf("graph upsert document %s: %v", f.Name, err))
		return res
	}

	for _, e := range ents {
		node := graphEntityNodeFrom(customerID, e)
		if err := o.Graph.UpsertEntity(ctx, node); err != nil {
			res.errs = append(res.errs, fmt.Sprintf("graph upsert entity %s: %v", e.Text, err))
			continue
		}
		if err := o.Graph.LinkDocumentToEntity(ctx, customerID, f.Path, e.ID, "MENTIONS"); err != nil {
			res.errs = append(res.errs, fmt.Sprintf("graph link %s -> %s: %v", f.Path, e.ID, err))
		}
	}
	for _, r := range rels {
		rel := graphRelationshipFrom(customerID, r)
		if err := o.Graph.UpsertRelationship(ctx, rel); err != nil {
			res.errs = append(res.errs, fmt.Sprintf("graph relationship %s -> %s: %v", r.SourceEntityID, r.TargetEntityID, err))
		}
	}
	return res
}

func wordCount(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			count++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return count
}
