package orchestrator

import (
	"context"
	"fmt"
	"time"

	"manifold/internal/ingestion/types"
	"manifold/internal/lakehouse/vector"
)

// embedAndLoadVectors embeds every chunk across every processed
// document in EmbedBatchSize-sized batches and upserts the resulting
// vectors, matching orchestrator.py's _embed_batch followed by the
// Lance load step. A per-category row count is tracked so
// MaybeCreateIndex can be invoked once per category/customer.
func (o *Orchestrator) embedAndLoadVectors(ctx context.Context, customerID string, docs []processedDoc, p *types.IngestionProgress) error {
	if o.Embedder == nil || o.Vector == nil || len(docs) == 0 {
		return nil
	}

	type pending struct {
		chunk    types.Chunk
		category string
	}
	var all []pending
	for _, d := range docs {
		for _, c := range d.chunks {
			all = append(all, pending{chunk: c, category: d.desc.Category})
		}
	}
	if len(all) == 0 {
		return nil
	}

	batchSize := o.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	rowsByCategory := map[string]int{}
	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		batch := all[start:end]

		texts := make([]string, len(batch))
		for i, b := range batch {
			texts[i] = b.chunk.Text
		}
		vectors, err := o.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}

		for i, b := range batch {
			if i >= len(vectors) || vectors[i] == nil {
				continue
			}
			rec := vector.Record{
				ID:         b.chunk.ID,
				DocumentID: b.chunk.DocumentID,
				Category:   b.category,
				Vector:     vectors[i],
			}
			if err := o.Vector.Upsert(ctx, customerID, rec); err != nil {
				// A post-insert vector dimension mismatch is a fatal invariant
				// violation, not a recoverable per-record error: the embedder
				// is producing vectors of an unstable size, which is always a
				// programming/configuration bug. Terminate the run immediately
				// rather than silently dropping the record, matching
				// paths.assertSafe's precedent for the other fatal invariant.
				panic(fmt.Sprintf("orchestrator: vector upsert invariant violation for chunk %s: %v", b.chunk.ID, err))
			}
			rowsByCategory[b.category]++
		}
	}

	for category, rows := range rowsByCategory {
		if err := o.Vector.MaybeCreateIndex(ctx, customerID, rows); err != nil {
			p.AppendError(fmt.Sprintf("vector index %s: %v", category, err))
		}
	}
	return nil
}

// loadTabular appends every processed document's document/chunk rows to
// the tabular store, matching orchestrator.py's delta_loader.load_documents.
func (o *Orchestrator) loadTabular(ctx context.Context, customerID string, docs []processedDoc) error {
	if o.Tabular == nil || len(docs) == 0 {
		return nil
	}

	var documents []types.DocumentRecord
	var chunks []types.ChunkRecord
	for _, d := range docs {
		documents = append(documents, types.DocumentRecord{
			ID:         d.desc.Path,
			CustomerID: customerID,
			Path:       d.desc.Path,
			Filename:   d.desc.Name,
			Category:   d.desc.Category,
			FullText:   d.desc.ExtractedText,
			ChunkCount: len(d.chunks),
			SizeBytes:  d.desc.SizeBytes,
			ModifiedAt: d.desc.ModifiedAt,
			IngestedAt: time.Now(),
			MIMEType:   d.desc.MIMEHint,
			Extension:  d.desc.Extension,
		})
		for _, c := range d.chunks {
			chunks = append(chunks, types.ChunkRecord{
				ID:         c.ID,
				CustomerID: customerID,
				DocumentID: c.DocumentID,
				Ordinal:    c.Ordinal,
				Text:       c.Text,
				CharCount:  c.CharCount,
				WordCount:  c.WordCount,
			})
		}
	}

	if err := o.Tabular.AppendDocuments(ctx, customerID, documents); err != nil {
		return fmt.Errorf("append documents: %w", err)
	}
	if err := o.Tabular.AppendChunks(ctx, customerID, chunks); err != nil {
		return fmt.Errorf("append chunks: %w", err)
	}
	return nil
}
