package orchestrator

import (
	"context"

	"manifold/internal/ingestion/types"
)

const classifySampleWindow = 3000

// classifyAll runs the two-tier classifier over every extracted file,
// using its pre-assigned category (if any) or the batch rule+LLM
// cascade, matching orchestrator.py's _classify_batch.
func (o *Orchestrator) classifyAll(ctx context.Context, files []types.FileDescriptor) {
	batch := make([]struct{ Path, Filename, PreAssigned, TextSample string }, len(files))
	for i, f := range files {
		sample := f.ExtractedText
		if len(sample) > classifySampleWindow {
			sample = sample[:classifySampleWindow]
		}
		batch[i] = struct{ Path, Filename, PreAssigned, TextSample string }{
			Path: f.Path, Filename: f.Name, PreAssigned: f.PreAssignedCat, TextSample: sample,
		}
	}

	results := o.Classifier.ClassifyBatch(ctx, batch)
	for i := range files {
		files[i].Category = results[i].Category
	}
}
