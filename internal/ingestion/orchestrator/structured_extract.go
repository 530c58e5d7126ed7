package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"manifold/internal/ingestion/types"
)

// structuredExtractResult carries one file's schema-mapper output back
// to the single aggregating task; extraction itself may run concurrently
// across files since each call is an independent LLM round trip.
type structuredExtractResult struct {
	products    []types.ProductRecord
	syndication []types.SyndicationProductRecord
	audits      []types.DataQualityAuditRecord
	err         string
}

// structuredExtractAll runs the schema mapper over every classified
// file (gated internally to classification=="products") and appends
// the aggregated records to the tabular store, matching
// orchestrator.py's "Phase 3.5: INTELLIGENT EXTRACTION" block.
// Per-file extraction is fanned out across MaxWorkers goroutines via
// errgroup, since each call is an independent LLM round trip; results
// are aggregated back sequentially once every file has finished.
func (o *Orchestrator) structuredExtractAll(ctx context.Context, files []types.FileDescriptor, customerID string, deployment *types.DeploymentContext, p *types.IngestionProgress) {
	results := make([]structuredExtractResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(o.MaxWorkers, 1))

	for i := range files {
		if files[i].ExtractedText == "" {
			continue
		}
		idx := i
		g.Go(func() error {
			f := &files[idx]
			res, err := o.Structured.Extract(gctx, f.ExtractedText, f.Category, f.Name, deployment)
			if err != nil {
				results[idx] = structuredExtractResult{err: fmt.Sprintf("structured extract %s: %v", f.Name, err)}
				return nil
			}
			results[idx] = structuredExtractResult{
				products:    res.Products,
				syndication: res.SyndicationProducts,
				audits:      res.DataQualityAudits,
			}
			return nil
		})
	}
	_ = g.Wait()

	var products []types.ProductRecord
	var syndication []types.SyndicationProductRecord
	var audits []types.DataQualityAuditRecord
	for i, r := range results {
		if r.err != "" {
			p.AppendError(r.err)
			continue
		}
		if files[i].ExtractedText == "" {
			continue
		}
		p.CurrentFile = files[i].Name
		products = append(products, r.products...)
		syndication = append(syndication, r.syndication...)
		audits = append(audits, r.audits...)
	}

	if len(products) == 0 && len(syndication) == 0 && len(audits) == 0 {
		return
	}
	if o.Tabular == nil {
		return
	}
	if len(products) > 0 {
		if err := o.Tabular.AppendProducts(ctx, customerID, products); err != nil {
			p.AppendError(fmt.Sprintf("append products: %v", err))
		}
	}
	if len(syndication) > 0 {
		if err := o.Tabular.AppendSyndicationProducts(ctx, customerID, syndication); err != nil {
			p.AppendError(fmt.Sprintf("append syndication products: %v", err))
		}
	}
	if len(audits) > 0 {
		if err := o.Tabular.AppendDataQualityAudits(ctx, customerID, audits); err != nil {
			p.AppendError(fmt.Sprintf("append data quality audits: %v", err))
		}
	}
	p.CountsByCategory["products_extracted"] = len(products)
}
