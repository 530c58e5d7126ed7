// Package tabular implements the Lakehouse Tabular Store: standard
// tables (general_documents, general_chunks, products,
// syndication_products, data_quality_audit), each scoped by customer_id.
// Documents and chunks of every category go into general_documents and
// general_chunks with the category kept in a column; no per-category
// tables are created. The package comes
// with an explicit schema-union step standing in for Delta Lake's
// schema_mode="merge" (grounded on
// original_source/lakehouse/delta/multi_table_loader.py) and a
// compaction/maintenance operation standing in for Delta's OPTIMIZE/
// VACUUM, generalized onto Postgres via jackc/pgx/v5 the way manifold's
// internal/persistence/databases package uses that driver.
package tabular

import (
	"context"

	"manifold/internal/ingestion/types"
)

// Row is one record appended to a table: a flat set of known columns
// plus an overflow metadata map for fields the schema doesn't have a
// dedicated column for yet (spec: "unknown fields -> metadata JSON
// column").
type Row struct {
	Values   map[string]any
	Metadata map[string]any
}

// Store is the tabular backend interface.
type Store interface {
	// EnsureTable creates the table if absent and unions in any new
	// columns the caller's column set introduces (schema_mode="merge").
	EnsureTable(ctx context.Context, table string, columns map[string]string) error

	AppendRows(ctx context.Context, customerID, table string, rows []Row) (inserted int, err error)

	AppendDocuments(ctx context.Context, customerID string, docs []types.DocumentRecord) error
	AppendChunks(ctx context.Context, customerID string, chunks []types.ChunkRecord) error
	AppendProducts(ctx context.Context, customerID string, products []types.ProductRecord) error
	AppendSyndicationProducts(ctx context.Context, customerID string, products []types.SyndicationProductRecord) error
	AppendDataQualityAudits(ctx context.Context, customerID string, audits []types.DataQualityAuditRecord) error

	// ReadRows streams rows from table for one customer, always
	// injecting the customer_id predicate regardless of what the
	// caller's where clause asks for, so no query can read across
	// tenants.
	ReadRows(ctx context.Context, customerID, table string, where string, args []any, fn func(row map[string]any) error) error

	// Compact runs the maintenance/compaction pass for one table,
	// standing in for Delta's OPTIMIZE + VACUUM.
	Compact(ctx context.Context, table string) error

	Close() error
}
