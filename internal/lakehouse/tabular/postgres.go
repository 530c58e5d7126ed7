package tabular

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"manifold/internal/ingestion/types"
)

type postgresStore struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	columns map[string]map[string]bool // table -> known column set
}

// NewPostgres returns a tabular Store and pre-creates the standard
// tables (general_documents, general_chunks, products,
// syndication_products, data_quality_audit).
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	s := &postgresStore{pool: pool, columns: map[string]map[string]bool{}}
	if err := s.migrateStandardTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *postgresStore) migrateStandardTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS general_documents (
		  customer_id TEXT NOT NULL,
		  id          TEXT NOT NULL,
		  path        TEXT NOT NULL,
		  filename    TEXT NOT NULL,
		  category    TEXT NOT NULL,
		  full_text   TEXT NOT NULL DEFAULT '',
		  chunk_count INTEGER NOT NULL DEFAULT 0,
		  size_bytes  BIGINT NOT NULL DEFAULT 0,
		  modified_at TIMESTAMPTZ,
		  ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		  mime_type   TEXT,
		  extension   TEXT,
		  metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
		  PRIMARY KEY (customer_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS general_chunks (
		  customer_id TEXT NOT NULL,
		  id          TEXT NOT NULL,
		  document_id TEXT NOT NULL,
		  ordinal     INTEGER NOT NULL,
		  text        TEXT NOT NULL,
		  char_count  INTEGER NOT NULL DEFAULT 0,
		  word_count  INTEGER NOT NULL DEFAULT 0,
		  PRIMARY KEY (customer_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS general_chunks_doc ON general_chunks(customer_id, document_id)`,
		`CREATE TABLE IF NOT EXISTS products (
		  customer_id TEXT NOT NULL,
		  gtin        TEXT NOT NULL,
		  brand       TEXT,
		  name        TEXT,
		  price_minor_units BIGINT,
		  price_currency    TEXT,
		  ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		  metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
		  PRIMARY KEY (customer_id, gtin)
		)`,
		`CREATE TABLE IF NOT EXISTS syndication_products (
		  customer_id TEXT NOT NULL,
		  id          TEXT NOT NULL,
		  price_minor_units BIGINT,
		  price_currency    TEXT,
		  last_updated TIMESTAMPTZ,
		  images       JSONB NOT NULL DEFAULT '[]'::jsonb,
		  cad_files    JSONB NOT NULL DEFAULT '[]'::jsonb,
		  technical_specs JSONB NOT NULL DEFAULT '{}'::jsonb,
		  compliance_data JSONB NOT NULL DEFAULT '{}'::jsonb,
		  PRIMARY KEY (customer_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS data_quality_audit (
		  customer_id TEXT NOT NULL,
		  id          TEXT NOT NULL,
		  data_sources JSONB NOT NULL DEFAULT '[]'::jsonb,
		  confidence_levels JSONB NOT NULL DEFAULT '{}'::jsonb,
		  extraction_notes JSONB NOT NULL DEFAULT '[]'::jsonb,
		  validation_errors JSONB NOT NULL DEFAULT '[]'::jsonb,
		  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		  verified_at TIMESTAMPTZ,
		  PRIMARY KEY (customer_id, id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("lakehouse tabular: migrate: %w", err)
		}
	}
	return nil
}

// EnsureTable creates table if absent with the given columns, then
// unions in any columns not already present — the explicit stand-in
// for Delta Lake's write_deltalake(..., schema_mode="merge").
func (s *postgresStore) EnsureTable(ctx context.Context, table string, columns map[string]string) error {
	if !validIdent(table) {
		return fmt.Errorf("lakehouse tabular: invalid table name %q", table)
	}

	s.mu.Lock()
	known := s.columns[table]
	s.mu.Unlock()

	if known == nil {
		colDefs := make([]string, 0, len(columns)+1)
		colDefs = append(colDefs, "customer_id TEXT NOT NULL")
		names := sortedKeys(columns)
		for _, name := range names {
			if !validIdent(name) {
				return fmt.Errorf("lakehouse tabular: invalid column name %q", name)
			}
			colDefs = append(colDefs, fmt.Sprintf("%s %s", name, columns[name]))
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(colDefs, ", "))
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("lakehouse tabular: create table %s: %w", table, err)
		}
		known = map[string]bool{"customer_id": true}
	}

	for name, sqlType := range columns {
		if known[name] {
			continue
		}
		if !validIdent(name) {
			return fmt.Errorf("lakehouse tabular: invalid column name %q", name)
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", table, name, sqlType)
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("lakehouse tabular: union column %s.%s: %w", table, name, err)
		}
		known[name] = true
	}

	s.mu.Lock()
	s.columns[table] = known
	s.mu.Unlock()
	return nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || (i > 0 && r >= '0' && r <= '9')
		if !ok {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AppendRows inserts rows into table, with metadata folded into a JSONB
// "metadata" column (spec: "unknown fields -> metadata JSON column").
func (s *postgresStore) AppendRows(ctx context.Context, customerID, table string, rows []Row) (int, error) {
	if !validIdent(table) {
		return 0, fmt.Errorf("lakehouse tabular: invalid table name %q", table)
	}
	inserted := 0
	for _, row := range rows {
		cols := []string{"customer_id"}
		args := []any{customerID}
		placeholders := []string{"$1"}
		idx := 2
		names := sortedAnyKeys(row.Values)
		for _, name := range names {
			if !validIdent(name) {
				return inserted, fmt.Errorf("lakehouse tabular: invalid column name %q", name)
			}
			cols = append(cols, name)
			args = append(args, row.Values[name])
			placeholders = append(placeholders, fmt.Sprintf("$%d", idx))
			idx++
		}
		if row.Metadata != nil {
			metaJSON, err := json.Marshal(row.Metadata)
			if err != nil {
				return inserted, fmt.Errorf("lakehouse tabular: marshal metadata: %w", err)
			}
			cols = append(cols, "metadata")
			args = append(args, metaJSON)
			placeholders = append(placeholders, fmt.Sprintf("$%d", idx))
			idx++
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if _, err := s.pool.Exec(ctx, stmt, args...); err != nil {
			return inserted, fmt.Errorf("lakehouse tabular: insert into %s: %w", table, err)
		}
		inserted++
	}
	return inserted, nil
}

func sortedAnyKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *postgresStore) AppendDocuments(ctx context.Context, customerID string, docs []types.DocumentRecord) error {
	for _, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("lakehouse tabular: marshal document metadata: %w", err)
		}
		_, err = s.pool.Exec(ctx, `
INSERT INTO general_documents(customer_id, id, path, filename, category, full_text, chunk_count, size_bytes, modified_at, ingested_at, mime_type, extension, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (customer_id, id) DO UPDATE SET
  full_text=EXCLUDED.full_text, chunk_count=EXCLUDED.chunk_count, metadata=EXCLUDED.metadata
`, customerID, d.ID, d.Path, d.Filename, d.Category, d.FullText, d.ChunkCount, d.SizeBytes, d.ModifiedAt, d.IngestedAt, d.MIMEType, d.Extension, meta)
		if err != nil {
			return fmt.Errorf("lakehouse tabular: append document %s: %w", d.ID, err)
		}
	}
	return nil
}

func (s *postgresStore) AppendChunks(ctx context.Context, customerID string, chunks []types.ChunkRecord) error {
	for _, c := range chunks {
		_, err := s.pool.Exec(ctx, `
INSERT INTO general_chunks(customer_id, id, document_id, ordinal, text, char_count, word_count)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (customer_id, id) DO UPDATE SET text=EXCLUDED.text
`, customerID, c.ID, c.DocumentID, c.Ordinal, c.Text, c.CharCount, c.WordCount)
		if err != nil {
			return fmt.Errorf("lakehouse tabular: append chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// AppendProducts skips records missing their primary key (GTIN) rather
// than failing the whole batch, per the structured extractor's
// validation rule. Skipped records are not logged or counted.
func (s *postgresStore) AppendProducts(ctx context.Context, customerID string, products []types.ProductRecord) error {
	for _, p := range products {
		if p.GTIN == "" {
			continue
		}
		meta, err := json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("lakehouse tabular: marshal product metadata: %w", err)
		}
		_, err = s.pool.Exec(ctx, `
INSERT INTO products(customer_id, gtin, brand, name, price_minor_units, price_currency, ingested_at, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (customer_id, gtin) DO UPDATE SET
  brand=EXCLUDED.brand, name=EXCLUDED.name, price_minor_units=EXCLUDED.price_minor_units,
  price_currency=EXCLUDED.price_currency, metadata=EXCLUDED.metadata
`, customerID, p.GTIN, p.Brand, p.Name, p.Price.MinorUnits, p.Price.Currency, p.IngestedAt, meta)
		if err != nil {
			return fmt.Errorf("lakehouse tabular: append product %s: %w", p.GTIN, err)
		}
	}
	return nil
}

func (s *postgresStore) AppendSyndicationProducts(ctx context.Context, customerID string, products []types.SyndicationProductRecord) error {
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		images, _ := json.Marshal(p.Images)
		cad, _ := json.Marshal(p.CADFiles)
		specs, _ := json.Marshal(p.TechnicalSpecs)
		compliance, _ := json.Marshal(p.ComplianceData)
		_, err := s.pool.Exec(ctx, `
INSERT INTO syndication_products(customer_id, id, price_minor_units, price_currency, last_updated, images, cad_files, technical_specs, compliance_data)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (customer_id, id) DO UPDATE SET
  price_minor_units=EXCLUDED.price_minor_units, price_currency=EXCLUDED.price_currency,
  last_updated=EXCLUDED.last_updated, images=EXCLUDED.images, cad_files=EXCLUDED.cad_files,
  technical_specs=EXCLUDED.technical_specs, compliance_data=EXCLUDED.compliance_data
`, customerID, p.ID, p.Price.MinorUnits, p.Price.Currency, p.LastUpdated, images, cad, specs, compliance)
		if err != nil {
			return fmt.Errorf("lakehouse tabular: append syndication product %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *postgresStore) AppendDataQualityAudits(ctx context.Context, customerID string, audits []types.DataQualityAuditRecord) error {
	for _, a := range audits {
		if a.ID == "" {
			continue
		}
		sources, _ := json.Marshal(a.DataSources)
		confidence, _ := json.Marshal(a.ConfidenceLevels)
		notes, _ := json.Marshal(a.ExtractionNotes)
		errs, _ := json.Marshal(a.ValidationErrors)
		_, err := s.pool.Exec(ctx, `
INSERT INTO data_quality_audit(customer_id, id, data_sources, confidence_levels, extraction_notes, validation_errors, created_at, verified_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (customer_id, id) DO UPDATE SET
  data_sources=EXCLUDED.data_sources, confidence_levels=EXCLUDED.confidence_levels,
  extraction_notes=EXCLUDED.extraction_notes, validation_errors=EXCLUDED.validation_errors,
  verified_at=EXCLUDED.verified_at
`, customerID, a.ID, sources, confidence, notes, errs, a.CreatedAt, a.VerifiedAt)
		if err != nil {
			return fmt.Errorf("lakehouse tabular: append audit %s: %w", a.ID, err)
		}
	}
	return nil
}

// ReadRows always injects the customer_id predicate, regardless of the
// caller's where clause, so a caller cannot accidentally (or
// maliciously) read across tenants.
func (s *postgresStore) ReadRows(ctx context.Context, customerID, table string, where string, args []any, fn func(row map[string]any) error) error {
	if !validIdent(table) {
		return fmt.Errorf("lakehouse tabular: invalid table name %q", table)
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE customer_id = $1", table)
	allArgs := append([]any{customerID}, args...)
	if where != "" {
		query += " AND (" + where + ")"
	}

	rows, err := s.pool.Query(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("lakehouse tabular: read %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = vals[i]
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Compact runs VACUUM ANALYZE, the closest Postgres equivalent to
// Delta's OPTIMIZE + VACUUM maintenance pass.
func (s *postgresStore) Compact(ctx context.Context, table string) error {
	if !validIdent(table) {
		return fmt.Errorf("lakehouse tabular: invalid table name %q", table)
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf("VACUUM ANALYZE %s", table))
	return err
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
