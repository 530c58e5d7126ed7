package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresStore is the pgvector-backed Store, grounded on
// internal/persistence/databases/postgres_vector.go, generalized with a
// customer_id column, a category column, and ivfflat index creation in
// place of that file's "index creation left to DBA/tuning" shortcut.
type postgresStore struct {
	pool   *pgxpool.Pool
	metric string

	mu       sync.Mutex
	dim      int
	indexed  map[string]bool // customerID -> index already created
}

// NewPostgres opens (and migrates) the shared embeddings table. metric is
// one of "cosine" (default), "l2", or "ip".
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, metric string) (Store, error) {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("lakehouse vector: enable pgvector: %w", err)
	}
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lakehouse_embeddings (
  customer_id TEXT NOT NULL,
  id          TEXT NOT NULL,
  document_id TEXT NOT NULL,
  category    TEXT NOT NULL DEFAULT 'general',
  vec         vector NOT NULL,
  metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
  PRIMARY KEY (customer_id, id)
);
`); err != nil {
		return nil, fmt.Errorf("lakehouse vector: migrate table: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS lakehouse_embeddings_doc ON lakehouse_embeddings(customer_id, document_id)`); err != nil {
		return nil, fmt.Errorf("lakehouse vector: index document_id: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS lakehouse_embeddings_cat ON lakehouse_embeddings(customer_id, category)`); err != nil {
		return nil, fmt.Errorf("lakehouse vector: index category: %w", err)
	}
	return &postgresStore{pool: pool, metric: strings.ToLower(strings.TrimSpace(metric)), indexed: map[string]bool{}}, nil
}

func (p *postgresStore) Upsert(ctx context.Context, customerID string, rec Record) error {
	p.mu.Lock()
	if p.dim == 0 {
		p.dim = len(rec.Vector)
	} else if len(rec.Vector) != p.dim {
		p.mu.Unlock()
		return fmt.Errorf("lakehouse vector: embedding dimension frozen at %d, got %d", p.dim, len(rec.Vector))
	}
	p.mu.Unlock()

	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("lakehouse vector: marshal metadata: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO lakehouse_embeddings(customer_id, id, document_id, category, vec, metadata)
VALUES ($1,$2,$3,$4,$5::vector,$6)
ON CONFLICT (customer_id, id) DO UPDATE SET
  document_id=EXCLUDED.document_id, category=EXCLUDED.category,
  vec=EXCLUDED.vec, metadata=EXCLUDED.metadata
`, customerID, rec.ID, rec.DocumentID, rec.Category, toVectorLiteral(rec.Vector), meta)
	return err
}

func (p *postgresStore) DeleteByDocument(ctx context.Context, customerID, documentID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM lakehouse_embeddings WHERE customer_id=$1 AND document_id=$2`, customerID, documentID)
	return err
}

func (p *postgresStore) DeleteByCategory(ctx context.Context, customerID, category string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM lakehouse_embeddings WHERE customer_id=$1 AND category=$2`, customerID, category)
	return err
}

func (p *postgresStore) Search(ctx context.Context, customerID string, queryVector []float32, topK int, category string) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}
	op, scoreExpr := "<=>", "1 - (vec <=> $1::vector)"
	switch p.metric {
	case "l2", "euclidean":
		op, scoreExpr = "<->", "-(vec <-> $1::vector)"
	case "ip", "dot":
		op, scoreExpr = "<#>", "-(vec <#> $1::vector)"
	}

	vecLit := toVectorLiteral(queryVector)
	args := []any{vecLit, customerID, topK}
	where := "customer_id=$2"
	if category != "" {
		where += " AND category=$4"
		args = append(args, category)
	}
	query := fmt.Sprintf(`SELECT id, %s AS score, metadata FROM lakehouse_embeddings WHERE %s ORDER BY vec %s $1::vector LIMIT $3`, scoreExpr, where, op)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, topK)
	for rows.Next() {
		var r Result
		var meta map[string]string
		if err := rows.Scan(&r.ID, &r.Score, &meta); err != nil {
			return nil, err
		}
		r.Metadata = meta
		out = append(out, r)
	}
	return out, rows.Err()
}

const defaultIndexMinRows = 256

// MaybeCreateIndex builds an ivfflat index once rowCount crosses the
// threshold; pgvector's "lists" parameter plays the role of lance's
// num_partitions (sqrt(N), floor 8). Idempotent per customer.
func (p *postgresStore) MaybeCreateIndex(ctx context.Context, customerID string, rowCount int) error {
	if rowCount < defaultIndexMinRows {
		return nil
	}
	p.mu.Lock()
	if p.indexed[customerID] {
		p.mu.Unlock()
		return nil
	}
	p.indexed[customerID] = true
	p.mu.Unlock()

	lists := computePartitions(rowCount)
	subVectors := computeSubVectors(p.Dimension())
	opClass := "vector_cosine_ops"
	switch p.metric {
	case "l2", "euclidean":
		opClass = "vector_l2_ops"
	case "ip", "dot":
		opClass = "vector_ip_ops"
	}
	idxName := fmt.Sprintf("lakehouse_embeddings_ivfflat_%s", sanitizeIdent(customerID))
	_, err := p.pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON lakehouse_embeddings USING ivfflat (vec %s) WITH (lists = %d) WHERE customer_id = $1`,
		idxName, opClass, lists,
	), customerID)
	if err != nil {
		return err
	}
	// pgvector's ivfflat has no native num_sub_vectors/PQ parameter (unlike
	// lance_store.py's IVF-PQ index), so the computed value can't be passed
	// as an index option; it's surfaced on the index comment instead so the
	// heuristic's output is still visible and auditable per customer.
	_, err = p.pool.Exec(ctx, fmt.Sprintf(
		`COMMENT ON INDEX %s IS 'num_sub_vectors=%d (informational: ivfflat has no PQ sub-vector knob)'`,
		idxName, subVectors,
	))
	return err
}

func (p *postgresStore) Dimension() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dim
}

func (p *postgresStore) Close() error {
	p.pool.Close()
	return nil
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", x)
	}
	sb.WriteByte(']')
	return sb.String()
}

func sanitizeIdent(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
