package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres migrates the graph schema and returns a Store.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lakehouse_documents (
		  customer_id TEXT NOT NULL,
		  id          TEXT NOT NULL,
		  filename    TEXT NOT NULL,
		  category    TEXT NOT NULL DEFAULT 'general',
		  metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
		  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		  PRIMARY KEY (customer_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS lakehouse_entities (
		  customer_id TEXT NOT NULL,
		  id          TEXT NOT NULL,
		  text        TEXT NOT NULL,
		  type        TEXT NOT NULL,
		  confidence  DOUBLE PRECISION NOT NULL DEFAULT 1,
		  count       BIGINT NOT NULL DEFAULT 1,
		  first_seen  TIMESTAMPTZ NOT NULL DEFAULT now(),
		  last_seen   TIMESTAMPTZ NOT NULL DEFAULT now(),
		  PRIMARY KEY (customer_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS lakehouse_entities_type ON lakehouse_entities(customer_id, type)`,
		`CREATE TABLE IF NOT EXISTS lakehouse_relationships (
		  id          BIGSERIAL PRIMARY KEY,
		  customer_id TEXT NOT NULL,
		  source_id   TEXT NOT NULL,
		  target_id   TEXT NOT NULL,
		  rel_type    TEXT NOT NULL,
		  confidence  DOUBLE PRECISION NOT NULL DEFAULT 1,
		  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		  UNIQUE (customer_id, source_id, target_id, rel_type)
		)`,
		`CREATE INDEX IF NOT EXISTS lakehouse_relationships_src ON lakehouse_relationships(customer_id, source_id)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return nil, fmt.Errorf("lakehouse graph: migrate: %w", err)
		}
	}
	return &postgresStore{pool: pool}, nil
}

func (g *postgresStore) UpsertDocument(ctx context.Context, doc DocumentNode) error {
	meta := doc.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("lakehouse graph: marshal document metadata: %w", err)
	}
	_, err = g.pool.Exec(ctx, `
INSERT INTO lakehouse_documents(customer_id, id, filename, category, metadata)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (customer_id, id) DO UPDATE SET
  filename=EXCLUDED.filename, category=EXCLUDED.category, metadata=EXCLUDED.metadata
`, doc.CustomerID, doc.ID, doc.Filename, doc.Category, metaJSON)
	return err
}

// UpsertEntity reproduces neo4j_store.py's
//   MERGE (e:Entity {id: $id})
//   ON CREATE SET ... count = 1
//   ON MATCH SET count = count + 1, last_seen = now()
// as a single upsert statement.
func (g *postgresStore) UpsertEntity(ctx context.Context, e EntityNode) error {
	_, err := g.pool.Exec(ctx, `
INSERT INTO lakehouse_entities(customer_id, id, text, type, confidence, count, first_seen, last_seen)
VALUES ($1,$2,$3,$4,$5,1,now(),now())
ON CONFLICT (customer_id, id) DO UPDATE SET
  count = lakehouse_entities.count + 1,
  last_seen = now()
`, e.CustomerID, e.ID, e.Text, e.Type, e.Confidence)
	return err
}

// LinkDocumentToEntity writes the Document->Entity edge into
// lakehouse_relationships, the same table UpsertRelationship uses, so it
// is traversable and counted exactly like any PRODUCES/WORKS_AT edge.
func (g *postgresStore) LinkDocumentToEntity(ctx context.Context, customerID, documentID, entityID, relType string) error {
	if relType == "" {
		relType = "MENTIONS"
	}
	return g.UpsertRelationship(ctx, Relationship{
		CustomerID: customerID,
		SourceID:   documentID,
		TargetID:   entityID,
		Type:       relType,
		Confidence: 1,
	})
}

func (g *postgresStore) UpsertRelationship(ctx context.Context, rel Relationship) error {
	_, err := g.pool.Exec(ctx, `
INSERT INTO lakehouse_relationships(customer_id, source_id, target_id, rel_type, confidence)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (customer_id, source_id, target_id, rel_type) DO UPDATE SET
  confidence = GREATEST(lakehouse_relationships.confidence, EXCLUDED.confidence)
`, rel.CustomerID, rel.SourceID, rel.TargetID, rel.Type, rel.Confidence)
	return err
}

// Traverse walks outgoing edges up to maxHops deep via a recursive CTE,
// generalizing Cypher's variable-length pattern match
// "(s)-[*1..maxHops]->(n)" onto a self-referential edge table.
func (g *postgresStore) Traverse(ctx context.Context, customerID, startID string, maxHops int) ([]Neighbor, error) {
	if maxHops <= 0 {
		maxHops = 1
	}
	rows, err := g.pool.Query(ctx, `
WITH RECURSIVE walk(id, rel_type, depth, path) AS (
  SELECT target_id, rel_type, 1, ARRAY[source_id]
  FROM lakehouse_relationships
  WHERE customer_id = $1 AND source_id = $2
  UNION ALL
  SELECT r.target_id, r.rel_type, w.depth + 1, w.path || r.source_id
  FROM lakehouse_relationships r
  JOIN walk w ON r.source_id = w.id AND r.customer_id = $1
  WHERE w.depth < $3 AND NOT r.target_id = ANY(w.path)
)
SELECT DISTINCT id, rel_type, depth FROM walk ORDER BY depth, id
`, customerID, startID, maxHops)
	if err != nil {
		return nil, fmt.Errorf("lakehouse graph: traverse: %w", err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.Type, &n.Depth); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (g *postgresStore) TopEntities(ctx context.Context, customerID, entityType string, limit int) ([]TopEntity, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, text, type, count FROM lakehouse_entities WHERE customer_id=$1`
	args := []any{customerID}
	if entityType != "" {
		query += ` AND type=$3`
		args = append(args, limit, entityType)
		query += ` ORDER BY count DESC LIMIT $2`
	} else {
		args = append(args, limit)
		query += ` ORDER BY count DESC LIMIT $2`
	}
	rows, err := g.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lakehouse graph: top entities: %w", err)
	}
	defer rows.Close()

	var out []TopEntity
	for rows.Next() {
		var t TopEntity
		if err := rows.Scan(&t.ID, &t.Text, &t.Type, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Query is the opaque escape hatch; callers must scope customer_id
// themselves via args/sql.
func (g *postgresStore) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (g *postgresStore) Stats(ctx context.Context, customerID string) (Stats, error) {
	var s Stats
	row := g.pool.QueryRow(ctx, `SELECT
  (SELECT count(*) FROM lakehouse_documents WHERE customer_id=$1),
  (SELECT count(*) FROM lakehouse_entities WHERE customer_id=$1),
  (SELECT count(*) FROM lakehouse_relationships WHERE customer_id=$1)
`, customerID)
	if err := row.Scan(&s.Documents, &s.Entities, &s.Relationships); err != nil {
		if err == pgx.ErrNoRows {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("lakehouse graph: stats: %w", err)
	}
	return s, nil
}

func (g *postgresStore) Close() error {
	g.pool.Close()
	return nil
}
