// Package graph implements the Lakehouse Graph Store: Document/Entity
// nodes and typed relationships, scoped per customer,
// with Neo4j-style MERGE/count/first-seen/last-seen semantics
// generalized onto Postgres. Grounded on
// internal/persistence/databases/postgres_graph.go (schema + upsert
// pattern) and original_source/lakehouse/graph/neo4j_store.py (the
// MERGE ON CREATE/ON MATCH semantics this package reproduces with
// ordinary SQL upserts).
package graph

import (
	"context"
	"time"
)

// EntityNode mirrors the Entity node shape from neo4j_store.py's
// create_entity_node: identity, running mention count, first/last seen.
type EntityNode struct {
	ID         string
	CustomerID string
	Text       string
	Type       string
	Confidence float64
	Count      int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// DocumentNode mirrors create_document_node.
type DocumentNode struct {
	ID         string
	CustomerID string
	Filename   string
	Category   string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Relationship is a typed, directed edge between two entity (or
// document/entity) node ids.
type Relationship struct {
	CustomerID string
	SourceID   string
	TargetID   string
	Type       string
	Confidence float64
}

// Neighbor is one hop result from Traverse.
type Neighbor struct {
	ID    string
	Type  string
	Depth int
}

// TopEntity is one row of a most-mentioned-entities query.
type TopEntity struct {
	ID    string
	Text  string
	Type  string
	Count int
}

// Stats mirrors the source's get_graph_stats() equivalent.
type Stats struct {
	Documents     int64
	Entities      int64
	Relationships int64
}

// Store is the graph backend interface.
type Store interface {
	UpsertDocument(ctx context.Context, doc DocumentNode) error

	// UpsertEntity applies MERGE semantics: on first sight the row is
	// created with count=1 and first_seen=now; on every subsequent call
	// count increments and last_seen advances.
	UpsertEntity(ctx context.Context, e EntityNode) error

	// LinkDocumentToEntity records a Document->Entity edge in the same
	// typed relationship space UpsertRelationship writes to, mirroring
	// neo4j_store.py's link_document_to_entities
	// (MERGE (d)-[r:MENTIONS]->(e)). An empty relType defaults to
	// "MENTIONS", so the edge is traversable via Traverse and counted by
	// Stats exactly like any other relationship.
	LinkDocumentToEntity(ctx context.Context, customerID, documentID, entityID, relType string) error

	UpsertRelationship(ctx context.Context, rel Relationship) error

	// Traverse walks outgoing relationships up to maxHops deep from
	// startID, scoped to customerID.
	Traverse(ctx context.Context, customerID, startID string, maxHops int) ([]Neighbor, error)

	// TopEntities returns the N most-mentioned entities, optionally
	// filtered by entity type (empty string = all types).
	TopEntities(ctx context.Context, customerID, entityType string, limit int) ([]TopEntity, error)

	// Query is the opaque free-form escape hatch: callers may issue an
	// arbitrary parameterized SQL query scoped by the customer_id the
	// caller is responsible for including.
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)

	Stats(ctx context.Context, customerID string) (Stats, error)

	Close() error
}
