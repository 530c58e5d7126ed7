// Package vector implements the Lakehouse Vector Store: a
// customer-partitioned embedding index behind one interface, backed by
// either Qdrant or Postgres/pgvector, grounded on
// internal/persistence/databases/{qdrant_vector.go,postgres_vector.go}
// generalized with customer_id isolation and category filtering, plus
// the IVF-PQ index-creation heuristic from
// original_source/lakehouse/vector/lance_store.py.
package vector

import "context"

// Record is one chunk embedding to persist.
type Record struct {
	ID         string
	DocumentID string
	Category   string
	Vector     []float32
	Metadata   map[string]string
}

// Result is a single nearest-neighbor hit.
type Result struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Store is the backend-agnostic interface both Qdrant and Postgres
// implementations satisfy. Every method is scoped to customerID so a
// single deployment can safely serve many tenants.
type Store interface {
	// Upsert inserts or replaces an embedding. The first successful call
	// fixes Dimension(); subsequent calls with a mismatched vector length
	// must fail, since the embedding dimension is frozen after the first
	// insert.
	Upsert(ctx context.Context, customerID string, rec Record) error

	DeleteByDocument(ctx context.Context, customerID, documentID string) error
	DeleteByCategory(ctx context.Context, customerID, category string) error

	// Search returns the top-k nearest neighbors, optionally restricted to
	// one category (empty string searches all categories).
	Search(ctx context.Context, customerID string, queryVector []float32, topK int, category string) ([]Result, error)

	// MaybeCreateIndex builds an ANN index once rowCount reaches
	// defaultIndexMinRows (256). The threshold is a package constant;
	// Orchestrator.IndexMinRows is not passed here and does not change it.
	MaybeCreateIndex(ctx context.Context, customerID string, rowCount int) error

	Dimension() int
	Close() error
}

// computePartitions implements num_partitions = max(ceil(sqrt(N)), 8),
// mirroring lance_store.py's create_index heuristic.
func computePartitions(rowCount int) int {
	n := isqrtCeil(rowCount)
	if n < 8 {
		return 8
	}
	return n
}

func isqrtCeil(n int) int {
	if n <= 0 {
		return 0
	}
	x := 1
	for x*x < n {
		x++
	}
	return x
}

// computeSubVectors implements num_sub_vectors = the largest divisor of
// dim drawn from {128, 64, 32, 16, 8}, falling back to 8 (the smallest
// candidate) when none divide evenly, mirroring lance_store.py's
// create_index heuristic (dim=1024 -> 128, dim=768 -> 96 is the
// hard-coded special case there; the generic fallback below reproduces
// its "else" branch for every other dimension).
func computeSubVectors(dim int) int {
	for _, candidate := range []int{128, 64, 32, 16, 8} {
		if dim%candidate == 0 {
			return candidate
		}
	}
	return 8
}

