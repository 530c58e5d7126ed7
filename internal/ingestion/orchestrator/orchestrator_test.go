package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/ingestion/chunker"
	"manifold/internal/ingestion/classifier"
	"manifold/internal/ingestion/handlers"
	"manifold/internal/ingestion/progress"
	"manifold/internal/ingestion/types"
	"manifold/internal/lakehouse/tabular"
	"manifold/internal/lakehouse/vector"
)

// fakeEmbedder returns a deterministic fixed-dimension vector per text,
// the same test-double shape embedder.NewDeterministic provides.
type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Name() string { return "fake" }
func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Ping(ctx context.Context) error { return nil }
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		if len(t) > 0 {
			v[0] = float32(len(t))
		}
		out[i] = v
	}
	return out, nil
}

// fakeVectorStore records every upsert in memory; good enough to assert
// the embed/load stage wired real chunks through.
type fakeVectorStore struct {
	dim    int
	upserts []vector.Record
	indexed map[string]int
}

func newFakeVectorStore() *fakeVectorStore { return &fakeVectorStore{indexed: map[string]int{}} }

func (s *fakeVectorStore) Upsert(ctx context.Context, customerID string, rec vector.Record) error {
	s.upserts = append(s.upserts, rec)
	return nil
}
func (s *fakeVectorStore) DeleteByDocument(ctx context.Context, customerID, documentID string) error { return nil }
func (s *fakeVectorStore) DeleteByCategory(ctx context.Context, customerID, category string) error { return nil }
func (s *fakeVectorStore) Search(ctx context.Context, customerID string, q []float32, topK int, category string) ([]vector.Result, error) {
	return nil, nil
}
func (s *fakeVectorStore) MaybeCreateIndex(ctx context.Context, customerID string, rowCount int) error {
	s.indexed[customerID] = rowCount
	return nil
}
func (s *fakeVectorStore) Dimension() int { return s.dim }
func (s *fakeVectorStore) Close() error   { return nil }

// failingVectorStore always rejects Upsert, simulating the post-insert
// dimension-mismatch failure mode postgresStore/qdrantStore return.
type failingVectorStore struct{ fakeVectorStore }

func (s *failingVectorStore) Upsert(ctx context.Context, customerID string, rec vector.Record) error {
	return fmt.Errorf("lakehouse vector: embedding dimension frozen at 4, got %d", len(rec.Vector))
}

// fakeTabularStore records appended rows in memory.
type fakeTabularStore struct {
	documents []types.DocumentRecord
	chunks    []types.ChunkRecord
}

func (s *fakeTabularStore) EnsureTable(ctx context.Context, table string, columns map[string]string) error {
	return nil
}
func (s *fakeTabularStore) AppendRows(ctx context.Context, customerID, table string, rows []tabular.Row) (int, error) {
	return len(rows), nil
}
func (s *fakeTabularStore) AppendDocuments(ctx context.Context, customerID string, docs []types.DocumentRecord) error {
	s.documents = append(s.documents, docs...)
	return nil
}
func (s *fakeTabularStore) AppendChunks(ctx context.Context, customerID string, chunks []types.ChunkRecord) error {
	s.chunks = append(s.chunks, chunks...)
	return nil
}
func (s *fakeTabularStore) AppendProducts(ctx context.Context, customerID string, products []types.ProductRecord) error {
	return nil
}
func (s *fakeTabularStore) AppendSyndicationProducts(ctx context.Context, customerID string, products []types.SyndicationProductRecord) error {
	return nil
}
func (s *fakeTabularStore) AppendDataQualityAudits(ctx context.Context, customerID string, audits []types.DataQualityAuditRecord) error {
	return nil
}
func (s *fakeTabularStore) ReadRows(ctx context.Context, customerID, table, where string, args []any, fn func(map[string]any) error) error {
	return nil
}
func (s *fakeTabularStore) Compact(ctx context.Context, table string) error { return nil }
func (s *fakeTabularStore) Close() error                                    { return nil }

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunEndToEndPipeline(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.txt", "This is a general note about nothing in particular. It has two sentences.")
	writeTestFile(t, dir, "readme.txt", "Another plain text document used only for the pipeline test.")

	vecStore := newFakeVectorStore()
	tabStore := &fakeTabularStore{}

	o := &Orchestrator{
		Handlers:         handlers.NewRegistry(),
		Classifier:       &classifier.Classifier{},
		ChunkConfig:      chunker.DefaultConfig(),
		Embedder:         &fakeEmbedder{dim: 4},
		Tabular:          tabStore,
		Vector:           vecStore,
		MaxWorkers:       4,
		MaxFileSizeBytes: 10 * 1024 * 1024,
		MaxCrawlDepth:    5,
		EmbedBatchSize:   8,
	}

	sink := progress.NewSink("cust-1", nil)
	var snapshots []types.RunStatus
	sink.On(func(p types.IngestionProgress) { snapshots = append(snapshots, p.Status) })

	folders := []FolderConfig{{Path: dir, Recursive: true}}
	result, err := o.Run(context.Background(), "cust-1", folders, nil, sink)

	require.NoError(t, err)
	assert.Equal(t, types.RunComplete, result.Status)
	assert.Equal(t, 2, result.Total)
	assert.NotNil(t, result.CompletedAt)
	assert.Len(t, tabStore.documents, 2)
	assert.NotEmpty(t, vecStore.upserts)
	assert.Contains(t, snapshots, types.RunCrawling)
	assert.Contains(t, snapshots, types.RunEmbedding)
	assert.Contains(t, snapshots, types.RunComplete)
}

func TestRunReturnsCompleteImmediatelyForEmptyFolder(t *testing.T) {
	dir := t.TempDir()
	o := &Orchestrator{
		Handlers:   handlers.NewRegistry(),
		Classifier: &classifier.Classifier{},
		ChunkConfig: chunker.DefaultConfig(),
	}
	result, err := o.Run(context.Background(), "cust-1", []FolderConfig{{Path: dir}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.RunComplete, result.Status)
	assert.Equal(t, 0, result.Total)
}

func TestEmbedAndLoadVectorsPanicsOnDimensionMismatch(t *testing.T) {
	o := &Orchestrator{
		Embedder:       &fakeEmbedder{dim: 4},
		Vector:         &failingVectorStore{},
		EmbedBatchSize: 8,
	}
	docs := []processedDoc{{
		desc:   types.FileDescriptor{Category: "general"},
		chunks: []types.Chunk{{ID: "c1", DocumentID: "d1", Text: "some chunk text"}},
	}}
	p := &types.IngestionProgress{}

	assert.Panics(t, func() {
		_ = o.embedAndLoadVectors(context.Background(), "cust-1", docs, p)
	}, "a post-insert vector dimension mismatch must terminate the run, not degrade to a soft error")
}

func TestCrawlFoldersSkipsOversizedAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "keep.txt", "short")
	writeTestFile(t, dir, ".hidden.txt", "should be skipped")
	writeTestFile(t, dir, "big.txt", "0123456789")

	files := crawlFolders([]FolderConfig{{Path: dir, Recursive: true}}, 5, 5)
	require.Len(t, files, 1)
	assert.Equal(t, "keep.txt", files[0].Name)
}
