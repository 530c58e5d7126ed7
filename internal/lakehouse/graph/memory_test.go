package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertEntityIncrementsCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	e := EntityNode{ID: "e1", CustomerID: "cust-1", Text: "Eaton", Type: "ORG"}
	require.NoError(t, s.UpsertEntity(ctx, e))
	require.NoError(t, s.UpsertEntity(ctx, e))
	require.NoError(t, s.UpsertEntity(ctx, e))

	top, err := s.TopEntities(ctx, "cust-1", "", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 3, top[0].Count)
}

func TestTraverseRespectsMaxHops(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	rels := []Relationship{
		{CustomerID: "cust-1", SourceID: "a", TargetID: "b", Type: "PRODUCES"},
		{CustomerID: "cust-1", SourceID: "b", TargetID: "c", Type: "LOCATED_IN"},
		{CustomerID: "cust-1", SourceID: "c", TargetID: "d", Type: "MENTIONS"},
	}
	for _, r := range rels {
		require.NoError(t, s.UpsertRelationship(ctx, r))
	}

	oneHop, err := s.Traverse(ctx, "cust-1", "a", 1)
	require.NoError(t, err)
	require.Len(t, oneHop, 1)
	assert.Equal(t, "b", oneHop[0].ID)

	twoHop, err := s.Traverse(ctx, "cust-1", "a", 2)
	require.NoError(t, err)
	require.Len(t, twoHop, 2)

	threeHop, err := s.Traverse(ctx, "cust-1", "a", 3)
	require.NoError(t, err)
	require.Len(t, threeHop, 3)
}

func TestLinkDocumentToEntityIsTraversableAndCounted(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.UpsertDocument(ctx, DocumentNode{ID: "doc-1", CustomerID: "cust-1", Filename: "a.txt"}))
	require.NoError(t, s.UpsertEntity(ctx, EntityNode{ID: "e1", CustomerID: "cust-1", Text: "Eaton", Type: "ORG"}))
	require.NoError(t, s.LinkDocumentToEntity(ctx, "cust-1", "doc-1", "e1", ""))

	neighbors, err := s.Traverse(ctx, "cust-1", "doc-1", 1)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "e1", neighbors[0].ID)
	assert.Equal(t, "MENTIONS", neighbors[0].Type)

	stats, err := s.Stats(ctx, "cust-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Relationships)
}

func TestLinkDocumentToEntityHonorsExplicitRelType(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.LinkDocumentToEntity(ctx, "cust-1", "doc-1", "e1", "REFERENCES"))

	neighbors, err := s.Traverse(ctx, "cust-1", "doc-1", 1)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "REFERENCES", neighbors[0].Type)
}

func TestStatsScopedByCustomer(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.UpsertDocument(ctx, DocumentNode{ID: "d1", CustomerID: "cust-1", Filename: "a.txt"}))
	require.NoError(t, s.UpsertDocument(ctx, DocumentNode{ID: "d2", CustomerID: "cust-2", Filename: "b.txt"}))

	stats, err := s.Stats(ctx, "cust-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Documents)
}
