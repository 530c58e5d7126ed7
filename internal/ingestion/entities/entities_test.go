package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/ingestion/types"
)

func TestExtractGermanProductScenario(t *testing.T) {
	e := &Extractor{}
	text := "Die Eaton FRCDM-40 wurde in Bonn hergestellt und vertrieben."
	ents, rels := e.Extract(text, "doc1")

	byType := map[types.EntityType][]string{}
	for _, ent := range ents {
		byType[ent.Type] = append(byType[ent.Type], ent.Text)
	}

	assert.Contains(t, byType[types.EntityOrg], "Eaton")
	assert.Contains(t, byType[types.EntityProduct], "FRCDM-40")
	assert.Contains(t, byType[types.EntityLoc], "Bonn")

	foundProducedBy := false
	for _, r := range rels {
		if r.Type == "PRODUCED_BY" || r.Type == "PRODUCES" {
			foundProducedBy = true
		}
	}
	assert.True(t, foundProducedBy, "expected a PRODUCES/PRODUCED_BY relationship between ORG and PRODUCT")
}

func TestEntityIDIsStableHashOfTextAndType(t *testing.T) {
	id1 := EntityID("Eaton", types.EntityOrg)
	id2 := EntityID("eaton", types.EntityOrg)
	id3 := EntityID("Eaton", types.EntityProduct)
	assert.Equal(t, id1, id2, "identity should be case-insensitive on text")
	assert.NotEqual(t, id1, id3, "identity must vary with type")
}

func TestResolveOverlapsKeepsEarliestHighestConfidence(t *testing.T) {
	raw := []types.Entity{
		{ID: "a", Start: 0, End: 10, Confidence: 0.5},
		{ID: "b", Start: 0, End: 10, Confidence: 0.9},
		{ID: "c", Start: 11, End: 20, Confidence: 0.5},
	}
	resolved := resolveOverlaps(raw)
	require.Len(t, resolved, 2)
	assert.Equal(t, "b", resolved[0].ID)
	assert.Equal(t, "c", resolved[1].ID)
}
