package orchestrator

import (
	"time"

	"manifold/internal/ingestion/types"
	"manifold/internal/lakehouse/graph"
)

func graphDocumentNode(customerID string, f *types.FileDescriptor) graph.DocumentNode {
	return graph.DocumentNode{
		ID:         f.Path,
		CustomerID: customerID,
		Filename:   f.Name,
		Category:   f.Category,
		CreatedAt:  time.Now(),
	}
}

func graphEntityNodeFrom(customerID string, e types.Entity) graph.EntityNode {
	return graph.EntityNode{
		ID:         e.ID,
		CustomerID: customerID,
		Text:       e.Text,
		Type:       string(e.Type),
		Confidence: e.Confidence,
	}
}

func graphRelationshipFrom(customerID string, r types.Relationship) graph.Relationship {
	return graph.Relationship{
		CustomerID: customerID,
		SourceID:   r.SourceEntityID,
		TargetID:   r.TargetEntityID,
		Type:       r.Type,
		Confidence: r.Confidence,
	}
}
