// Package structured implements the Structured Extractor / Schema
// Mapper: an LLM call that maps a source document's fields onto the
// standard products/syndication_products/data_quality_audit schemas
// using deployment-specific context, gated to category=="products" and
// a present DeploymentContext. Grounded on
// original_source/ingestion/extractor/intelligent_extractor.py (prompt
// shape, field list, required-field validation, fallback behavior).
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"manifold/internal/ingestion/types"
	"manifold/internal/llm"
)

const contentPreviewLimit = 8000

// Result is the validated, schema-mapped output of one extraction call.
type Result struct {
	Products             []types.ProductRecord
	SyndicationProducts   []types.SyndicationProductRecord
	DataQualityAudits     []types.DataQualityAuditRecord
}

// Extractor runs the LLM-driven schema mapping. Provider may be nil, in
// which case Extract always returns the fallback (empty) result.
type Extractor struct {
	Provider llm.Provider
	Model    string
}

// Extract maps fileContent onto the standard schemas. Only runs for
// classification=="products" when deployment is non-nil.
func (e *Extractor) Extract(ctx context.Context, fileContent, classification, filename string, deployment *types.DeploymentContext) (Result, error) {
	if classification != "products" || deployment == nil {
		return Result{}, nil
	}
	if e.Provider == nil {
		return Result{}, nil
	}

	prompt := e.buildPrompt(fileContent, filename, *deployment)
	resp, err := e.Provider.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, e.Model)
	if err != nil {
		return Result{}, fmt.Errorf("structured extractor: llm call failed for %s: %w", filename, err)
	}

	raw, err := parseExtractionJSON(resp.Content)
	if err != nil {
		return Result{}, nil // fallback: treat as no structured data, not a hard failure
	}

	return validate(raw, deployment.CustomerID), nil
}

type rawExtraction struct {
	Products            []map[string]any `json:"products"`
	SyndicationProducts  []map[string]any `json:"syndication_products"`
	DataQuality          json.RawMessage  `json:"data_quality"`
}

func parseExtractionJSON(content string) (rawExtraction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var out rawExtraction
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return rawExtraction{}, fmt.Errorf("parse extraction json: %w", err)
	}
	return out, nil
}

// validate drops products missing their required gtin field (a missing
// primary key is dropped silently rather than stored) and coerces
// price/timestamp/JSON sub-object fields into the standard Go types.
func validate(raw rawExtraction, customerID string) Result {
	var result Result

	for _, p := range raw.Products {
		gtin, _ := p["gtin"].(string)
		if strings.TrimSpace(gtin) == "" {
			continue // missing primary key: drop
		}
		result.Products = append(result.Products, types.ProductRecord{
			CustomerID: customerID,
			GTIN:       gtin,
			Brand:      stringField(p, "brand"),
			Name:       stringField(p, "product_name"),
			Price:      coerceMoney(p["price"], stringField(p, "currency")),
			IngestedAt: time.Now(),
			Metadata:   knownFieldsToMetadata(p, productKnownFields),
		})
	}

	for _, p := range raw.SyndicationProducts {
		id, _ := p["id"].(string)
		if strings.TrimSpace(id) == "" {
			id, _ = p["gtin"].(string)
		}
		if strings.TrimSpace(id) == "" {
			continue
		}
		result.SyndicationProducts = append(result.SyndicationProducts, types.SyndicationProductRecord{
			CustomerID:     customerID,
			ID:             id,
			Price:          coerceMoney(p["price"], stringField(p, "currency")),
			LastUpdated:    time.Now(),
			Images:         stringSliceField(p, "images"),
			CADFiles:       stringSliceField(p, "cad_files"),
			TechnicalSpecs: mapField(p, "technical_specs"),
			ComplianceData: mapField(p, "compliance_data"),
		})
	}

	if len(raw.DataQuality) > 0 {
		var dq map[string]any
		if err := json.Unmarshal(raw.DataQuality, &dq); err == nil {
			result.DataQualityAudits = append(result.DataQualityAudits, types.DataQualityAuditRecord{
				CustomerID:       customerID,
				ID:               fmt.Sprintf("dq_%d", time.Now().UnixNano()),
				DataSources:      mapKeysAsDataSources(dq["data_sources"]),
				ConfidenceLevels: confidenceLevelCounts(dq["confidence_levels"]),
				ExtractionNotes:  stringSliceField(dq, "extraction_notes"),
				CreatedAt:        time.Now(),
			})
		}
	}

	return result
}

var productKnownFields = map[string]bool{
	"gtin": true, "brand": true, "product_name": true, "price": true, "currency": true,
}

func knownFieldsToMetadata(m map[string]any, known map[string]bool) map[string]any {
	out := map[string]any{}
	for k, v := range m {
		if !known[k] {
			out[k] = v
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringSliceField(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			out = append(out, val)
		default:
			b, _ := json.Marshal(val) // structured image/CAD entries -> JSON string
			out = append(out, string(b))
		}
	}
	return out
}

func mapField(m map[string]any, key string) map[string]any {
	sub, ok := m[key].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return sub
}

// coerceMoney converts a numeric or string price plus currency into the
// fixed-point Money representation (minor units), avoiding a fabricated
// decimal dependency not present anywhere in the corpus.
func coerceMoney(price any, currency string) types.Money {
	if currency == "" {
		currency = "EUR"
	}
	var amount float64
	switch v := price.(type) {
	case float64:
		amount = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return types.Money{Currency: currency}
		}
		amount = parsed
	default:
		return types.Money{Currency: currency}
	}
	return types.Money{MinorUnits: int64(amount*100 + 0.5), Currency: currency}
}

func mapKeysAsDataSources(v any) []string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func confidenceLevelCounts(v any) map[string]float64 {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if list, ok := v.([]any); ok {
			out[k] = float64(len(list))
		}
	}
	return out
}
