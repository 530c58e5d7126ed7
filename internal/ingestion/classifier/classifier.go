// Package classifier implements the two-tier (rule-based + LLM) document
// categorizer: a pre-assignment gate, an LLM tier preferred when a text
// sample and credential are available, and a rule-based fallback tier.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"manifold/internal/llm"
)

// Result is the outcome of classifying one file.
type Result struct {
	Category   string
	Confidence float64
	Tier       string // "pre_assigned" | "llm" | "rule"
}

// Classifier is the two-tier categorizer. Provider may be nil, in which
// case the LLM tier is skipped and the rule tier always decides.
type Classifier struct {
	Provider llm.Provider
	Model    string
}

const sampleWindow = 3000 // ~3 KB, enough for rules + LLM classification

// Classify runs the full pre-assignment → LLM → rule cascade for one file.
func (c *Classifier) Classify(ctx context.Context, path, filename, preAssigned, textSample string) Result {
	if preAssigned != "" && Categories[preAssigned] {
		return Result{Category: preAssigned, Confidence: 1.0, Tier: "pre_assigned"}
	}

	if c.Provider != nil && strings.TrimSpace(textSample) != "" {
		if cat, conf, ok := c.classifyLLM(ctx, filename, textSample); ok {
			return Result{Category: cat, Confidence: conf, Tier: "llm"}
		}
	}

	cat, score := classifyRules(path, filename)
	return Result{Category: cat, Confidence: ruleConfidence(score), Tier: "rule"}
}

// ClassifyBatch rule-classifies every file first (cheap, synchronous),
// then sends only low-confidence results through the LLM tier.
func (c *Classifier) ClassifyBatch(ctx context.Context, files []struct {
	Path, Filename, PreAssigned, TextSample string
}) []Result {
	results := make([]Result, len(files))
	const lowConfidenceThreshold = 0.5

	for i, f := range files {
		if f.PreAssigned != "" && Categories[f.PreAssigned] {
			results[i] = Result{Category: f.PreAssigned, Confidence: 1.0, Tier: "pre_assigned"}
			continue
		}
		cat, score := classifyRules(f.Path, f.Filename)
		results[i] = Result{Category: cat, Confidence: ruleConfidence(score), Tier: "rule"}
	}

	if c.Provider == nil {
		return results
	}
	for i, f := range files {
		if results[i].Tier != "rule" || results[i].Confidence >= lowConfidenceThreshold {
			continue
		}
		if strings.TrimSpace(f.TextSample) == "" {
			continue
		}
		if cat, conf, ok := c.classifyLLM(ctx, f.Filename, f.TextSample); ok {
			results[i] = Result{Category: cat, Confidence: conf, Tier: "llm"}
		}
	}
	return results
}

type llmClassification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

func (c *Classifier) classifyLLM(ctx context.Context, filename, textSample string) (string, float64, bool) {
	if len(textSample) > sampleWindow {
		textSample = textSample[:sampleWindow]
	}

	prompt := fmt.Sprintf(
		"Classify the following document into exactly one of: tax, legal, products, hr, correspondence, general.\n"+
			"Respond with a single JSON object: {\"category\": \"<one of the above>\", \"confidence\": <0..1>}.\n\n"+
			"Filename: %s\n\nText sample:\n%s", filename, textSample)

	msgs := []llm.Message{{Role: "user", Content: prompt}}
	resp, err := c.Provider.Chat(ctx, msgs, nil, c.Model)
	if err != nil {
		return "", 0, false
	}

	cat, conf, ok := parseClassification(resp.Content)
	if !ok || !Categories[cat] || cat == "general" {
		// "general" from the LLM tier is treated as non-committal; fall
		// through to the rule tier rather than trusting a low-signal guess.
		return "", 0, false
	}
	return cat, conf, true
}

// parseClassification parses the model's JSON response, salvaging by
// substring search for a known category token when strict JSON parsing
// fails.
func parseClassification(content string) (string, float64, bool) {
	var out llmClassification
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err == nil && Categories[out.Category] {
		return out.Category, clampConfidence(out.Confidence), true
	}

	lower := strings.ToLower(content)
	for cat := range Categories {
		if cat == "general" {
			continue
		}
		if strings.Contains(lower, cat) {
			return cat, 0.5, true
		}
	}
	return "", 0, false
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
