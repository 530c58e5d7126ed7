package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/llm"
)

func TestClassifyPreAssigned(t *testing.T) {
	c := &Classifier{}
	r := c.Classify(context.Background(), "/data/x.csv", "x.csv", "products", "")
	assert.Equal(t, "products", r.Category)
	assert.Equal(t, "pre_assigned", r.Tier)
	assert.Equal(t, 1.0, r.Confidence)
}

func TestClassifyRuleFallbackGeneral(t *testing.T) {
	c := &Classifier{}
	r := c.Classify(context.Background(), "/data/random_notes.txt", "random_notes.txt", "", "")
	assert.Equal(t, "general", r.Category)
	assert.Equal(t, "rule", r.Tier)
}

func TestClassifyRuleStrongSignal(t *testing.T) {
	c := &Classifier{}
	r := c.Classify(context.Background(), "/data/products/datenblatt_eaton.pdf", "datenblatt_eaton.pdf", "", "")
	assert.Equal(t, "products", r.Category)
	assert.Equal(t, "rule", r.Tier)
	assert.Greater(t, r.Confidence, 0.0)
}

func TestClassifyAlwaysInClosedSet(t *testing.T) {
	c := &Classifier{}
	paths := []string{"/a/b.csv", "/a/steuer_2025.pdf", "/a/vertrag.docx", "/a/mitarbeiter.xlsx"}
	for _, p := range paths {
		r := c.Classify(context.Background(), p, p, "", "")
		assert.True(t, Categories[r.Category], "category %q must be in closed set", r.Category)
	}
}

type fakeProvider struct {
	content string
	err     error
}

func (f *fakeProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	if f.err != nil {
		return llm.Message{}, f.err
	}
	return llm.Message{Role: "assistant", Content: f.content}, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
	return nil
}

func TestClassifyLLMTierJSON(t *testing.T) {
	c := &Classifier{Provider: &fakeProvider{content: `{"category":"tax","confidence":0.9}`}}
	r := c.Classify(context.Background(), "/a/x.pdf", "x.pdf", "", "some tax document text")
	require.Equal(t, "tax", r.Category)
	assert.Equal(t, "llm", r.Tier)
	assert.Equal(t, 0.9, r.Confidence)
}

func TestClassifyLLMTierSalvageBySubstring(t *testing.T) {
	c := &Classifier{Provider: &fakeProvider{content: "I think this is legal correspondence but mostly legal."}}
	r := c.Classify(context.Background(), "/a/x.pdf", "x.pdf", "", "some text")
	assert.Equal(t, "llm", r.Tier)
	assert.True(t, Categories[r.Category])
}

func TestClassifyLLMFailureFallsBackToRule(t *testing.T) {
	c := &Classifier{Provider: &fakeProvider{err: assertErr{}}}
	r := c.Classify(context.Background(), "/a/steuer.pdf", "steuer.pdf", "", "text")
	assert.Equal(t, "rule", r.Tier)
	assert.Equal(t, "tax", r.Category)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestClassifyBatchOnlyLowConfidenceGoesToLLM(t *testing.T) {
	c := &Classifier{Provider: &fakeProvider{content: `{"category":"hr","confidence":0.8}`}}
	files := []struct {
		Path, Filename, PreAssigned, TextSample string
	}{
		{Path: "/a/datenblatt_produkt.pdf", Filename: "datenblatt_produkt.pdf", TextSample: "..."},
		{Path: "/a/notes.txt", Filename: "notes.txt", TextSample: "personal files about employees"},
	}
	results := c.ClassifyBatch(context.Background(), files)
	require.Len(t, results, 2)
	assert.Equal(t, "rule", results[0].Tier)
	assert.Equal(t, "llm", results[1].Tier)
	assert.Equal(t, "hr", results[1].Category)
}
