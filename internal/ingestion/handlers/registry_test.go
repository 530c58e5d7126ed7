package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryPopulatesBuiltins(t *testing.T) {
	r := NewRegistry()
	exts := r.SupportedExtensions()
	for _, ext := range []string{
		".txt", ".md", ".csv", ".tsv", ".xml", ".html", ".json", ".eml",
		".docx", ".xlsx", ".xls", ".pdf", ".stp", ".step",
		".jpg", ".jpeg", ".png", ".webp",
	} {
		assert.True(t, exts[ext], "expected builtin handler for %s", ext)
	}
}

func TestRegistryGetIsCaseInsensitiveOnExtension(t *testing.T) {
	r := NewRegistry()
	assert.NotNil(t, r.Get("report.TXT"))
	assert.NotNil(t, r.Get("report.txt"))
}

func TestRegistryGetUnknownExtensionReturnsNil(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("data.xyz"))
}

func TestRegisterOverwritesExistingHandler(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(".txt", HandlerFunc(func(_ context.Context, _ string) (string, error) {
		called = true
		return "overridden", nil
	}))

	h := r.Get("note.txt")
	require.NotNil(t, h)
	text, err := h.Extract(context.Background(), "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "overridden", text)
	assert.True(t, called)
}
