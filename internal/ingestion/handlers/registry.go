// Package handlers implements the per-format extractor registry: a map
// from lowercased, dot-prefixed extension to a Handler instance, plus
// the built-in handler set. Handler lookup is deterministic given the
// registry state: Get(path) depends only on path's extension.
package handlers

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

// Handler extracts plain text from a file.
type Handler interface {
	Extract(ctx context.Context, path string) (string, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, path string) (string, error)

func (f HandlerFunc) Extract(ctx context.Context, path string) (string, error) { return f(ctx, path) }

// Registry maps extensions to handlers. Mutated only at startup and from
// the adaptive generator (which must serialize its own writes);
// concurrent reads are always safe.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry builds a registry pre-populated with the built-in handler set.
func NewRegistry() *Registry {
	r := &Registry{handlers: map[string]Handler{}}
	registerBuiltins(r)
	return r
}

// Get returns the handler registered for path's lowercased extension, or
// nil if none is registered. Deterministic: depends only on extension.
func (r *Registry) Get(path string) Handler {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[ext]
}

// Register installs (or overwrites — last-writer-wins) a handler for an
// extension. Safe to call concurrently with Get; callers generating
// handlers concurrently must serialize their own Register calls.
func (r *Registry) Register(ext string, h Handler) {
	ext = strings.ToLower(ext)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[ext] = h
}

// SetPDFOCR swaps the `.pdf` handler for one that falls back to a
// chromedp rasterize + OCR pass when the text-layer scrape comes back
// below the configured floor. Called once at wiring time; leaving it
// unset keeps the default text-layer-only PDF handler.
func (r *Registry) SetPDFOCR(ocr OCRFunc) {
	r.Register(".pdf", extractPDFWithOCR(ocr))
}

// SetImageAnalysis swaps the image handlers (.jpg/.jpeg/.png/.webp) for
// ones that post the image to analyze for OCR text recognition or vision
// captioning. Called once at wiring time; leaving it unset keeps images
// registered but returning empty text.
func (r *Registry) SetImageAnalysis(analyze ImageAnalysisFunc) {
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		r.Register(ext, extractImage(analyze))
	}
}

// SupportedExtensions returns every extension with a registered handler.
func (r *Registry) SupportedExtensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.handlers))
	for ext := range r.handlers {
		out[ext] = true
	}
	return out
}
