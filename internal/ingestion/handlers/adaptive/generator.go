// Package adaptive implements the Adaptive Handler Generator: when a
// discovered file's extension has no registered handler and an LLM
// credential is configured, synthesize, validate, sandbox-test, and
// persist a new handler.
package adaptive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"manifold/internal/ingestion/handlers"
	"manifold/internal/llm"
)

const (
	sampleBytes   = 4096
	minResultLen  = 10
	defaultTimeout = 60 * time.Second
)

// Generator synthesizes handlers for unknown file formats via an LLM,
// grounded on original_source/ingestion/claude_handler_generator.py.
type Generator struct {
	Provider llm.Provider
	Model    string
	Timeout  time.Duration

	// cache is the session map keyed by extension.
	cache map[string]handlers.Handler
}

// analysis is the structural-hint record produced from the file sample.
type analysis struct {
	Extension      string
	SampleText     string
	LooksXML       bool
	LooksJSONLike  bool
	TabCommaDense  bool
	HasMarkupTags  bool
	DomainKeywords []string
}

var domainKeywordPatterns = []string{"datev", "gtin", "gdpdu", "syndication"}

func analyze(ext string, sample []byte) analysis {
	text := string(sample)
	lower := strings.ToLower(text)

	a := analysis{
		Extension:     ext,
		SampleText:    text,
		LooksXML:      strings.HasPrefix(strings.TrimSpace(text), "<?xml") || strings.Contains(text, "<") && strings.Contains(text, ">"),
		LooksJSONLike: strings.HasPrefix(strings.TrimSpace(text), "{") || strings.HasPrefix(strings.TrimSpace(text), "["),
		HasMarkupTags: regexp.MustCompile(`</?\w+[^>]*>`).MatchString(text),
	}

	tabs := strings.Count(text, "\t")
	commas := strings.Count(text, ",")
	lines := strings.Count(text, "\n") + 1
	a.TabCommaDense = (tabs+commas) > 0 && float64(tabs+commas)/float64(lines) > 2

	for _, kw := range domainKeywordPatterns {
		if strings.Contains(lower, kw) {
			a.DomainKeywords = append(a.DomainKeywords, kw)
		}
	}
	return a
}

// Generate runs the full algorithm: sample → prompt → validate → sandbox
// test → persist-on-success. On any failure it returns ok=false and the
// caller should mark the file "unsupported".
func (g *Generator) Generate(ctx context.Context, samplePath string, handlerStoreDir string) (h handlers.Handler, sourceSaved string, ok bool) {
	if g.cache == nil {
		g.cache = map[string]handlers.Handler{}
	}
	ext := strings.ToLower(filepath.Ext(samplePath))
	if cached, found := g.cache[ext]; found {
		return cached, "", true
	}

	sample, err := readSample(samplePath, sampleBytes)
	if err != nil {
		return nil, "", false
	}
	a := analyze(ext, sample)

	timeout := g.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, className, err := g.promptForHandler(genCtx, a)
	if err != nil {
		return nil, "", false
	}

	if !validateSyntax(code, className) {
		return nil, "", false
	}

	sandboxed, err := loadInSandbox(code, className)
	if err != nil {
		return nil, "", false
	}

	result, err := sandboxed.Extract(genCtx, samplePath)
	if err != nil || len(strings.TrimSpace(result)) < minResultLen {
		return nil, "", false
	}

	savedPath := ""
	if handlerStoreDir != "" {
		savedPath = filepath.Join(handlerStoreDir, strings.TrimPrefix(ext, ".")+"_handler.go")
		_ = os.WriteFile(savedPath, []byte(code), 0o644)
	}

	g.cache[ext] = sandboxed
	return sandboxed, savedPath, true
}

func readSample(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return nil, err
	}
	return buf[:read], nil
}

const handlerPromptTemplate = `Write a self-contained Go handler for files with extension %q.

Structural analysis of a sample:
- Looks like XML: %v
- Looks JSON-like: %v
- Markup tags present: %v
- Tab/comma dense: %v
- Domain keywords found: %v

Sample (may be truncated):
%s

Requirements:
- Define exactly one exported type implementing:
    func (h *%s) Extract(ctx context.Context, path string) (string, error)
- The method must read the file at path and return its best-effort plain
  text content.
- Only use these packages: os, io, strings, strconv, regexp, encoding/json,
  encoding/xml, encoding/csv, bufio, context, fmt.
- Return only the Go source for the type and its method, no package
  declaration, no imports, no explanation.
`

func (g *Generator) promptForHandler(ctx context.Context, a analysis) (code, className string, err error) {
	className = "Generated" + sanitizeIdent(a.Extension) + "Handler"
	prompt := fmt.Sprintf(handlerPromptTemplate,
		a.Extension, a.LooksXML, a.LooksJSONLike, a.HasMarkupTags, a.TabCommaDense,
		a.DomainKeywords, truncate(a.SampleText, 2000), className)

	if g.Provider == nil {
		return "", "", fmt.Errorf("adaptive: no LLM provider configured")
	}
	resp, err := g.Provider.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, g.Model)
	if err != nil {
		return "", "", err
	}
	return extractCodeBlock(resp.Content), className, nil
}

func sanitizeIdent(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	var sb strings.Builder
	for i, r := range ext {
		if i == 0 {
			sb.WriteRune(strings.ToUpper(string(r))[0])
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var codeFence = regexp.MustCompile("(?s)```(?:go)?\\n(.*?)```")

func extractCodeBlock(content string) string {
	if m := codeFence.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// validateSyntax requires the generated source to define a type with an
// Extract method accepting at least a path (string) argument.
var extractMethodRE = regexp.MustCompile(`func\s*\([^)]*\*?(\w+)\)\s*Extract\s*\([^)]*\bstring\b[^)]*\)`)

func validateSyntax(code, expectedType string) bool {
	m := extractMethodRE.FindStringSubmatch(code)
	if m == nil {
		return false
	}
	return strings.Contains(code, "type "+m[1]+" struct") || m[1] == expectedType
}
