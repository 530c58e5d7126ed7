// Package chunker implements extension-dependent text chunking: prose
// (paragraph/sentence aware), tabular (header-prefixed row packing),
// code (definition-boundary splitting), and structured (line packing),
// preceded by a common text normalization pass.
package chunker

import (
	"regexp"
	"strings"
)

// Config mirrors original_source/ingestion/processor/chunker.py's
// ChunkConfig dataclass.
type Config struct {
	MaxChunkSize int
	MinChunkSize int
	Overlap      int
}

// DefaultConfig matches the source's defaults.
func DefaultConfig() Config {
	return Config{MaxChunkSize: 1000, MinChunkSize: 100, Overlap: 100}
}

var (
	collapseNewlines = regexp.MustCompile(`\n{3,}`)
	collapseSpaces   = regexp.MustCompile(`[ \t]+`)
	trimAroundNewline = regexp.MustCompile(` ?\n ?`)
	sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+([A-ZÄÖÜ])`)
)

// normalize collapses 3+ consecutive newlines to two and consecutive
// spaces/tabs to one.
func normalize(text string) string {
	text = collapseNewlines.ReplaceAllString(text, "\n\n")
	text = collapseSpaces.ReplaceAllString(text, " ")
	text = trimAroundNewline.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// extensionClass buckets a file extension into one of the four chunking
// strategies.
func extensionClass(ext string) string {
	switch strings.ToLower(ext) {
	case ".csv", ".tsv", ".xlsx", ".xls":
		return "tabular"
	case ".py", ".js", ".ts", ".java", ".cpp", ".c", ".go":
		return "code"
	case ".json", ".xml", ".html":
		return "structured"
	default:
		return "prose"
	}
}

// Chunk splits text into semantically meaningful pieces per the
// extension's strategy. Empty input yields an empty list; input shorter
// than MinChunkSize yields a single chunk.
func Chunk(cfg Config, text, extension string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) < cfg.MinChunkSize {
		return []string{trimmed}
	}

	text = normalize(text)

	var chunks []string
	switch extensionClass(extension) {
	case "tabular":
		chunks = chunkTabular(cfg, text)
	case "code":
		chunks = chunkCode(cfg, text)
	case "structured":
		chunks = chunkStructured(cfg, text)
	default:
		chunks = chunkProse(cfg, text)
	}

	if len(chunks) > 1 {
		filtered := chunks[:0]
		for _, c := range chunks {
			if len(c) >= cfg.MinChunkSize {
				filtered = append(filtered, c)
			}
		}
		chunks = filtered
	}
	return chunks
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

func chunkProse(cfg Config, text string) []string {
	var chunks []string
	var current []string
	currentSize := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
		}
	}

	tailOverlap := func() string {
		if len(current) == 0 {
			return ""
		}
		last := current[len(current)-1]
		if len(last) > cfg.Overlap {
			return last[len(last)-cfg.Overlap:]
		}
		return last
	}

	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraSize := len(para)

		switch {
		case currentSize+paraSize+2 <= cfg.MaxChunkSize:
			current = append(current, para)
			currentSize += paraSize + 2

		case paraSize > cfg.MaxChunkSize:
			flush()
			current, currentSize = nil, 0
			chunks, current, currentSize = chunkLongParagraph(cfg, chunks, para)

		default:
			overlap := tailOverlap()
			flush()
			if overlap != "" {
				current = []string{overlap, para}
				currentSize = len(overlap) + paraSize + 2
			} else {
				current = []string{para}
				currentSize = paraSize + 2
			}
		}
	}
	flush()
	return chunks
}

// chunkLongParagraph splits one over-long paragraph by sentence
// boundaries, carrying tail overlap between sentence-packed chunks.
func chunkLongParagraph(cfg Config, chunks []string, para string) ([]string, []string, int) {
	sentences := splitSentences(para)
	var current []string
	currentSize := 0

	for _, sentence := range sentences {
		sentSize := len(sentence)
		if currentSize+sentSize+1 <= cfg.MaxChunkSize {
			current = append(current, sentence)
			currentSize += sentSize + 1
			continue
		}

		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}

		overlap := ""
		if len(current) > 0 {
			overlap = current[len(current)-1]
			if len(overlap) > cfg.Overlap {
				overlap = overlap[len(overlap)-cfg.Overlap:]
			}
		}
		if overlap != "" {
			current = []string{overlap, sentence}
			currentSize = len(overlap) + sentSize + 1
		} else {
			current = []string{sentence}
			currentSize = sentSize + 1
		}
	}

	return chunks, current, currentSize
}

// splitSentences handles German and English sentence boundaries, per
// original_source/ingestion/processor/chunker.py's _split_sentences.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	matches := sentenceBoundary.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		boundary := m[3] // end index of the punctuation group
		sentences = append(sentences, text[last:boundary])
		last = m[4] // start index of the following capital letter
	}
	sentences = append(sentences, text[last:])

	out := sentences[:0]
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func chunkTabular(cfg Config, text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil
	}

	var chunks []string
	header := lines[0]
	headerSize := len(header) + 1
	var current []string
	currentSize := 0

	for i, line := range lines {
		lineSize := len(line) + 1
		if i == 0 {
			current = append(current, line)
			currentSize = lineSize
			continue
		}
		if currentSize+lineSize <= cfg.MaxChunkSize {
			current = append(current, line)
			currentSize += lineSize
		} else {
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, "\n"))
			}
			current = []string{header, line}
			currentSize = headerSize + lineSize
		}
	}
	// Trailing chunks containing only the header are discarded.
	if len(current) > 1 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

var codeDefinitionLine = regexp.MustCompile(`^\s*(func |def |class |function |const |let |var |public |private |@\w)`)

func chunkCode(cfg Config, text string) []string {
	lines := strings.Split(text, "\n")
	var chunks []string
	var current []string
	currentSize := 0

	for _, line := range lines {
		lineSize := len(line) + 1
		isDefinition := codeDefinitionLine.MatchString(line)

		switch {
		case isDefinition && len(current) > 0 && currentSize > cfg.MinChunkSize:
			chunks = append(chunks, strings.Join(current, "\n"))
			current = []string{line}
			currentSize = lineSize
		case currentSize+lineSize <= cfg.MaxChunkSize:
			current = append(current, line)
			currentSize += lineSize
		default:
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, "\n"))
			}
			current = []string{line}
			currentSize = lineSize
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

func chunkStructured(cfg Config, text string) []string {
	lines := strings.Split(text, "\n")
	var chunks []string
	var current []string
	currentSize := 0

	for _, line := range lines {
		lineSize := len(line) + 1
		if currentSize+lineSize <= cfg.MaxChunkSize {
			current = append(current, line)
			currentSize += lineSize
		} else {
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, "\n"))
			}
			current = []string{line}
			currentSize = lineSize
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}
