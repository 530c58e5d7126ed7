package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyYieldsEmpty(t *testing.T) {
	assert.Empty(t, Chunk(DefaultConfig(), "", ".txt"))
	assert.Empty(t, Chunk(DefaultConfig(), "   \n  ", ".txt"))
}

func TestChunkBelowMinimumYieldsSingleChunk(t *testing.T) {
	cfg := DefaultConfig()
	short := "short text"
	chunks := Chunk(cfg, short, ".txt")
	require.Len(t, chunks, 1)
	assert.Equal(t, short, chunks[0])
}

func TestChunkProseRespectsMaxSize(t *testing.T) {
	cfg := Config{MaxChunkSize: 200, MinChunkSize: 20, Overlap: 20}
	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, strings.Repeat("word ", 10))
	}
	text := strings.Join(paras, "\n\n")
	chunks := Chunk(cfg, text, ".txt")
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), cfg.MaxChunkSize+cfg.Overlap+4)
	}
}

func TestChunkProseMinSizeEnforcedWhenMultiple(t *testing.T) {
	cfg := Config{MaxChunkSize: 50, MinChunkSize: 30, Overlap: 5}
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40) + "\n\n" + strings.Repeat("c", 40)
	chunks := Chunk(cfg, text, ".txt")
	for _, c := range chunks {
		assert.GreaterOrEqual(t, len(c), cfg.MinChunkSize)
	}
}

func TestChunkTabularKeepsHeaderAndDropsHeaderOnlyTrailing(t *testing.T) {
	cfg := Config{MaxChunkSize: 40, MinChunkSize: 1, Overlap: 0}
	text := "id,name\n1,alpha\n2,beta\n3,gamma\n"
	chunks := Chunk(cfg, text, ".csv")
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c, "id,name"))
	}
}

func TestChunkCodeSplitsOnDefinitions(t *testing.T) {
	cfg := Config{MaxChunkSize: 1000, MinChunkSize: 5, Overlap: 0}
	text := "func A() {\n  return 1\n}\n\nfunc B() {\n  return 2\n}\n"
	chunks := Chunk(cfg, text, ".go")
	require.GreaterOrEqual(t, len(chunks), 1)
}

func TestChunkStructuredLinePacks(t *testing.T) {
	cfg := Config{MaxChunkSize: 20, MinChunkSize: 1, Overlap: 0}
	text := "{\n\"a\":1,\n\"b\":2,\n\"c\":3\n}\n"
	chunks := Chunk(cfg, text, ".json")
	require.NotEmpty(t, chunks)
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	in := "a\n\n\n\nb     c"
	out := normalize(in)
	assert.Equal(t, "a\n\nb c", out)
}

func TestSplitSentencesGermanBoundary(t *testing.T) {
	sentences := splitSentences("Das ist Satz eins. Ändere nun Satz zwei.")
	require.Len(t, sentences, 2)
	assert.Equal(t, "Das ist Satz eins.", sentences[0])
}
