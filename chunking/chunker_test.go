package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("overlap equal to chunk size", func(t *testing.T) {
		cfg := Config{ChunkSize: 100, Overlap: 100, Strategy: StrategyFixed}
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("overlap larger than chunk size", func(t *testing.T) {
		cfg := Config{ChunkSize: 100, Overlap: 150, Strategy: StrategyFixed}
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfig)
	})

	t.Run("zero chunk size", func(t *testing.T) {
		cfg := Config{ChunkSize: 0, Overlap: 0, Strategy: StrategyFixed}
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfig)
	})

	t.Run("negative overlap", func(t *testing.T) {
		cfg := Config{ChunkSize: 100, Overlap: -1, Strategy: StrategyFixed}
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfig)
	})
}

func TestNew_RejectsBadConfigBeforeAnyWork(t *testing.T) {
	_, err := New(Config{ChunkSize: 500, Overlap: 500, Strategy: StrategyFixed})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]Strategy{
		"fixed":     StrategyFixed,
		"recursive": StrategyRecursive,
		"page":      StrategyPage,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseStrategy("semantic")
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestSplit_Deterministic(t *testing.T) {
	chunker, err := New(Config{ChunkSize: 50, Overlap: 10, Strategy: StrategyFixed})
	require.NoError(t, err)

	docID := core.IDFromContent("handbook")
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)

	first, err := chunker.Split(docID, text)
	require.NoError(t, err)
	second, err := chunker.Split(docID, text)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].StartOffset, second[i].StartOffset)
		assert.Equal(t, first[i].EndOffset, second[i].EndOffset)
		assert.Equal(t, first[i].ContentHash, second[i].ContentHash)
	}
}

func TestSplit_StableIndicesAndNoEmptyChunks(t *testing.T) {
	chunker, err := New(Config{ChunkSize: 40, Overlap: 8, Strategy: StrategyFixed})
	require.NoError(t, err)

	docID := core.IDFromContent("doc")
	chunks, err := chunker.Split(docID, strings.Repeat("alpha beta gamma delta. ", 15))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Text)
		assert.Equal(t, docID, chunk.DocumentId)
		assert.LessOrEqual(t, len([]rune(chunk.Text)), 40)
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	chunker, err := New(Config{ChunkSize: 60, Overlap: 20, Strategy: StrategyFixed})
	require.NoError(t, err)

	text := "First sentence here. Second sentence follows it closely. Third one rounds out the text nicely."
	chunks, err := chunker.Split(core.IDFromContent("doc"), text)
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)

	// The first boundary should land after a sentence end, not mid-word.
	assert.True(t, strings.HasSuffix(chunks[0].Text, "."),
		"first chunk %q should end at a sentence boundary", chunks[0].Text)
}

func TestSplit_FinalChunkMayBeShort(t *testing.T) {
	chunker, err := New(Config{ChunkSize: 30, Overlap: 5, Strategy: StrategyFixed})
	require.NoError(t, err)

	chunks, err := chunker.Split(core.IDFromContent("doc"), "tiny text")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "tiny text", chunks[0].Text)
}

func TestSplit_EmptyInput(t *testing.T) {
	chunker, err := New(DefaultConfig())
	require.NoError(t, err)

	chunks, err := chunker.Split(core.IDFromContent("doc"), "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_Recursive(t *testing.T) {
	chunker, err := New(Config{ChunkSize: 80, Overlap: 10, Strategy: StrategyRecursive})
	require.NoError(t, err)

	text := "Paragraph one is short.\n\nParagraph two says a little more than the first one did.\n\nParagraph three closes."
	chunks, err := chunker.Split(core.IDFromContent("doc"), text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Text)
	}

	// Determinism holds for the recursive strategy too.
	again, err := chunker.Split(core.IDFromContent("doc"), text)
	require.NoError(t, err)
	require.Equal(t, len(chunks), len(again))
	for i := range chunks {
		assert.Equal(t, chunks[i].Text, again[i].Text)
	}
}

func TestSplitPages_CarriesPageMetadata(t *testing.T) {
	chunker, err := New(Config{ChunkSize: 50, Overlap: 10, Strategy: StrategyPage})
	require.NoError(t, err)

	pages := []Page{
		{Text: "Content of the first page of the document.", Number: 1, Label: "Introduction"},
		{Text: "Content of the second page, somewhat longer than the first page was.", Number: 2, Label: "Body"},
	}

	chunks, err := chunker.SplitPages(core.IDFromContent("doc"), pages)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "Introduction", chunks[0].Label)
	last := chunks[len(chunks)-1]
	assert.Equal(t, 2, last.Page)
	assert.Equal(t, "Body", last.Label)

	// Offsets are document-global and monotonically ordered by index.
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartOffset, chunks[i-1].StartOffset)
	}
}
