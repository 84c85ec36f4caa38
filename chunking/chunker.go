package chunking

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/retrievit/core"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 200

// Strategy selects the chunking algorithm.
type Strategy int

const (
	// StrategyFixed slides a fixed window, breaking near whitespace.
	StrategyFixed Strategy = iota + 1
	// StrategyRecursive splits on separator hierarchies (paragraph,
	// line, sentence) before falling back to the window.
	StrategyRecursive
	// StrategyPage chunks each extracted page independently, carrying
	// its page number and label.
	StrategyPage
)

// ParseStrategy converts a strategy name to its Strategy value.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "fixed":
		return StrategyFixed, nil
	case "recursive":
		return StrategyRecursive, nil
	case "page":
		return StrategyPage, nil
	default:
		return 0, fmt.Errorf("%w: unknown chunking strategy %q", core.ErrConfig, name)
	}
}

// Page is one extracted page of a document, supplied by the upstream
// text-extraction collaborator.
type Page struct {
	Text   string
	Number int // 1-based
	Label  string
}

// Config holds chunking parameters. Identical input and config always
// produce identical chunk boundaries.
type Config struct {
	ChunkSize int // characters per chunk
	Overlap   int // characters shared between adjacent chunks
	Strategy  Strategy
}

// DefaultConfig returns a Config with the default window parameters and
// the fixed strategy.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultOverlap,
		Strategy:  StrategyFixed,
	}
}

// Validate checks the configuration. Overlap must be strictly smaller than
// the chunk size or the window cannot advance.
func (c Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size %d must be positive", core.ErrConfig, c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap %d must not be negative", core.ErrConfig, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk_size %d", core.ErrConfig, c.Overlap, c.ChunkSize)
	}
	switch c.Strategy {
	case StrategyFixed, StrategyRecursive, StrategyPage:
	default:
		return fmt.Errorf("%w: unknown chunking strategy %d", core.ErrConfig, c.Strategy)
	}
	return nil
}

// Chunker splits extracted document text into overlapping, stably indexed
// chunks. It is stateless and safe for concurrent use.
type Chunker struct {
	config Config
}

// New creates a Chunker, validating the configuration up front so that a
// bad window never reaches the embedding stage.
func New(config Config) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Config returns the chunker's configuration.
func (c *Chunker) Config() Config { return c.config }

// Split chunks a document's full text. Chunk IDs and content hashes are
// derived from the owning document so re-chunking is reproducible.
func (c *Chunker) Split(documentID core.ID, text string) ([]*core.Chunk, error) {
	if c.config.Strategy == StrategyRecursive {
		return c.splitRecursive(documentID, text)
	}
	return c.window(documentID, text, 0, 0, "", nil)
}

// SplitPages chunks pre-split pages, carrying page numbers and labels.
// Offsets are document-global, treating pages as newline-joined.
func (c *Chunker) SplitPages(documentID core.ID, pages []Page) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	offset := 0
	for _, page := range pages {
		chunks, _ = c.windowInto(documentID, page.Text, offset, page.Number, page.Label, chunks)
		offset += len([]rune(page.Text)) + 1 // +1 for the page separator
	}
	return chunks, nil
}

func (c *Chunker) window(documentID core.ID, text string, baseOffset, page int, label string, into []*core.Chunk) ([]*core.Chunk, error) {
	chunks, _ := c.windowInto(documentID, text, baseOffset, page, label, into)
	return chunks, nil
}

// windowInto slides a window of ChunkSize runes with Overlap runes shared
// between neighbours, preferring to break near a sentence or whitespace
// boundary inside the overlap region. Empty chunks are never emitted; the
// final chunk may be shorter than ChunkSize.
func (c *Chunker) windowInto(documentID core.ID, text string, baseOffset, page int, label string, into []*core.Chunk) ([]*core.Chunk, int) {
	runes := []rune(text)
	size := c.config.ChunkSize
	overlap := c.config.Overlap

	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustBoundary(runes, start, end, overlap)
		}

		piece := strings.TrimRight(string(runes[start:end]), " \t\n\r")
		if piece != "" {
			into = appendChunk(into, documentID, piece, baseOffset+start, baseOffset+end, page, label)
		}

		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return into, len(runes)
}

// adjustBoundary moves a tentative chunk end backwards to the best break
// point inside the overlap region: a sentence end if one exists, otherwise
// the last whitespace. The end stays put when the region has neither, or
// when overlap is zero.
func adjustBoundary(runes []rune, start, end, overlap int) int {
	lo := end - overlap
	if lo <= start {
		return end
	}
	sentence, space := -1, -1
	for i := end - 1; i >= lo; i-- {
		r := runes[i]
		if space < 0 && (r == ' ' || r == '\t' || r == '\n') {
			space = i + 1
		}
		if r == '\n' || ((r == '.' || r == '?' || r == '!') && i+1 < len(runes) && isSpace(runes[i+1])) {
			sentence = i + 1
			break
		}
	}
	if sentence > start {
		return sentence
	}
	if space > start {
		return space
	}
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// splitRecursive delegates to langchaingo's recursive character splitter
// and recovers stable offsets by scanning the source text.
func (c *Chunker) splitRecursive(documentID core.ID, text string) ([]*core.Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.config.ChunkSize),
		textsplitter.WithChunkOverlap(c.config.Overlap),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: recursive split: %v", core.ErrConfig, err)
	}

	var chunks []*core.Chunk
	searchFrom := 0
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		start := strings.Index(text[searchFrom:], piece)
		if start < 0 {
			// Splitter collapsed whitespace; fall back to the running position.
			start = 0
		}
		byteStart := searchFrom + start
		runeStart := len([]rune(text[:byteStart]))
		runeEnd := runeStart + len([]rune(piece))
		chunks = appendChunk(chunks, documentID, piece, runeStart, runeEnd, 0, "")
		searchFrom = byteStart + 1
	}
	return chunks, nil
}

func appendChunk(chunks []*core.Chunk, documentID core.ID, text string, start, end, page int, label string) []*core.Chunk {
	index := len(chunks)
	return append(chunks, &core.Chunk{
		Id:          core.ChunkHash(text, index, documentID),
		DocumentId:  documentID,
		Index:       index,
		Text:        text,
		StartOffset: start,
		EndOffset:   end,
		Page:        page,
		Label:       label,
		ContentHash: core.ChunkHash(text, index, documentID),
	})
}
