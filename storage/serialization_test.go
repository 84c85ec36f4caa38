package storage

import (
	"testing"
	"time"

	"github.com/poiesic/retrievit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalIDEmptyData(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &core.Document{
		Id:          core.IDFromContent("guide"),
		Name:        "guide",
		ContentHash: core.IDFromContent("guide-body"),
		Version:     3,
		Obsolete:    true,
		SourcePath:  "/docs/guide.txt",
		InsertedAt:  now,
		UpdatedAt:   now.Add(time.Hour),
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc.Id, decoded.Id)
	assert.Equal(t, doc.Name, decoded.Name)
	assert.Equal(t, doc.ContentHash, decoded.ContentHash)
	assert.Equal(t, doc.Version, decoded.Version)
	assert.Equal(t, doc.Obsolete, decoded.Obsolete)
	assert.Equal(t, doc.SourcePath, decoded.SourcePath)
	assert.True(t, doc.InsertedAt.Equal(decoded.InsertedAt))
	assert.True(t, doc.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		Id:          core.ChunkHash("some chunk text", 4, core.IDFromContent("guide")),
		DocumentId:  core.IDFromContent("guide"),
		Index:       4,
		Text:        "some chunk text",
		StartOffset: 120,
		EndOffset:   135,
		Page:        2,
		Label:       "Introduction",
		ContentHash: core.IDFromContent("some chunk text"),
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestMarshalUnmarshalEmbedding(t *testing.T) {
	record := &core.EmbeddingRecord{
		ChunkId:   core.ID(99),
		Model:     "embeddinggemma",
		Vector:    core.NormalizeVector([]float32{0.5, -0.25, 0.125, 1}),
		ChunkSize: 1000,
		Overlap:   200,
		Truncated: true,
	}

	decoded, err := UnmarshalEmbedding(MarshalEmbedding(record))
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestUnmarshalChunkTruncatedData(t *testing.T) {
	chunk := &core.Chunk{Id: 1, DocumentId: 2, Index: 0, Text: "hello world"}
	data := MarshalChunk(chunk)

	_, err := UnmarshalChunk(data[:len(data)/2])
	assert.Error(t, err)
}
