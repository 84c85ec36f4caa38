package core

import (
	"testing"
	"time"
)

func TestDocumentMUS_RoundTrip(t *testing.T) {
	doc := Document{
		Id:          IDFromContent("handbook"),
		Name:        "handbook.txt",
		ContentHash: IDFromContent("body"),
		Version:     3,
		Obsolete:    true,
		SourcePath:  "/data/handbook.txt",
		InsertedAt:  time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	buf := make([]byte, DocumentMUS.Size(doc))
	n := DocumentMUS.Marshal(doc, buf)
	if n != len(buf) {
		t.Fatalf("Marshal wrote %d bytes, Size predicted %d", n, len(buf))
	}

	got, n, err := DocumentMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("Unmarshal consumed %d bytes, want %d", n, len(buf))
	}
	if !got.InsertedAt.Equal(doc.InsertedAt) || !got.UpdatedAt.Equal(doc.UpdatedAt) {
		t.Errorf("timestamps did not round-trip: %v vs %v", got.InsertedAt, doc.InsertedAt)
	}
	got.InsertedAt, got.UpdatedAt = doc.InsertedAt, doc.UpdatedAt
	if got != doc {
		t.Errorf("Unmarshal = %+v, want %+v", got, doc)
	}
}

func TestChunkMUS_RoundTrip(t *testing.T) {
	chunk := Chunk{
		Id:          IDFromContent("chunk"),
		DocumentId:  IDFromContent("doc"),
		Index:       7,
		Text:        "ICD-10 code for type 2 diabetes mellitus is E11.",
		StartOffset: 5600,
		EndOffset:   5648,
		Page:        12,
		Label:       "Chapter IV",
		ContentHash: ChunkHash("ICD-10 code for type 2 diabetes mellitus is E11.", 7, IDFromContent("doc")),
	}

	buf := make([]byte, ChunkMUS.Size(chunk))
	ChunkMUS.Marshal(chunk, buf)

	got, _, err := ChunkMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got != chunk {
		t.Errorf("Unmarshal = %+v, want %+v", got, chunk)
	}
}

func TestEmbeddingMUS_RoundTrip(t *testing.T) {
	rec := EmbeddingRecord{
		ChunkId:   IDFromContent("chunk"),
		Model:     "embeddinggemma",
		Vector:    []float32{0.25, -0.5, 0.832, 0},
		ChunkSize: 1000,
		Overlap:   200,
		Truncated: true,
	}

	buf := make([]byte, EmbeddingMUS.Size(rec))
	EmbeddingMUS.Marshal(rec, buf)

	got, _, err := EmbeddingMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.ChunkId != rec.ChunkId || got.Model != rec.Model ||
		got.ChunkSize != rec.ChunkSize || got.Overlap != rec.Overlap ||
		got.Truncated != rec.Truncated {
		t.Errorf("Unmarshal = %+v, want %+v", got, rec)
	}
	if len(got.Vector) != len(rec.Vector) {
		t.Fatalf("vector length = %d, want %d", len(got.Vector), len(rec.Vector))
	}
	for i := range rec.Vector {
		if got.Vector[i] != rec.Vector[i] {
			t.Errorf("vector[%d] = %v, want %v", i, got.Vector[i], rec.Vector[i])
		}
	}
}
