package core

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the stored record types. The encoding is
// positional: fields are written in declaration order with varint integers,
// length-prefixed strings, and float32 values as their IEEE 754 bit patterns.

// IDMUS serializes an ID.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int { return varint.Uint64.Marshal(uint64(v), bs) }

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(v ID) int { return varint.Uint64.Size(uint64(v)) }

// Timestamps are stored as microseconds since the Unix epoch, UTC.
func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int { return varint.Int64.Size(t.UnixMicro()) }

func marshalVector(v []float32, bs []byte) int {
	n := varint.PositiveInt.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) ([]float32, int, error) {
	l, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if l == 0 {
		return nil, n, nil
	}
	v := make([]float32, l)
	for i := range v {
		bits, m, err := varint.Uint32.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		v[i] = math.Float32frombits(bits)
	}
	return v, n, nil
}

func sizeVector(v []float32) int {
	n := varint.PositiveInt.Size(len(v))
	for _, f := range v {
		n += varint.Uint32.Size(math.Float32bits(f))
	}
	return n
}

// DocumentMUS serializes a Document.
var DocumentMUS = documentMUS{}

type documentMUS struct{}

func (documentMUS) Marshal(v Document, bs []byte) int {
	n := IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += IDMUS.Marshal(v.ContentHash, bs[n:])
	n += varint.Int.Marshal(v.Version, bs[n:])
	n += ord.Bool.Marshal(v.Obsolete, bs[n:])
	n += ord.String.Marshal(v.SourcePath, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	var m int
	if v.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ContentHash, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Version, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Obsolete, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.SourcePath, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (documentMUS) Size(v Document) int {
	return IDMUS.Size(v.Id) +
		ord.String.Size(v.Name) +
		IDMUS.Size(v.ContentHash) +
		varint.Int.Size(v.Version) +
		ord.Bool.Size(v.Obsolete) +
		ord.String.Size(v.SourcePath) +
		sizeTime(v.InsertedAt) +
		sizeTime(v.UpdatedAt)
}

// ChunkMUS serializes a Chunk.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (chunkMUS) Marshal(v Chunk, bs []byte) int {
	n := IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.DocumentId, bs[n:])
	n += varint.Int.Marshal(v.Index, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += varint.Int.Marshal(v.StartOffset, bs[n:])
	n += varint.Int.Marshal(v.EndOffset, bs[n:])
	n += varint.Int.Marshal(v.Page, bs[n:])
	n += ord.String.Marshal(v.Label, bs[n:])
	n += IDMUS.Marshal(v.ContentHash, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	var m int
	if v.DocumentId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Index, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.StartOffset, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.EndOffset, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Page, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Label, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ContentHash, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (chunkMUS) Size(v Chunk) int {
	return IDMUS.Size(v.Id) +
		IDMUS.Size(v.DocumentId) +
		varint.Int.Size(v.Index) +
		ord.String.Size(v.Text) +
		varint.Int.Size(v.StartOffset) +
		varint.Int.Size(v.EndOffset) +
		varint.Int.Size(v.Page) +
		ord.String.Size(v.Label) +
		IDMUS.Size(v.ContentHash)
}

// EmbeddingMUS serializes an EmbeddingRecord.
var EmbeddingMUS = embeddingMUS{}

type embeddingMUS struct{}

func (embeddingMUS) Marshal(v EmbeddingRecord, bs []byte) int {
	n := IDMUS.Marshal(v.ChunkId, bs)
	n += ord.String.Marshal(v.Model, bs[n:])
	n += marshalVector(v.Vector, bs[n:])
	n += varint.Int.Marshal(v.ChunkSize, bs[n:])
	n += varint.Int.Marshal(v.Overlap, bs[n:])
	n += ord.Bool.Marshal(v.Truncated, bs[n:])
	return n
}

func (embeddingMUS) Unmarshal(bs []byte) (v EmbeddingRecord, n int, err error) {
	if v.ChunkId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	var m int
	if v.Model, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Vector, m, err = unmarshalVector(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ChunkSize, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Overlap, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Truncated, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (embeddingMUS) Size(v EmbeddingRecord) int {
	return IDMUS.Size(v.ChunkId) +
		ord.String.Size(v.Model) +
		sizeVector(v.Vector) +
		varint.Int.Size(v.ChunkSize) +
		varint.Int.Size(v.Overlap) +
		ord.Bool.Size(v.Truncated)
}
