package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/retrievit/core"
)

// Key prefixes for different data types
const (
	documentPrefix     = "docrec"
	documentNamePrefix = "docname"
	chunkPrefix        = "chkrec"
	chunkDocPrefix     = "chkdoc"
	embeddingPrefix    = "embrec"
	dedupPrefix        = "dedup"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentNameKey generates a key for the name index pointing at the
// current version of a document.
func makeDocumentNameKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentNamePrefix, name))
}

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkPrefix, id))
}

// makeChunkDocKey generates a composite key for the chunk-by-document index.
// Format: prefix:documentID:chunkID
func makeChunkDocKey(documentID, chunkID core.ID) []byte {
	prefix := chunkDocPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for documentID + 8 bytes for chunkID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkID))
	return buf
}

// makePartialChunkDocKey generates a partial key for scanning one
// document's chunks.
func makePartialChunkDocKey(documentID core.ID) []byte {
	prefix := chunkDocPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}

// chunkIDFromDocKey recovers the chunk ID from a chunk-by-document index key.
func chunkIDFromDocKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeEmbeddingKey generates a key for a chunk's embedding under a model.
// Format: prefix:chunkID:model
func makeEmbeddingKey(chunkID core.ID, model string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s", embeddingPrefix, chunkID, model))
}

// makePartialEmbeddingKey generates a partial key for scanning one chunk's
// embeddings across models.
func makePartialEmbeddingKey(chunkID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:", embeddingPrefix, chunkID))
}

// makeDedupKey generates a key in the deduplication index. Two chunks
// collide only when they share a content hash under the same
// (model, chunk size, overlap) triple.
func makeDedupKey(model string, chunkSize, overlap int, contentHash core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:%d:%d", dedupPrefix, model, chunkSize, overlap, contentHash))
}
