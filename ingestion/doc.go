// Package ingestion turns source documents into stored, embedded chunks.
//
// The pipeline runs three stages per document: split the text into
// overlapping chunks, embed the chunk texts in batches on a worker pool,
// and upsert the chunk/embedding triples in one transaction. Documents
// are processed concurrently; the stages within one document are
// sequential. Re-ingesting unchanged content is a no-op thanks to the
// storage layer's content-hash deduplication, which makes ingestion safe
// to re-run.
package ingestion
