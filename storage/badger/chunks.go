package badger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/index"
	"github.com/poiesic/retrievit/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
// Vectors live in an in-process HNSW graph rebuilt from the stored
// embedding records when the repository is opened and kept in step with
// every upsert, delete, and compaction.
type ChunkRepository struct {
	backend         *Backend
	logger          *slog.Logger
	includeObsolete bool
	model           string

	// mu serializes writes so the graph never drifts from badger;
	// searches take the read side.
	mu    sync.RWMutex
	graph *index.HNSW
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// Option configures a ChunkRepository.
type Option func(*ChunkRepository) error

// WithIncludeObsolete keeps obsolete documents' chunks visible in Query
// and GetAllChunks. Intended for debugging, not for serving.
func WithIncludeObsolete() Option {
	return func(r *ChunkRepository) error {
		r.includeObsolete = true
		return nil
	}
}

// WithModel restricts the similarity graph to embeddings stored under the
// given model. Without it the first embedding seen fixes the vector
// dimensionality and records of other dimensions are skipped.
func WithModel(model string) Option {
	return func(r *ChunkRepository) error {
		r.model = model
		return nil
	}
}

// WithLogger sets the logger used by the repository.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ChunkRepository) error {
		if logger == nil {
			return fmt.Errorf("%w: logger must not be nil", core.ErrConfig)
		}
		r.logger = logger
		return nil
	}
}

// NewChunkRepository creates a ChunkRepository over the backend and
// rebuilds the similarity graph from storage.
func NewChunkRepository(backend *Backend, opts ...Option) (*ChunkRepository, error) {
	r := &ChunkRepository{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if err := r.rebuildGraph(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases resources. ChunkRepository has no resources to release.
func (r *ChunkRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// rebuildGraph loads every live embedding record into a fresh HNSW graph.
func (r *ChunkRepository) rebuildGraph() error {
	start := time.Now()
	var loaded, skipped int

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		obsolete, err := obsoleteDocumentSet(tx)
		if err != nil {
			return err
		}

		owners, err := chunkOwners(tx)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var graph *index.HNSW
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.EmbeddingRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				return err
			}
			if record == nil || (r.model != "" && record.Model != r.model) {
				continue
			}
			if !r.includeObsolete && obsolete[owners[record.ChunkId]] {
				continue
			}
			if graph == nil {
				graph, err = index.New(len(record.Vector))
				if err != nil {
					return err
				}
			}
			if err := graph.Insert(record.ChunkId, record.Vector); err != nil {
				skipped++
				continue
			}
			loaded++
		}
		r.graph = graph
		return nil
	}, false)
	if err != nil {
		return fmt.Errorf("%w: rebuild similarity graph: %w", core.ErrStorage, err)
	}

	if loaded > 0 || skipped > 0 {
		r.logger.Info("similarity graph rebuilt",
			"vectors", loaded,
			"skipped", skipped,
			"duration", time.Since(start))
	}
	return nil
}

// Upsert stores a document's chunks and embeddings in one transaction.
func (r *ChunkRepository) Upsert(ctx context.Context, doc *core.Document, chunks []*core.Chunk, embeddings []*core.EmbeddingRecord) (*storage.UpsertSummary, error) {
	// Version is assigned below, so only the identity fields are checked here.
	if doc == nil || doc.Name == "" || doc.ContentHash == 0 {
		return nil, fmt.Errorf("%w: document needs a name and content hash", core.ErrValidation)
	}
	// Use a content-based ID if not set, so identical re-ingests converge.
	if doc.Id == 0 {
		doc.Id = core.IDFromContent(fmt.Sprintf("%s\x1f%x", doc.Name, uint64(doc.ContentHash)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byChunk := make(map[core.ID]*core.EmbeddingRecord, len(embeddings))
	for _, e := range embeddings {
		byChunk[e.ChunkId] = e
	}

	summary := &storage.UpsertSummary{}
	var inserted []*core.EmbeddingRecord
	var obsoletedChunks []core.ID

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prior, err := readDocumentByName(tx, doc.Name)
		if err != nil && err != storage.ErrNotFound {
			return err
		}

		now := time.Now().UTC()
		switch {
		case prior == nil:
			doc.Version = 1
			doc.Obsolete = false
			doc.InsertedAt = now
			doc.UpdatedAt = now
			if err := writeDocument(tx, doc, true); err != nil {
				return err
			}
		case prior.ContentHash == doc.ContentHash:
			// Identical content: the stored document stands unchanged and
			// every chunk below lands in the dedup index.
			*doc = *prior
		default:
			prior.Obsolete = true
			prior.UpdatedAt = now
			if err := writeDocument(tx, prior, false); err != nil {
				return err
			}
			obsoletedChunks, err = documentChunkIDs(tx, prior.Id)
			if err != nil {
				return err
			}
			doc.Version = prior.Version + 1
			doc.Obsolete = false
			doc.InsertedAt = now
			doc.UpdatedAt = now
			if err := writeDocument(tx, doc, true); err != nil {
				return err
			}
		}
		summary.DocumentId = doc.Id

		for _, chunk := range chunks {
			embedding := byChunk[chunk.Id]
			if err := validateTriple(chunk, embedding); err != nil {
				r.logger.Warn("chunk rejected", "chunk", chunk.Id, "error", err)
				summary.Failures++
				continue
			}

			dedupKey := makeDedupKey(embedding.Model, embedding.ChunkSize, embedding.Overlap, chunk.ContentHash)
			if _, err := tx.Get(dedupKey); err == nil {
				summary.Skipped++
				continue
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(makeChunkDocKey(chunk.DocumentId, chunk.Id), nil); err != nil {
				return err
			}
			if err := tx.Set(makeEmbeddingKey(chunk.Id, embedding.Model), storage.MarshalEmbedding(embedding)); err != nil {
				return err
			}
			if err := tx.Set(dedupKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
			summary.Created++
			inserted = append(inserted, embedding)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert document %q: %w", core.ErrStorage, doc.Name, err)
	}

	if !r.includeObsolete {
		for _, id := range obsoletedChunks {
			if r.graph != nil {
				r.graph.Delete(id)
			}
		}
	}
	for _, e := range inserted {
		if r.model != "" && e.Model != r.model {
			continue
		}
		if r.graph == nil {
			graph, err := index.New(len(e.Vector))
			if err != nil {
				return nil, err
			}
			r.graph = graph
		}
		if err := r.graph.Insert(e.ChunkId, e.Vector); err != nil {
			r.logger.Warn("vector not indexed", "chunk", e.ChunkId, "error", err)
		}
	}
	return summary, nil
}

// Query finds the topK most similar chunks by cosine similarity.
func (r *ChunkRepository) Query(ctx context.Context, vector []float32, topK int) ([]core.SimilarityMatch, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.graph == nil {
		return []core.SimilarityMatch{}, nil
	}
	return r.graph.Search(vector, topK, 0), nil
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readChunk(tx, makeChunkKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunks retrieves multiple chunks by their IDs.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetEmbedding retrieves the embedding stored for a chunk under a model.
func (r *ChunkRepository) GetEmbedding(ctx context.Context, chunkID core.ID, model string) (*core.EmbeddingRecord, error) {
	var result *core.EmbeddingRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(chunkID, model))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return fmt.Errorf("%w: %w", core.ErrStorage, err)
		}
		return item.Value(func(val []byte) error {
			var err error
			result, err = storage.UnmarshalEmbedding(val)
			return err
		})
	}, false)
	return result, err
}

// GetAllChunks retrieves up to limit chunks; limit <= 0 means all.
func (r *ChunkRepository) GetAllChunks(ctx context.Context, limit int) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var obsolete map[core.ID]bool
		if !r.includeObsolete {
			var err error
			obsolete, err = obsoleteDocumentSet(tx)
			if err != nil {
				return err
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk == nil || obsolete[chunk.DocumentId] {
				continue
			}
			results = append(results, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %w", core.ErrStorage, err)
	}
	return results, nil
}

// GetChunkCount returns the number of stored chunks, obsolete included.
func (r *ChunkRepository) GetChunkCount(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, fmt.Errorf("%w: count chunks: %w", core.ErrStorage, err)
	}
	return count, nil
}

// DeleteByDocument removes every version of the named document.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, name string) error {
	var removedChunks []core.ID

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		docs, err := documentsByName(tx, name)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return storage.ErrNotFound
		}

		for _, doc := range docs {
			chunkIDs, err := deleteDocumentData(tx, doc)
			if err != nil {
				return err
			}
			removedChunks = append(removedChunks, chunkIDs...)
		}
		if err := tx.Delete(makeDocumentNameKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		if err == storage.ErrNotFound {
			return err
		}
		return fmt.Errorf("%w: delete document %q: %w", core.ErrStorage, name, err)
	}

	if r.graph != nil {
		for _, id := range removedChunks {
			r.graph.Delete(id)
		}
	}
	return nil
}

// Compact removes obsolete documents and their data.
func (r *ChunkRepository) Compact(ctx context.Context) (*storage.CompactSummary, error) {
	summary := &storage.CompactSummary{}
	var removedChunks []core.ID

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var targets []*core.Document
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			if doc != nil && doc.Obsolete {
				targets = append(targets, doc)
			}
		}
		iter.Close()

		for _, doc := range targets {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunkIDs, err := deleteDocumentData(tx, doc)
			if err != nil {
				return err
			}
			removedChunks = append(removedChunks, chunkIDs...)
			summary.Documents++
			summary.Chunks += len(chunkIDs)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, fmt.Errorf("%w: compact: %w", core.ErrStorage, err)
	}

	if r.includeObsolete && r.graph != nil {
		for _, id := range removedChunks {
			r.graph.Delete(id)
		}
	}
	r.logger.Info("compaction finished", "documents", summary.Documents, "chunks", summary.Chunks)
	return summary, nil
}

// Helper methods

// validateTriple checks a chunk and its embedding before storage.
func validateTriple(chunk *core.Chunk, embedding *core.EmbeddingRecord) error {
	if err := core.ValidateChunk(chunk); err != nil {
		return err
	}
	if embedding == nil {
		return fmt.Errorf("%w: chunk %d has no embedding", core.ErrValidation, chunk.Id)
	}
	return core.ValidateEmbedding(embedding)
}

// writeDocument stores a document record, optionally pointing the name
// index at it.
func writeDocument(tx *badger.Txn, doc *core.Document, current bool) error {
	if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
		return err
	}
	if current {
		return tx.Set(makeDocumentNameKey(doc.Name), storage.MarshalID(doc.Id))
	}
	return nil
}

// readChunk reads a chunk from the transaction.
// Returns nil without error when the key is absent.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}

// documentChunkIDs lists the chunk IDs owned by a document.
func documentChunkIDs(tx *badger.Txn, documentID core.ID) ([]core.ID, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialChunkDocKey(documentID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []core.ID
	for iter.Rewind(); iter.Valid(); iter.Next() {
		ids = append(ids, chunkIDFromDocKey(iter.Item().Key()))
	}
	return ids, nil
}

// documentsByName lists every stored version carrying the given name.
func documentsByName(tx *badger.Txn, name string) ([]*core.Document, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(documentPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var docs []*core.Document
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var doc *core.Document
		err := iter.Item().Value(func(val []byte) error {
			var err error
			doc, err = storage.UnmarshalDocument(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if doc != nil && doc.Name == name {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// deleteDocumentData removes a document record together with its chunks,
// embeddings, and dedup entries. Returns the removed chunk IDs.
func deleteDocumentData(tx *badger.Txn, doc *core.Document) ([]core.ID, error) {
	chunkIDs, err := documentChunkIDs(tx, doc.Id)
	if err != nil {
		return nil, err
	}

	for _, id := range chunkIDs {
		chunk, err := readChunk(tx, makeChunkKey(id))
		if err != nil {
			return nil, err
		}

		// Embeddings carry the dedup triple, so collect them before
		// anything is deleted.
		var records []*core.EmbeddingRecord
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialEmbeddingKey(id)
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.EmbeddingRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				iter.Close()
				return nil, err
			}
			if record != nil {
				records = append(records, record)
			}
		}
		iter.Close()

		for _, record := range records {
			if chunk != nil {
				dedupKey := makeDedupKey(record.Model, record.ChunkSize, record.Overlap, chunk.ContentHash)
				if err := tx.Delete(dedupKey); err != nil {
					return nil, err
				}
			}
			if err := tx.Delete(makeEmbeddingKey(id, record.Model)); err != nil {
				return nil, err
			}
		}
		if err := tx.Delete(makeChunkKey(id)); err != nil {
			return nil, err
		}
		if err := tx.Delete(makeChunkDocKey(doc.Id, id)); err != nil {
			return nil, err
		}
	}

	if err := tx.Delete(makeDocumentKey(doc.Id)); err != nil {
		return nil, err
	}
	return chunkIDs, nil
}

// obsoleteDocumentSet collects the IDs of obsolete document versions.
func obsoleteDocumentSet(tx *badger.Txn) (map[core.ID]bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(documentPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	set := make(map[core.ID]bool)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var doc *core.Document
		err := iter.Item().Value(func(val []byte) error {
			var err error
			doc, err = storage.UnmarshalDocument(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if doc != nil && doc.Obsolete {
			set[doc.Id] = true
		}
	}
	return set, nil
}

// chunkOwners maps each stored chunk to its owning document.
func chunkOwners(tx *badger.Txn) (map[core.ID]core.ID, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(chunkPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	owners := make(map[core.ID]core.ID)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var chunk *core.Chunk
		err := iter.Item().Value(func(val []byte) error {
			var err error
			chunk, err = storage.UnmarshalChunk(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			owners[chunk.Id] = chunk.DocumentId
		}
	}
	return owners, nil
}
