// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - ContentHash must be set
//   - Version must be >= 1
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrValidation)
	}
	if doc.Name == "" {
		return fmt.Errorf("%w: document name is empty", ErrValidation)
	}
	if doc.ContentHash == 0 {
		return fmt.Errorf("%w: document %q has no content hash", ErrValidation, doc.Name)
	}
	if doc.Version < 1 {
		return fmt.Errorf("%w: document %q has version %d", ErrValidation, doc.Name, doc.Version)
	}
	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - DocumentId must be set
//   - Index must be >= 0
//   - Offsets must be ordered
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrValidation)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: chunk %d has empty text", ErrValidation, chunk.Index)
	}
	if chunk.DocumentId == 0 {
		return fmt.Errorf("%w: chunk %d has no document", ErrValidation, chunk.Index)
	}
	if chunk.Index < 0 {
		return fmt.Errorf("%w: chunk index %d is negative", ErrValidation, chunk.Index)
	}
	if chunk.EndOffset < chunk.StartOffset {
		return fmt.Errorf("%w: chunk %d offsets [%d,%d) are inverted",
			ErrValidation, chunk.Index, chunk.StartOffset, chunk.EndOffset)
	}
	return nil
}

// ValidateEmbedding validates an EmbeddingRecord according to domain rules.
//
// Validation rules:
//   - ChunkId must be set
//   - Model must not be empty
//   - Vector must not be empty
func ValidateEmbedding(rec *EmbeddingRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: embedding is nil", ErrValidation)
	}
	if rec.ChunkId == 0 {
		return fmt.Errorf("%w: embedding has no chunk", ErrValidation)
	}
	if rec.Model == "" {
		return fmt.Errorf("%w: embedding for chunk %d has no model", ErrValidation, rec.ChunkId)
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("%w: embedding for chunk %d has an empty vector", ErrValidation, rec.ChunkId)
	}
	return nil
}
