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

import "errors"

// Error taxonomy shared by every package. Callers match with errors.Is;
// packages wrap these with %w, naming the offending field or entity.
var (
	// ErrConfig indicates invalid or contradictory configuration,
	// e.g. overlap >= chunk size, or an explicitly requested but
	// unavailable optional model.
	ErrConfig = errors.New("invalid configuration")

	// ErrModelLoad indicates an embedding or reranker model is
	// unreachable or incompatible. There is no built-in retry.
	ErrModelLoad = errors.New("model load failed")

	// ErrStorage indicates an index persistence I/O failure.
	ErrStorage = errors.New("storage failure")

	// ErrValidation indicates a malformed benchmark item or query.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an operation referenced an unknown
	// document or chunk.
	ErrNotFound = errors.New("not found")
)
