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


// Package chunking splits extracted document text into overlapping,
// stably indexed chunks.
//
// Three strategies are available:
//   - fixed: a sliding window that prefers to break near whitespace or
//     sentence boundaries inside the overlap region
//   - recursive: separator-hierarchy splitting (paragraph, line, sentence)
//   - page: per-page windows carrying page numbers and labels
//
// Chunking is deterministic: identical input and configuration always
// yield identical boundaries, which the dedup invariant depends upon.
package chunking
