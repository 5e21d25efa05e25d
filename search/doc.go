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


// Package search provides hybrid ranked retrieval over captured content.
//
// The Searcher type runs three matchers concurrently and fuses their
// candidate sets into one ranking:
//   - Lexical matching against an in-memory inverted index, with field
//     weighting, phrase and prefix handling, and hostname matching for links
//   - Fuzzy matching for typo tolerance, bounded by normalized edit distance
//   - Embedding similarity via an optional vector index
//
// Matcher failures degrade the result set rather than failing the query: a
// search with the embedding provider down still returns lexical and fuzzy
// results. Results carry snippets with highlighted match spans.
package search
