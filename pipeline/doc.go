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


// Package pipeline computes item embeddings off the capture path.
//
// Saving or editing an item enqueues a job tagged with the item's content
// version. Workers embed the item text and commit the vector back to storage
// and the vector index, but only if the item still exists at that exact
// version. Deletes and newer edits make in-flight jobs harmless: their
// results are discarded at commit time. Embedding failures are logged and
// dropped; the item stays searchable through the text matchers until a later
// edit or reindex retries.
package pipeline
