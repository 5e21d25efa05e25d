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


// Package ai defines the embedding capability consumed by the retrieval
// engine.
//
// The engine never talks to a model directly; it depends on the Embedder and
// EmbeddingProvider interfaces defined here. Package ai/openai provides a
// production implementation for OpenAI-compatible services, and ai/mock
// provides a deterministic test double.
//
// Provider unavailability is reported through ErrUnavailable so callers can
// distinguish "the service is down" from "no result produced" and degrade
// gracefully instead of failing the search.
package ai
