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

import (
	"fmt"
	"time"
)

// ValidateContentItem validates a ContentItem according to domain rules.
//
// Validation rules:
//   - Owner must not be empty
//   - Body must not be empty
//   - Kind must be valid
//   - CreatedAt must not be in the future
//
// NOT validated (populated by the pipeline or storage):
//   - Vector and VectorVersion (empty until the embedding job runs)
//   - ID (0 is valid from database sequences)
func ValidateContentItem(item *ContentItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}

	if item.Owner == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrEmptyOwner)
	}

	if item.Body == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrEmptyBody)
	}

	if err := ValidateKind(item.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	if !IsValidTimestamp(item.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateKind validates that a Kind has a valid value.
func ValidateKind(kind Kind) error {
	switch kind {
	case KindNote, KindLink, KindTask, KindReminder, KindFile:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
}

// ValidateQuery validates the structural parts of a Query.
// Text length is checked by the searcher after normalization, because
// normalization can empty a query that looks non-empty here.
func ValidateQuery(query *Query) error {
	if query == nil {
		return fmt.Errorf("%w: query is nil", ErrInvalidQuery)
	}

	if query.Owner == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyOwner)
	}

	if query.Kind != KindAny {
		if err := ValidateKind(query.Kind); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	}

	if query.PageSize < 0 || query.Offset < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrInvalidPage)
	}

	return nil
}

// IsValidTimestamp returns true if the timestamp is zero or not in the future.
// A small clock skew allowance prevents rejecting records from slightly
// ahead-of-time clients.
func IsValidTimestamp(timestamp time.Time) bool {
	if timestamp.IsZero() {
		return true
	}
	return !timestamp.After(time.Now().UTC().Add(time.Minute))
}
