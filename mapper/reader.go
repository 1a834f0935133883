package mapper

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/store"
)

// SearchInput configures a Search or Count traversal. The presence of a
// KeyConditionExpression selects query semantics; its absence selects scan
// semantics.
type SearchInput struct {
	// IndexName is the optional secondary index to read through.
	IndexName string

	// Limit caps the item count per fetched page (0 = service default).
	Limit int32

	// ScanIndexForward sets traversal direction for queries
	// (nil or true = ascending, false = descending).
	ScanIndexForward *bool

	// ExclusiveStartKey resumes a prior traversal from its cursor.
	ExclusiveStartKey store.Item

	// FilterExpression is applied server-side after key matching.
	FilterExpression string

	// KeyConditionExpression selects query semantics when non-empty.
	KeyConditionExpression string

	// ExpressionAttributeNames substitutes attribute name placeholders.
	ExpressionAttributeNames map[string]string

	// ExpressionAttributeValues substitutes value placeholders.
	ExpressionAttributeValues map[string]types.AttributeValue
}

// Iterator is a pull-based traversal over a query or scan result set. Each
// Next call returns the next entity, transparently fetching the following
// page when the current one is exhausted. An Iterator is consumed once and
// is not safe for concurrent use.
type Iterator[T any] struct {
	repo      *Repository[T]
	input     SearchInput
	page      []store.Item
	cursor    store.Item
	exhausted bool
}

// Next returns the next entity in store order, or (nil, nil) once the
// result set is exhausted. Once exhausted, every subsequent call returns
// (nil, nil).
func (it *Iterator[T]) Next(ctx context.Context) (*T, error) {
	for len(it.page) == 0 && !it.exhausted {
		page, err := it.repo.searchPage(ctx, it.input, it.cursor, false)
		if err != nil {
			return nil, err
		}
		it.page = page.Items
		it.cursor = page.LastEvaluatedKey
		if page.LastEvaluatedKey == nil {
			it.exhausted = true
		}
	}

	if len(it.page) == 0 {
		return nil, nil
	}

	raw := it.page[0]
	it.page = it.page[1:]
	return it.repo.reconcile(ctx, raw, it.input.IndexName)
}

// All drains the remaining result set into an ordered slice.
func (it *Iterator[T]) All(ctx context.Context) ([]*T, error) {
	var out []*T
	for {
		entity, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return out, nil
		}
		out = append(out, entity)
	}
}
