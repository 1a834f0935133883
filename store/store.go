package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a raw DynamoDB item or key.
type Item = map[string]types.AttributeValue

// DynamoAPI is the subset of DynamoDB client operations the store consumes.
// It mirrors the signatures of the aws-sdk-go-v2 *dynamodb.Client.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// batchGetLimit is the BatchGetItem service limit per request.
const batchGetLimit = 100

// Store provides the primitive table operations the mapper builds on.
type Store struct {
	client DynamoAPI
}

// New creates a Store backed by the given client.
func New(client DynamoAPI) *Store {
	return &Store{client: client}
}

// Get retrieves a single item by key. It returns nil with no error when
// the item does not exist.
func (s *Store) Get(ctx context.Context, table string, key Item) (Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return out.Item, nil
}

// BatchGet retrieves the items for the given keys. Keys with no match are
// omitted from the result, and result order does not correspond to key
// order; callers re-derive correspondence by key. Requests are chunked at
// the service limit and UnprocessedKeys are drained before returning.
func (s *Store) BatchGet(ctx context.Context, table string, keys []Item) ([]Item, error) {
	var items []Item

	for start := 0; start < len(keys); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(keys) {
			end = len(keys)
		}

		pending := keys[start:end]
		for len(pending) > 0 {
			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					table: {Keys: pending},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("batch get: %w", err)
			}

			items = append(items, out.Responses[table]...)

			pending = nil
			if kaa, ok := out.UnprocessedKeys[table]; ok {
				pending = kaa.Keys
			}
		}
	}

	return items, nil
}

// QueryInput defines a single query page request.
type QueryInput struct {
	TableName                 string
	IndexName                 string
	KeyConditionExpression    string
	FilterExpression          string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
	Limit                     int32
	ScanIndexForward          *bool
	ExclusiveStartKey         Item

	// CountOnly requests item counts instead of item payloads.
	CountOnly bool
}

// ScanInput defines a single scan page request.
type ScanInput struct {
	TableName                 string
	IndexName                 string
	FilterExpression          string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
	Limit                     int32
	ExclusiveStartKey         Item

	// CountOnly requests item counts instead of item payloads.
	CountOnly bool
}

// Page is one page of query or scan results.
type Page struct {
	Items []Item
	Count int32

	// LastEvaluatedKey is the continuation cursor for the next page.
	// It is nil when the result set is exhausted.
	LastEvaluatedKey Item
}

// QueryPage fetches one page of query results.
func (s *Store) QueryPage(ctx context.Context, input QueryInput) (*Page, error) {
	qi := &dynamodb.QueryInput{
		TableName:              aws.String(input.TableName),
		KeyConditionExpression: aws.String(input.KeyConditionExpression),
		ScanIndexForward:       input.ScanIndexForward,
	}
	if input.IndexName != "" {
		qi.IndexName = aws.String(input.IndexName)
	}
	if input.FilterExpression != "" {
		qi.FilterExpression = aws.String(input.FilterExpression)
	}
	if len(input.ExpressionAttributeNames) > 0 {
		qi.ExpressionAttributeNames = input.ExpressionAttributeNames
	}
	if len(input.ExpressionAttributeValues) > 0 {
		qi.ExpressionAttributeValues = input.ExpressionAttributeValues
	}
	if input.Limit > 0 {
		qi.Limit = aws.Int32(input.Limit)
	}
	if input.ExclusiveStartKey != nil {
		qi.ExclusiveStartKey = input.ExclusiveStartKey
	}
	if input.CountOnly {
		qi.Select = types.SelectCount
	}

	out, err := s.client.Query(ctx, qi)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return &Page{
		Items:            out.Items,
		Count:            out.Count,
		LastEvaluatedKey: out.LastEvaluatedKey,
	}, nil
}

// ScanPage fetches one page of scan results.
func (s *Store) ScanPage(ctx context.Context, input ScanInput) (*Page, error) {
	si := &dynamodb.ScanInput{
		TableName: aws.String(input.TableName),
	}
	if input.IndexName != "" {
		si.IndexName = aws.String(input.IndexName)
	}
	if input.FilterExpression != "" {
		si.FilterExpression = aws.String(input.FilterExpression)
	}
	if len(input.ExpressionAttributeNames) > 0 {
		si.ExpressionAttributeNames = input.ExpressionAttributeNames
	}
	if len(input.ExpressionAttributeValues) > 0 {
		si.ExpressionAttributeValues = input.ExpressionAttributeValues
	}
	if input.Limit > 0 {
		si.Limit = aws.Int32(input.Limit)
	}
	if input.ExclusiveStartKey != nil {
		si.ExclusiveStartKey = input.ExclusiveStartKey
	}
	if input.CountOnly {
		si.Select = types.SelectCount
	}

	out, err := s.client.Scan(ctx, si)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return &Page{
		Items:            out.Items,
		Count:            out.Count,
		LastEvaluatedKey: out.LastEvaluatedKey,
	}, nil
}

// Put writes the full item, replacing any existing item with the same key.
func (s *Store) Put(ctx context.Context, table string, item Item) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Delete removes the item with the given key. Deleting a missing item is
// not an error.
func (s *Store) Delete(ctx context.Context, table string, key Item) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
