package mapper_test

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/mapper"
	"github.com/jacentio/arbor/store"
)

// account is the primary test entity (hash key only).
type account struct {
	ID      string   `dynamodbav:"id"`
	Owner   string   `dynamodbav:"owner"`
	Balance int      `dynamodbav:"balance"`
	Tags    []string `dynamodbav:"tags,omitempty"`
}

func accountItem(id, owner string, balance int) store.Item {
	return store.Item{
		"id":      &types.AttributeValueMemberS{Value: id},
		"owner":   &types.AttributeValueMemberS{Value: owner},
		"balance": &types.AttributeValueMemberN{Value: strconv.Itoa(balance)},
	}
}

func accountConfig() mapper.Config {
	return mapper.Config{
		TableName: "accounts",
		Schema:    mapper.KeySchema{Hash: "id"},
	}
}

func newAccountRepo(t *testing.T, client store.DynamoAPI, cfg mapper.Config) *mapper.Repository[account] {
	t.Helper()
	repo, err := mapper.New[account](client, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return repo
}

func accountKey(id string) mapper.Key {
	return mapper.HashKey(mapper.StringValue(id))
}

// canon renders an attribute map deterministically so the fake can index
// items and match keys and cursors by value.
func canon(m store.Item) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		switch v := m[name].(type) {
		case *types.AttributeValueMemberS:
			b.WriteString(v.Value)
		case *types.AttributeValueMemberN:
			b.WriteString(v.Value)
		}
		b.WriteByte('|')
	}
	return b.String()
}

// fakeClient is an in-memory DynamoAPI with call accounting. Point reads
// and batch reads serve from items; Query and Scan serve scanItems in
// order, paginated by pageSize.
type fakeClient struct {
	mu sync.Mutex

	items     map[string]store.Item
	scanItems []store.Item
	pageSize  int

	getCalls    int
	batchCalls  int
	queryCalls  int
	scanCalls   int
	putCalls    int
	deleteCalls int

	lastBatchKeys []store.Item
	puts          []store.Item
	deletes       []store.Item
	sawCountOnly  bool

	// getEntered receives one signal per GetItem entry; getGate, when
	// set, holds every GetItem open until closed.
	getEntered chan struct{}
	getGate    chan struct{}

	failPutID string
	putErr    error
	deleteErr error
	queryErr  error
	scanErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]store.Item)}
}

func (f *fakeClient) addItem(item store.Item) {
	f.items[canon(keyOnly(item))] = item
}

// keyOnly projects an item down to its id attribute for fake indexing.
func keyOnly(item store.Item) store.Item {
	key := store.Item{}
	if v, ok := item["id"]; ok {
		key["id"] = v
	}
	if v, ok := item["customer_id"]; ok {
		key["customer_id"] = v
	}
	if v, ok := item["order_id"]; ok {
		key["order_id"] = v
	}
	return key
}

func (f *fakeClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	f.getCalls++
	entered := f.getEntered
	gate := f.getGate
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.GetItemOutput{}
	if item, ok := f.items[canon(params.Key)]; ok {
		out.Item = item
	}
	return out, nil
}

func (f *fakeClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++

	out := &dynamodb.BatchGetItemOutput{
		Responses: map[string][]store.Item{},
	}
	for table, kaa := range params.RequestItems {
		f.lastBatchKeys = kaa.Keys
		for _, key := range kaa.Keys {
			if item, ok := f.items[canon(key)]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func (f *fakeClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if params.Select == types.SelectCount {
		f.sawCountOnly = true
	}

	items, last := f.servePage(params.ExclusiveStartKey)
	return &dynamodb.QueryOutput{
		Items:            items,
		Count:            int32(len(items)),
		LastEvaluatedKey: last,
	}, nil
}

func (f *fakeClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if params.Select == types.SelectCount {
		f.sawCountOnly = true
	}

	items, last := f.servePage(params.ExclusiveStartKey)
	return &dynamodb.ScanOutput{
		Items:            items,
		Count:            int32(len(items)),
		LastEvaluatedKey: last,
	}, nil
}

// servePage returns the slice of scanItems following the cursor, capped at
// pageSize, plus the continuation cursor (nil on the final page).
func (f *fakeClient) servePage(cursor store.Item) ([]store.Item, store.Item) {
	start := 0
	if cursor != nil {
		for i, item := range f.scanItems {
			if canon(item) == canon(cursor) {
				start = i + 1
				break
			}
		}
	}

	end := len(f.scanItems)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	items := f.scanItems[start:end]
	if end < len(f.scanItems) {
		return items, f.scanItems[end-1]
	}
	return items, nil
}

func (f *fakeClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++

	if f.failPutID != "" {
		if v, ok := params.Item["id"].(*types.AttributeValueMemberS); ok && v.Value == f.failPutID {
			return nil, f.putErr
		}
	} else if f.putErr != nil {
		return nil, f.putErr
	}

	f.puts = append(f.puts, params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deletes = append(f.deletes, params.Key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) counts() (get, batch, query, scan, put, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.batchCalls, f.queryCalls, f.scanCalls, f.putCalls, f.deleteCalls
}
