package mapper

import (
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/store"
)

// KeyValue is a single key attribute value. DynamoDB key attributes are
// always strings, numbers or binary, so a KeyValue is comparable and two
// KeyValues are equal exactly when the underlying attribute values are.
// The zero KeyValue represents an absent range component.
type KeyValue struct {
	kind  byte // 'S', 'N' or 'B'; 0 means absent
	value string
}

// StringValue returns a string key value.
func StringValue(s string) KeyValue {
	return KeyValue{kind: 'S', value: s}
}

// NumberValue returns a number key value from its decimal representation.
func NumberValue(n string) KeyValue {
	return KeyValue{kind: 'N', value: n}
}

// BinaryValue returns a binary key value.
func BinaryValue(b []byte) KeyValue {
	return KeyValue{kind: 'B', value: base64.StdEncoding.EncodeToString(b)}
}

// IsZero reports whether the value is absent.
func (v KeyValue) IsZero() bool {
	return v.kind == 0
}

func (v KeyValue) String() string {
	if v.kind == 0 {
		return ""
	}
	return v.value
}

// attributeValue renders the value in the store's native representation.
func (v KeyValue) attributeValue() types.AttributeValue {
	switch v.kind {
	case 'S':
		return &types.AttributeValueMemberS{Value: v.value}
	case 'N':
		return &types.AttributeValueMemberN{Value: v.value}
	case 'B':
		raw, _ := base64.StdEncoding.DecodeString(v.value)
		return &types.AttributeValueMemberB{Value: raw}
	}
	return nil
}

// keyValueFrom converts a raw attribute value into a KeyValue.
func keyValueFrom(av types.AttributeValue) (KeyValue, error) {
	switch tv := av.(type) {
	case *types.AttributeValueMemberS:
		return StringValue(tv.Value), nil
	case *types.AttributeValueMemberN:
		return NumberValue(tv.Value), nil
	case *types.AttributeValueMemberB:
		return BinaryValue(tv.Value), nil
	}
	return KeyValue{}, ErrUnsupportedKeyType
}

// Key is the logical address of an item: a hash component plus an optional
// range component. Keys are comparable; two keys are equal exactly when
// their components compare equal by value, which is what cache bucketing
// and batch-read deduplication rely on.
type Key struct {
	Hash  KeyValue
	Range KeyValue
}

// HashKey builds a key with only a hash component.
func HashKey(hash KeyValue) Key {
	return Key{Hash: hash}
}

// HashRangeKey builds a key with hash and range components.
func HashRangeKey(hash, rng KeyValue) Key {
	return Key{Hash: hash, Range: rng}
}

// attributeValues renders the key as the store's addressing map, with
// attributes named per the schema.
func (k Key) attributeValues(schema KeySchema) store.Item {
	m := store.Item{schema.Hash: k.Hash.attributeValue()}
	if schema.Range != "" && !k.Range.IsZero() {
		m[schema.Range] = k.Range.attributeValue()
	}
	return m
}

// deriveKey computes the logical key of a marshaled item under the schema.
// Every attribute the schema names must be present on the item; secondary
// index projections always include the table key attributes, so derivation
// works on projected items too.
func deriveKey(schema KeySchema, item store.Item) (Key, error) {
	if schema.Hash == "" {
		return Key{}, ErrMissingHashKey
	}

	hv, ok := item[schema.Hash]
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrMissingKeyAttribute, schema.Hash)
	}
	hash, err := keyValueFrom(hv)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %s", err, schema.Hash)
	}

	key := Key{Hash: hash}
	if schema.Range != "" {
		rv, ok := item[schema.Range]
		if !ok {
			return Key{}, fmt.Errorf("%w: %s", ErrMissingKeyAttribute, schema.Range)
		}
		rng, err := keyValueFrom(rv)
		if err != nil {
			return Key{}, fmt.Errorf("%w: %s", err, schema.Range)
		}
		key.Range = rng
	}

	return key, nil
}
