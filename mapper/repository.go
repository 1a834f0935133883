package mapper

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/internal/attr"
	"github.com/jacentio/arbor/store"
)

// MarshalFunc converts an entity to its attribute representation.
type MarshalFunc[T any] func(*T) (map[string]types.AttributeValue, error)

// UnmarshalFunc converts a raw item back into an entity.
type UnmarshalFunc[T any] func(map[string]types.AttributeValue) (*T, error)

func defaultMarshal[T any](entity *T) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(entity)
}

func defaultUnmarshal[T any](item map[string]types.AttributeValue) (*T, error) {
	entity := new(T)
	if err := attributevalue.UnmarshalMap(item, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Repository provides identity-preserving cached reads and unit-of-work
// writes for entity type T over a single table. A Repository exclusively
// owns its cache and tracked table; instances must not be shared across
// repositories pointed at the same table region.
type Repository[T any] struct {
	store     *store.Store
	config    Config
	marshal   MarshalFunc[T]
	unmarshal UnmarshalFunc[T]
	hooks     *Hooks[T]
	cache     *readCache[T]
	tracker   *tracker[T]
}

// New constructs a Repository for type T over the given table config,
// using the default attributevalue codec.
func New[T any](client store.DynamoAPI, cfg Config) (*Repository[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Repository[T]{
		store:     store.New(client),
		config:    cfg,
		marshal:   defaultMarshal[T],
		unmarshal: defaultUnmarshal[T],
		cache:     newReadCache[T](),
		tracker:   newTracker[T](),
	}, nil
}

// SetCodec overrides the default attributevalue codec. Snapshot comparison
// is only as precise as the marshal function's fidelity.
func (r *Repository[T]) SetCodec(m MarshalFunc[T], u UnmarshalFunc[T]) {
	r.marshal = m
	r.unmarshal = u
}

// SetHooks sets the notification observer.
func (r *Repository[T]) SetHooks(h *Hooks[T]) {
	r.hooks = h
}

// KeyOf derives the logical key for an entity.
func (r *Repository[T]) KeyOf(entity *T) (Key, error) {
	item, err := r.marshal(entity)
	if err != nil {
		return Key{}, err
	}
	return deriveKey(r.config.Schema, item)
}

// Get returns the entity for key, or nil when it does not exist. The first
// caller for an uncached key performs the store read; concurrent and
// subsequent callers for the same key converge on that one fetch and on
// the same entity instance.
func (r *Repository[T]) Get(ctx context.Context, key Key) (*T, error) {
	entry, installed := r.cache.acquire(key)
	if installed {
		entry.resolve(r.fetch(ctx, key))
	}

	entity, err := entry.wait()
	if err != nil {
		return nil, err
	}
	if entity != nil {
		if err := r.observe(entity); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

// fetch performs the point read behind a cache miss.
func (r *Repository[T]) fetch(ctx context.Context, key Key) (*T, error) {
	item, err := r.store.Get(ctx, r.config.TableName, key.attributeValues(r.config.Schema))
	if err != nil || item == nil {
		return nil, err
	}
	return r.unmarshal(item)
}

// GetBatch returns the entities for the given keys. Requested keys are
// deduplicated by value; keys already cached or in flight are served from
// the cache and the remainder is fetched in one batched read. Every
// distinct requested key is present in the result map, with nil marking a
// key that has no item.
func (r *Repository[T]) GetBatch(ctx context.Context, keys []Key) (map[Key]*T, error) {
	distinct := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		distinct = append(distinct, k)
	}

	entries := make(map[Key]*cacheEntry[T], len(distinct))
	var owned []Key
	for _, k := range distinct {
		e, installed := r.cache.acquire(k)
		entries[k] = e
		if installed {
			owned = append(owned, k)
		}
	}

	if len(owned) > 0 {
		if err := r.fetchBatch(ctx, owned, entries); err != nil {
			return nil, err
		}
	}

	results := make(map[Key]*T, len(distinct))
	for _, k := range distinct {
		entity, err := entries[k].wait()
		if err != nil {
			return nil, err
		}
		if entity != nil {
			if err := r.observe(entity); err != nil {
				return nil, err
			}
		}
		results[k] = entity
	}
	return results, nil
}

// fetchBatch resolves the entries for the keys this caller installed,
// issuing one batched read. Keys the store omits resolve to nil.
func (r *Repository[T]) fetchBatch(ctx context.Context, owned []Key, entries map[Key]*cacheEntry[T]) error {
	keyMaps := make([]store.Item, len(owned))
	for i, k := range owned {
		keyMaps[i] = k.attributeValues(r.config.Schema)
	}

	items, err := r.store.BatchGet(ctx, r.config.TableName, keyMaps)
	if err == nil {
		found := make(map[Key]*T, len(items))
		for _, item := range items {
			var k Key
			k, err = deriveKey(r.config.Schema, item)
			if err != nil {
				break
			}
			var entity *T
			entity, err = r.unmarshal(item)
			if err != nil {
				break
			}
			found[k] = entity
		}
		if err == nil {
			for _, k := range owned {
				entries[k].resolve(found[k], nil)
			}
			return nil
		}
	}

	for _, k := range owned {
		entries[k].resolve(nil, err)
	}
	return err
}

// Search returns an iterator over a query or scan of the table, selected
// by whether input carries a key-condition expression. Every pulled entity
// is reconciled against the cache under its derived key, so repeated reads
// of the same logical item converge to one instance.
func (r *Repository[T]) Search(input SearchInput) *Iterator[T] {
	return &Iterator[T]{repo: r, input: input, cursor: input.ExclusiveStartKey}
}

// Count drives the same page-fetch loop as Search, summing result-set
// counts across all pages without materializing items.
func (r *Repository[T]) Count(ctx context.Context, input SearchInput) (int32, error) {
	var total int32
	cursor := input.ExclusiveStartKey
	for {
		page, err := r.searchPage(ctx, input, cursor, true)
		if err != nil {
			return 0, err
		}
		total += page.Count
		if page.LastEvaluatedKey == nil {
			return total, nil
		}
		cursor = page.LastEvaluatedKey
	}
}

// searchPage fetches one page, dispatching on query vs scan semantics.
func (r *Repository[T]) searchPage(ctx context.Context, input SearchInput, cursor store.Item, countOnly bool) (*store.Page, error) {
	if input.KeyConditionExpression != "" {
		return r.store.QueryPage(ctx, store.QueryInput{
			TableName:                 r.config.TableName,
			IndexName:                 input.IndexName,
			KeyConditionExpression:    input.KeyConditionExpression,
			FilterExpression:          input.FilterExpression,
			ExpressionAttributeNames:  input.ExpressionAttributeNames,
			ExpressionAttributeValues: input.ExpressionAttributeValues,
			Limit:                     input.Limit,
			ScanIndexForward:          input.ScanIndexForward,
			ExclusiveStartKey:         cursor,
			CountOnly:                 countOnly,
		})
	}
	return r.store.ScanPage(ctx, store.ScanInput{
		TableName:                 r.config.TableName,
		IndexName:                 input.IndexName,
		FilterExpression:          input.FilterExpression,
		ExpressionAttributeNames:  input.ExpressionAttributeNames,
		ExpressionAttributeValues: input.ExpressionAttributeValues,
		Limit:                     input.Limit,
		ExclusiveStartKey:         cursor,
		CountOnly:                 countOnly,
	})
}

// reconcile turns one raw result item into the entity handed to the
// caller. Items read through a partially projected index are re-fetched in
// full by key first. If the item's key is already resolved in the cache,
// the cached instance wins.
func (r *Repository[T]) reconcile(ctx context.Context, raw store.Item, indexName string) (*T, error) {
	if indexName != "" && r.config.Indexes[indexName] != ProjectionAll {
		key, err := deriveKey(r.config.Schema, raw)
		if err != nil {
			return nil, err
		}
		full, err := r.store.Get(ctx, r.config.TableName, key.attributeValues(r.config.Schema))
		if err != nil {
			return nil, err
		}
		if full != nil {
			raw = full
		}
	}

	entity, err := r.unmarshal(raw)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(r.config.Schema, raw)
	if err != nil {
		return nil, err
	}

	entry, installed, wasResolved := r.cache.offer(key, entity)
	if !installed {
		cached, err := entry.wait()
		if err != nil {
			return nil, err
		}
		if wasResolved && cached != entity {
			r.hooks.cacheKeyInUse(key, cached, entity)
		}
		// A cached miss keeps the cache untouched but the pulled
		// entity is still handed to the caller.
		if cached != nil {
			entity = cached
		}
	}

	if err := r.observe(entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// observe begins tracking an entity surfaced by a read path as an update
// candidate, capturing its serialized snapshot. Re-observing an already
// tracked entity is a no-op.
func (r *Repository[T]) observe(entity *T) error {
	if r.tracker.tracked(entity) {
		return nil
	}
	snapshot, err := r.marshal(entity)
	if err != nil {
		return err
	}
	r.tracker.trackUpdate(entity, snapshot)
	return nil
}

// Create seeds the cache with a new entity and tracks it for creation.
// Creates are always persisted on flush, mutated or not. Idempotent for
// already-tracked entities.
func (r *Repository[T]) Create(entity *T) error {
	item, err := r.marshal(entity)
	if err != nil {
		return err
	}
	key, err := deriveKey(r.config.Schema, item)
	if err != nil {
		return err
	}
	r.addByKey(key, entity)
	r.tracker.trackCreate(entity)
	return nil
}

// Delete marks an entity for deletion on the next flush. A pending create
// is dropped from tracking entirely and never persisted; any other entity,
// previously tracked or not, is marked for deletion.
func (r *Repository[T]) Delete(entity *T) {
	r.tracker.trackDelete(entity)
}

// AddToCache seeds the cache with an entity under its derived key, without
// a store round-trip.
func (r *Repository[T]) AddToCache(entity *T) error {
	key, err := r.KeyOf(entity)
	if err != nil {
		return err
	}
	r.AddToCacheByKey(key, entity)
	return nil
}

// AddToCacheByKey seeds the cache with an entity under an explicit key. If
// the key already holds a resolved different value the cache keeps the
// original and the CacheKeyInUse hook fires; the offer is never an error.
func (r *Repository[T]) AddToCacheByKey(key Key, entity *T) {
	r.addByKey(key, entity)
}

func (r *Repository[T]) addByKey(key Key, entity *T) {
	entry, installed, wasResolved := r.cache.offer(key, entity)
	if installed || !wasResolved {
		return
	}
	cached, err := entry.wait()
	if err == nil && cached != entity {
		r.hooks.cacheKeyInUse(key, cached, entity)
	}
}

// ClearCache drops all cache state. Tracked entities are unaffected.
func (r *Repository[T]) ClearCache() {
	r.cache.clear()
}

// ResetTracking clears the tracked table wholesale. Flush does not do this
// implicitly; callers needing a fresh unit of work reset explicitly.
func (r *Repository[T]) ResetTracking() {
	r.tracker.reset()
}

// TrackedCount returns the number of entities in the unit of work.
func (r *Repository[T]) TrackedCount() int {
	return r.tracker.size()
}

// Flush reconciles every tracked entity against the store: creates are
// always put, updates are put only when the entity's current serialized
// form differs from its read-time snapshot, deletes are issued by derived
// key. All operations run concurrently and Flush waits for every one to
// settle; if any fail it returns a FlushError wrapping the first failure.
// The tracked table survives the flush, so an updated entity keeps its
// original snapshot for the next cycle.
func (r *Repository[T]) Flush(ctx context.Context) error {
	entries := r.tracker.snapshot()

	errs := make(chan error, len(entries))
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *trackedEntry[T]) {
			defer wg.Done()
			if err := r.flushOne(ctx, e); err != nil {
				errs <- err
			}
		}(e)
	}
	wg.Wait()
	close(errs)

	var first error
	failures := 0
	for err := range errs {
		if first == nil {
			first = err
		}
		failures++
	}
	if first != nil {
		ferr := &FlushError{Failures: failures, Err: first}
		r.hooks.flushFailed(ferr)
		return ferr
	}

	r.hooks.flushed()
	return nil
}

// flushOne dispatches a single tracked entry per its action.
func (r *Repository[T]) flushOne(ctx context.Context, e *trackedEntry[T]) error {
	switch e.act {
	case actionCreate:
		item, err := r.marshal(e.entity)
		if err == nil {
			err = r.store.Put(ctx, r.config.TableName, item)
		}
		if err != nil {
			r.hooks.createFailed(err, e.entity)
			return err
		}

	case actionUpdate:
		item, err := r.marshal(e.entity)
		if err != nil {
			r.hooks.updateFailed(err, e.entity)
			return err
		}
		if attr.MapEqual(item, e.snapshot) {
			return nil
		}
		if err := r.store.Put(ctx, r.config.TableName, item); err != nil {
			r.hooks.updateFailed(err, e.entity)
			return err
		}

	case actionDelete:
		item, err := r.marshal(e.entity)
		var key Key
		if err == nil {
			key, err = deriveKey(r.config.Schema, item)
		}
		if err == nil {
			err = r.store.Delete(ctx, r.config.TableName, key.attributeValues(r.config.Schema))
		}
		if err != nil {
			r.hooks.deleteFailed(err, e.entity)
			return err
		}
	}
	return nil
}
