package mapper

import "sync"

// cacheEntry is a one-shot, multi-waiter future for a single logical key.
// The installer resolves it exactly once; everyone else waits on ready.
type cacheEntry[T any] struct {
	ready  chan struct{}
	entity *T
	err    error
}

func pendingEntry[T any]() *cacheEntry[T] {
	return &cacheEntry[T]{ready: make(chan struct{})}
}

func resolvedEntry[T any](entity *T) *cacheEntry[T] {
	e := pendingEntry[T]()
	e.entity = entity
	close(e.ready)
	return e
}

// resolve completes the entry. Must be called at most once, by the caller
// that installed the entry.
func (e *cacheEntry[T]) resolve(entity *T, err error) {
	e.entity = entity
	e.err = err
	close(e.ready)
}

// wait blocks until the entry is resolved.
func (e *cacheEntry[T]) wait() (*T, error) {
	<-e.ready
	return e.entity, e.err
}

// readCache memoizes point reads by logical key. Entries are never evicted
// individually; only clear empties the cache. The mutex guards only the
// check-then-insert step, so the first caller for a key installs the
// pending entry and concurrent callers converge on it (single-flight).
type readCache[T any] struct {
	mu      sync.Mutex
	entries map[Key]*cacheEntry[T]
}

func newReadCache[T any]() *readCache[T] {
	return &readCache[T]{entries: make(map[Key]*cacheEntry[T])}
}

// acquire returns the entry for key, installing a pending one if absent.
// The boolean reports whether the caller installed the entry and therefore
// owns performing the fetch and resolving it.
func (c *readCache[T]) acquire(key Key) (*cacheEntry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e, false
	}
	e := pendingEntry[T]()
	c.entries[key] = e
	return e, true
}

// offer installs entity under key unless an entry already exists. It
// returns the entry now associated with key, whether the offer was
// installed, and whether the existing entry was already resolved at offer
// time (the precondition for a key-in-use collision).
func (c *readCache[T]) offer(key Key, entity *T) (e *cacheEntry[T], installed, wasResolved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		select {
		case <-existing.ready:
			return existing, false, true
		default:
			return existing, false, false
		}
	}

	e = resolvedEntry(entity)
	c.entries[key] = e
	return e, true, false
}

// clear drops all cache state.
func (c *readCache[T]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*cacheEntry[T])
}
