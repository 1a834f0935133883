package mapper

// Hooks receives repository notifications. All fields are optional; a nil
// Hooks or a nil field disables that notification. Hooks are invoked
// synchronously from repository operations and must not call back into the
// repository.
type Hooks[T any] struct {
	// CacheKeyInUse is called when a key that already holds a resolved
	// cached value is offered a different value. The cache keeps the
	// original; cached may be nil when the cached result was a miss.
	CacheKeyInUse func(key Key, cached, offered *T)

	// Flushed is called after a flush in which every dispatched
	// operation succeeded.
	Flushed func()

	// FlushFailed is called after a flush in which at least one
	// operation failed, once all operations have settled.
	FlushFailed func(err error)

	// CreateFailed is called when persisting a tracked create fails.
	CreateFailed func(err error, entity *T)

	// UpdateFailed is called when persisting a tracked update fails.
	UpdateFailed func(err error, entity *T)

	// DeleteFailed is called when a tracked delete fails.
	DeleteFailed func(err error, entity *T)
}

func (h *Hooks[T]) cacheKeyInUse(key Key, cached, offered *T) {
	if h != nil && h.CacheKeyInUse != nil {
		h.CacheKeyInUse(key, cached, offered)
	}
}

func (h *Hooks[T]) flushed() {
	if h != nil && h.Flushed != nil {
		h.Flushed()
	}
}

func (h *Hooks[T]) flushFailed(err error) {
	if h != nil && h.FlushFailed != nil {
		h.FlushFailed(err)
	}
}

func (h *Hooks[T]) createFailed(err error, entity *T) {
	if h != nil && h.CreateFailed != nil {
		h.CreateFailed(err, entity)
	}
}

func (h *Hooks[T]) updateFailed(err error, entity *T) {
	if h != nil && h.UpdateFailed != nil {
		h.UpdateFailed(err, entity)
	}
}

func (h *Hooks[T]) deleteFailed(err error, entity *T) {
	if h != nil && h.DeleteFailed != nil {
		h.DeleteFailed(err, entity)
	}
}
