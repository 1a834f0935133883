package mapper

import (
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// action classifies what a flush will do with a tracked entity.
type action int

const (
	actionCreate action = iota
	actionUpdate
	actionDelete
)

func (a action) String() string {
	switch a {
	case actionCreate:
		return "create"
	case actionUpdate:
		return "update"
	case actionDelete:
		return "delete"
	}
	return "unknown"
}

// trackedEntry records the pending action for one entity. The snapshot is
// the entity's serialized form at first observation and exists only for
// update candidates; it is the change-detection baseline at flush time.
type trackedEntry[T any] struct {
	entity   *T
	act      action
	snapshot map[string]types.AttributeValue
}

// tracker is the unit-of-work table. It is keyed by entity pointer, which
// is the stable identity of the in-memory object: the same entity is
// tracked at most once no matter how many reads surface it.
type tracker[T any] struct {
	mu      sync.Mutex
	entries map[*T]*trackedEntry[T]
}

func newTracker[T any]() *tracker[T] {
	return &tracker[T]{entries: make(map[*T]*trackedEntry[T])}
}

// tracked reports whether entity is already in the table.
func (t *tracker[T]) tracked(entity *T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[entity]
	return ok
}

// trackUpdate registers entity as an update candidate with snapshot as its
// baseline. No-op when the entity is already tracked, preserving the
// original snapshot.
func (t *tracker[T]) trackUpdate(entity *T, snapshot map[string]types.AttributeValue) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[entity]; ok {
		return
	}
	t.entries[entity] = &trackedEntry[T]{entity: entity, act: actionUpdate, snapshot: snapshot}
}

// trackCreate registers entity as a create candidate. Creates carry no
// snapshot: they are always persisted on flush. No-op when already tracked.
func (t *tracker[T]) trackCreate(entity *T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[entity]; ok {
		return
	}
	t.entries[entity] = &trackedEntry[T]{entity: entity, act: actionCreate}
}

// trackDelete marks entity for deletion. A pending create is dropped from
// tracking entirely, since the entity never existed in the store. Any
// other entity, tracked or not, becomes a delete.
func (t *tracker[T]) trackDelete(entity *T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[entity]; ok {
		if e.act == actionCreate {
			delete(t.entries, entity)
			return
		}
		e.act = actionDelete
		return
	}
	t.entries[entity] = &trackedEntry[T]{entity: entity, act: actionDelete}
}

// snapshot returns the current tracked set for a flush pass.
func (t *tracker[T]) snapshot() []*trackedEntry[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*trackedEntry[T], 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// reset clears the tracked table wholesale.
func (t *tracker[T]) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[*T]*trackedEntry[T])
}

// size returns the number of tracked entities.
func (t *tracker[T]) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
