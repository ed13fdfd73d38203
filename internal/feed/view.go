package feed

import "sync"

// View is an ordered local list kept consistent with backend changes.
// Mutation follows last-writer-wins per identifier: inserts prepend unless
// the id is already present, updates replace in place, deletes remove.
type View[T any] struct {
	mu    sync.RWMutex
	items []T
	id    func(T) string
}

// NewView constructs an empty view keyed by the given identifier function.
func NewView[T any](id func(T) string) *View[T] {
	return &View[T]{id: id}
}

// Reset discards the current list and installs a fresh bulk read. It is the
// only merge-free entry point, used on mount and on principal change so a
// re-subscribe can never duplicate entries.
func (v *View[T]) Reset(items []T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = append([]T(nil), items...)
}

// Apply folds one change event into the list and reports whether anything
// changed.
func (v *View[T]) Apply(kind Kind, rec T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := v.id(rec)
	idx := v.indexLocked(key)

	switch kind {
	case KindInsert:
		if idx >= 0 {
			// Replay of a record we already hold; keep exactly one copy.
			v.items[idx] = rec
			return true
		}
		v.items = append([]T{rec}, v.items...)
		return true
	case KindUpdate:
		if idx < 0 {
			// An update for a row we never loaded; the owning adapter
			// refetches on staleness, so dropping it here is safe.
			return false
		}
		v.items[idx] = rec
		return true
	case KindDelete:
		if idx < 0 {
			return false
		}
		v.items = append(v.items[:idx], v.items[idx+1:]...)
		return true
	}
	return false
}

// Get returns the record with the given identifier.
func (v *View[T]) Get(id string) (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var zero T
	if idx := v.indexLocked(id); idx >= 0 {
		return v.items[idx], true
	}
	return zero, false
}

// Items returns a copy of the current list.
func (v *View[T]) Items() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]T(nil), v.items...)
}

// Len returns the current list length.
func (v *View[T]) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}

// Mutate applies fn to every element in place under the lock.
func (v *View[T]) Mutate(fn func(*T)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.items {
		fn(&v.items[i])
	}
}

func (v *View[T]) indexLocked(id string) int {
	for i := range v.items {
		if v.id(v.items[i]) == id {
			return i
		}
	}
	return -1
}
