package leave

import "sync"

// personLocks serializes balance-affecting operations per person. Apply,
// cancel, and decline all read-modify-write the same balance; the store's
// conditional decrement catches overdrafts, but the lock keeps the overlap
// check and the insert that depends on it from interleaving for one person.
// Cross-person operations proceed concurrently.
type personLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPersonLocks() *personLocks {
	return &personLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the given person's mutex and returns the unlock func.
func (pl *personLocks) acquire(personID string) func() {
	pl.mu.Lock()
	l, ok := pl.locks[personID]
	if !ok {
		l = &sync.Mutex{}
		pl.locks[personID] = l
	}
	pl.mu.Unlock()

	l.Lock()
	return l.Unlock
}
