package keylock

import "sync"

// KeyLock serializes critical sections per key without a global lock.
// Entries are reference-counted and removed once the last holder unlocks,
// so the map does not grow with the number of users ever seen.
type KeyLock struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[int64]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (l *KeyLock) Lock(key int64) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key.
func (l *KeyLock) Unlock(key int64) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
	}
	l.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
