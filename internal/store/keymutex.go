package store

import "sync"

// KeyMutex serializes read-modify-write cycles per storage key. The blob
// store has no transactions, so two concurrent updates of the same record
// would otherwise both read the same stale value and one write would win.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyMutex creates an empty keyed mutex
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{
		locks: make(map[string]*keyLock),
	}
}

// Lock acquires the mutex for key and returns the matching unlock func
func (k *KeyMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
