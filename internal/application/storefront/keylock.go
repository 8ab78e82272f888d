package storefront

import "sync"

// keyLock serializes work per item id. Bulk work (load, clear, resync)
// excludes every per-item holder.
type keyLock struct {
	bulk sync.RWMutex

	mu   sync.Mutex
	keys map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{keys: make(map[string]*keyEntry)}
}

// Lock acquires the lock for id and returns its release. An empty id takes
// the bulk lock.
func (l *keyLock) Lock(id string) func() {
	if id == "" {
		return l.LockAll()
	}

	l.bulk.RLock()
	l.mu.Lock()
	e, ok := l.keys[id]
	if !ok {
		e = &keyEntry{}
		l.keys[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.keys, id)
		}
		l.mu.Unlock()
		l.bulk.RUnlock()
	}
}

// LockAll waits for all per-item holders and blocks new ones until released
func (l *keyLock) LockAll() func() {
	l.bulk.Lock()
	return l.bulk.Unlock
}

func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
