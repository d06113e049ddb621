package inventory

import "sync"

// keyedMutex serializes reconciliation of one identity across messages
// processed concurrently by this process. Entries are reference-counted
// so the map does not grow with the number of identities ever seen.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{held: make(map[string]*lockEntry)}
}

// Lock acquires the lock for key and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.held[key]
	if !ok {
		entry = &lockEntry{}
		k.held[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.held, key)
		}
		k.mu.Unlock()
	}
}
