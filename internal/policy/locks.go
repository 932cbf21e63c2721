package policy

import "sync"

// accountLocks serializes mutations per account id. Different accounts never
// contend; the registry mutex is held only long enough to find or create the
// per-account entry. Entries are dropped once the last holder releases, so
// the map does not grow with the account population.
type accountLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the exclusive section for key is available and
// returns the release function. Collaborator dispatch must happen after
// release; only state decided inside the section is authoritative.
func (l *accountLocks) Acquire(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
