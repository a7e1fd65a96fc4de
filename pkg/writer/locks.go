package writer

import "sync"

// lockTable hands out one mutex per output path and forgets it once no
// writer holds or waits for it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*pathLock)}
}

// lock blocks until path is free and returns the matching unlock
func (t *lockTable) lock(path string) func() {
	t.mu.Lock()
	l, ok := t.locks[path]
	if !ok {
		l = &pathLock{}
		t.locks[path] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, path)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
