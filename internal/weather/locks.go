package weather

import "sync"

// locationLocks hands out one mutex per location id so sync commits for the
// same location are serialized while commits for different locations proceed
// in parallel. Locks are never reclaimed; the tracked set is small.
type locationLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newLocationLocks() *locationLocks {
	return &locationLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *locationLocks) get(id int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
