package engine

import "sync"

// lockTable hands out one mutex per train.  Entries are reference
// counted and removed once no goroutine holds or waits for them, so the
// table does not grow with deleted trains.
type lockTable struct {
	mu    sync.Mutex
	locks map[uint64]*trainLock
}

type trainLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uint64]*trainLock)}
}

// lock blocks until the caller owns trainID and returns the release func.
func (lt *lockTable) lock(trainID uint64) func() {
	lt.mu.Lock()
	l, ok := lt.locks[trainID]
	if !ok {
		l = &trainLock{}
		lt.locks[trainID] = l
	}
	l.refs++
	lt.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		lt.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(lt.locks, trainID)
		}
		lt.mu.Unlock()
	}
}

func (lt *lockTable) size() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.locks)
}
