package timer

import "sync"

// userLocks hands out one mutex per user. Start, stop and move hold the
// acting user's lock for the whole read-then-act sequence, which closes the
// two-tabs-both-observe-idle race on the one-active-session-per-user rule
// within a single process.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *userLocks) forUser(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}
