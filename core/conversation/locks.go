package conversation

import (
	"context"
	"sync"
)

// lockTable serializes work per user. Entries exist only while somebody holds
// or waits for them.
type lockTable struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	sem  chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[int64]*userLock)}
}

// lock blocks until the user's lock is held or ctx is done.
func (t *lockTable) lock(ctx context.Context, userID int64) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[userID]
	if !ok {
		l = &userLock{sem: make(chan struct{}, 1)}
		t.locks[userID] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.sem
				t.release(userID, l)
			})
		}, nil
	case <-ctx.Done():
		t.release(userID, l)
		return nil, ctx.Err()
	}
}

func (t *lockTable) release(userID int64, l *userLock) {
	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, userID)
	}
	t.mu.Unlock()
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
