package sessions

import (
	"context"
	"sync"
)

// Locks is a keyed mutex. Requests on the same session id are serialized so
// turns are never interleaved; different ids do not contend.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	slot chan struct{}
	refs int
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*refLock)}
}

// Lock waits for the lock on id and returns its release function. It gives
// up with ctx.Err() when ctx ends first.
func (l *Locks) Lock(ctx context.Context, id string) (unlock func(), err error) {
	l.mu.Lock()
	rl, ok := l.locks[id]
	if !ok {
		rl = &refLock{slot: make(chan struct{}, 1)}
		l.locks[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	select {
	case rl.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(id, rl)
		return nil, ctx.Err()
	}

	return func() {
		<-rl.slot
		l.release(id, rl)
	}, nil
}

func (l *Locks) release(id string, rl *refLock) {
	l.mu.Lock()
	rl.refs--
	if rl.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}

func (l *Locks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
