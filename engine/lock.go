package engine

import (
	"context"
	"sync"
)

// threadLocks serializes turns per thread id. Entries are dropped once no
// turn holds or waits for them.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	slot chan struct{}
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// acquire blocks until threadID is free or ctx ends.
func (l *threadLocks) acquire(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	tl, ok := l.locks[threadID]
	if !ok {
		tl = &threadLock{slot: make(chan struct{}, 1)}
		l.locks[threadID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	select {
	case tl.slot <- struct{}{}:
	case <-ctx.Done():
		l.unref(threadID, tl)
		return nil, ctx.Err()
	}

	return func() {
		<-tl.slot
		l.unref(threadID, tl)
	}, nil
}

func (l *threadLocks) unref(threadID string, tl *threadLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tl.refs--
	if tl.refs == 0 {
		delete(l.locks, threadID)
	}
}

// size reports the number of threads with a running or waiting turn.
func (l *threadLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
