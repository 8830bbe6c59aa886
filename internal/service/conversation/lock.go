package conversation

import (
	"context"
	"sync"
)

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedLock is a set of mutexes keyed by id whose acquisition honors context
// cancellation. Entries are dropped once nobody holds or waits on them.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

// NewKeyedLock creates an empty KeyedLock
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{entries: make(map[int64]*lockEntry)}
}

// Lock blocks until key is free or ctx is done
func (l *KeyedLock) Lock(ctx context.Context, key int64) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.unref(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

func (l *KeyedLock) unref(key int64, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
