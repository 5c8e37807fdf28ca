package utils

import (
	"context"
	"errors"
	"sync"
)

var ErrTooManyKeys = errors.New("too many keys waiting for a lock")

type keyedEntry struct {
	sem     chan struct{}
	waiters int
}

// KeyedLock serializes work per key. Entries are dropped once nobody holds
// or waits on them, so the number of live keys stays bounded by maxKeys.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
	maxKeys int
}

func NewKeyedLock(maxKeys int) *KeyedLock {
	return &KeyedLock{entries: make(map[string]*keyedEntry), maxKeys: maxKeys}
}

func (l *KeyedLock) acquireEntry(key string) (*keyedEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.maxKeys {
			return nil, ErrTooManyKeys
		}
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.waiters++
	return e, nil
}

func (l *KeyedLock) releaseEntry(key string, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.waiters--
	if e.waiters == 0 {
		delete(l.entries, key)
	}
}

// Lock blocks until key is free or ctx is done. The returned func releases the
// lock and must be called exactly once.
func (l *KeyedLock) Lock(ctx context.Context, key string) (func(), error) {
	e, err := l.acquireEntry(key)
	if err != nil {
		return nil, err
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseEntry(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.releaseEntry(key, e)
		})
	}, nil
}

func (l *KeyedLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
