package lock

import (
	"context"
	"sync"
)

// LocalLocker is an in-process Locker. Each key maps to a one-slot channel so
// waiting respects ctx cancellation; entries are dropped once unused.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, ErrNotAcquired
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

func (l *LocalLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, key)
	}
}
