package lease

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker for single-instance deployments and
// tests.
type LocalLocker struct {
	mu     sync.Mutex
	held   map[string]localLease
	now    func() time.Time
	nextID uint64
}

type localLease struct {
	id      uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLease), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return func() {}, false, nil
	}
	l.nextID++
	id := l.nextID
	l.held[key] = localLease{id: id, expires: now.Add(ttl)}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.id == id {
			delete(l.held, key)
		}
	}, true, nil
}
