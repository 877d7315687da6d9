// Package lock provides optional per-user mutual exclusion around payment
// allocation. Correctness never depends on it (the ledger's unique FUND
// period index does), it only cuts down on conflict retries.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLockFailed is returned when a lock could not be acquired in time.
var ErrLockFailed = errors.New("lock: could not acquire lock")

// Release gives a held lock back.
type Release func()

// Locker acquires a named lock, blocking until it is held, ctx is done, or
// the implementation gives up with ErrLockFailed.
type Locker interface {
	Lock(ctx context.Context, key string) (Release, error)
}

// UserKey is the lock key for allocations of one user.
func UserKey(userID string) string {
	return fmt.Sprintf("treasurer:lock:allocate:user:%s", userID)
}

// Noop is a Locker that never blocks.
type Noop struct{}

// Lock implements Locker.
func (Noop) Lock(ctx context.Context, key string) (Release, error) {
	return func() {}, nil
}

// Local serializes holders of the same key within one process.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process Locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *Local) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
