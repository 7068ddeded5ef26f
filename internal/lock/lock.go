// Package lock provides keyed mutual exclusion for check-then-write sections.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding the lock for key. Errors from fn are returned
// unchanged; failure to take the lock wraps ErrNotAcquired.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process Locker. It serialises callers of one process only.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
	wait time.Duration
}

// NewLocal returns a Local that waits at most wait for a busy key. A zero
// wait means the caller's context alone bounds the wait.
func NewLocal(wait time.Duration) *Local {
	return &Local{keys: make(map[string]*entry), wait: wait}
}

func (l *Local) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	return e
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

func (l *Local) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := l.acquire(key)
	defer l.release(key, e)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
	case <-waitCtx.Done():
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, waitCtx.Err())
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}
