package core

// import_limiter.go caps the number of imports running at once.
//
// Each import holds one slot for its whole run, from parse to commit. When
// all slots are taken a caller waits up to maxWait, then gets
// ErrTooManyImports. Drain blocks shutdown until the running imports finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when no slot frees up within the wait time.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

const (
	DefaultMaxConcurrentImports = 4
	DefaultMaxWaitTime          = 30 * time.Second
)

// ImportLimiter is a counting semaphore with drain support.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	active  int
	waiters []chan struct{} // closed when active drops to zero
}

// NewImportLimiter allows maxConcurrent imports; non-positive values use the defaults.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot and returns the function that gives it back.
// The release function is safe to call more than once.
func (l *ImportLimiter) Acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTooManyImports
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(l.release) }, nil
}

func (l *ImportLimiter) release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		for _, w := range l.waiters {
			close(w)
		}
		l.waiters = nil
	}
	l.mu.Unlock()
	<-l.slots
}

// Drain blocks until no import is running or ctx is done.
func (l *ImportLimiter) Drain(ctx context.Context) error {
	l.mu.Lock()
	if l.active == 0 {
		l.mu.Unlock()
		return nil
	}
	idle := make(chan struct{})
	l.waiters = append(l.waiters, idle)
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *ImportLimiter) Status() LimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
