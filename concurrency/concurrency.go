package concurrency

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Limiter caps the number of concurrent operations with a counting semaphore
type Limiter struct {
	max       int32
	current   atomic.Int32
	semaphore chan struct{}

	acquired atomic.Int64
	rejected atomic.Int64
}

// NewLimiter creates a limiter allowing up to max concurrent holders
//
// Usage:
//
//	lim, err := concurrency.NewLimiter(16)
//	if err != nil {
//	    return err
//	}
//	if err := lim.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer lim.Release()
func NewLimiter(max int32) (*Limiter, error) {
	if max <= 0 {
		return nil, fmt.Errorf("max concurrent must be positive, got: %d", max)
	}

	return &Limiter{
		max:       max,
		semaphore: make(chan struct{}, max),
	}, nil
}

// Acquire blocks until a slot is free or ctx is done
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.semaphore <- struct{}{}:
		l.current.Add(1)
		l.acquired.Add(1)
		return nil
	case <-ctx.Done():
		l.rejected.Add(1)
		return fmt.Errorf("failed to acquire concurrency slot: %w", ctx.Err())
	}
}

// Release frees a slot taken by Acquire
func (l *Limiter) Release() {
	select {
	case <-l.semaphore:
		l.current.Add(-1)
	default:
		panic("concurrency: release without acquire")
	}
}

// Available returns the number of free slots
func (l *Limiter) Available() int32 {
	return l.max - l.current.Load()
}

// GetMetrics returns current metrics
func (l *Limiter) GetMetrics() map[string]int64 {
	return map[string]int64{
		"current":   int64(l.current.Load()),
		"available": int64(l.Available()),
		"acquired":  l.acquired.Load(),
		"rejected":  l.rejected.Load(),
	}
}
