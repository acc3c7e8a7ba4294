package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Pool is a bounded worker pool. Submissions are admitted in call order and
// executed with at most size concurrent tasks; Submit blocks until a slot is
// free or ctx is done. Two independently sized pools gate batch processing
// and media downloads so that neither can starve the other.
type Pool struct {
	name   string
	size   int64
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *logrus.Logger
}

// NewPool creates a pool running at most size tasks concurrently.
func NewPool(name string, size int, logger *logrus.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Pool{
		name:   name,
		size:   int64(size),
		sem:    semaphore.NewWeighted(int64(size)),
		logger: logger,
	}
}

// Submit blocks until a worker slot is available, then runs fn on its own
// goroutine. The slot is released when fn returns. Returns an error only when
// ctx is done before admission.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("queue %s: admission cancelled: %w", p.name, err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.WithFields(logrus.Fields{
					"queue": p.name,
					"panic": r,
				}).Error("Queued task panicked")
			}
		}()
		fn(ctx)
	}()
	return nil
}

// Run blocks until a worker slot is available, runs fn inline, and returns
// its error. Used where the caller needs the result before continuing.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("queue %s: admission cancelled: %w", p.name, err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Wait blocks until all submitted tasks have finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Size returns the concurrency bound of the pool.
func (p *Pool) Size() int {
	return int(p.size)
}
