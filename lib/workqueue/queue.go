// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workqueue is an unbounded FIFO with a single consumer.
//
// The daemon's stdout reader pushes inbound events here and goes
// straight back to reading, so a slow handler never stops the reader
// from seeing RPC responses. One goroutine runs the handler for each
// job in push order; job N+1 does not start until the handler for
// job N returns.
package workqueue

import (
	"context"
	"sync"
)

// Queue holds pending jobs. The zero value is not usable; call New.
type Queue[J any] struct {
	mu     sync.Mutex
	jobs   []J
	closed bool
	wake   chan struct{}
}

// New returns an empty, open queue.
func New[J any]() *Queue[J] {
	return &Queue[J]{wake: make(chan struct{}, 1)}
}

// Push appends job without blocking. Returns false if the queue has
// been closed, in which case job is discarded.
func (q *Queue[J]) Push(job J) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.signal()
	return true
}

// Close stops accepting jobs. Jobs already pushed are still delivered
// to Run.
func (q *Queue[J]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of jobs not yet handed to the consumer.
func (q *Queue[J]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue[J]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue[J]) pop() (job J, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return job, false, q.closed
	}
	job = q.jobs[0]
	var zero J
	q.jobs[0] = zero
	q.jobs = q.jobs[1:]
	return job, true, q.closed
}

// Run calls handle for each job in order until the queue is closed and
// empty, or ctx is cancelled. Only one Run may be active per queue.
func (q *Queue[J]) Run(ctx context.Context, handle func(context.Context, J)) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, ok, closed := q.pop()
		if ok {
			handle(ctx, job)
			continue
		}
		if closed {
			return
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return
		}
	}
}
