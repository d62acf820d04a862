// Package dispatch runs jobs one at a time, in submission order, on a
// single worker goroutine.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("dispatcher closed")

type Job func(ctx context.Context) error

type request struct {
	ctx  context.Context
	name string
	job  Job
	done chan error
}

type Queue struct {
	log      zerolog.Logger
	requests chan request
	quit     chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts the worker. backlog bounds how many jobs may wait before
// Submit blocks.
func New(log zerolog.Logger, backlog int) *Queue {
	if backlog < 1 {
		backlog = 1
	}
	q := &Queue{
		log:      log.With().Str("component", "dispatch").Logger(),
		requests: make(chan request, backlog),
		quit:     make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case req := <-q.requests:
			q.exec(req)
		case <-q.quit:
			// Drain what was accepted before Close.
			for {
				select {
				case req := <-q.requests:
					q.exec(req)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) exec(req request) {
	if err := req.ctx.Err(); err != nil {
		req.done <- err
		return
	}
	err := req.job(req.ctx)
	if err != nil {
		q.log.Debug().Err(err).Str("job", req.name).Msg("job failed")
	} else {
		q.log.Trace().Str("job", req.name).Msg("job done")
	}
	req.done <- err
}

// Submit enqueues job and returns a channel that receives its result.
// Jobs submitted from one goroutine run in the order they were submitted.
func (q *Queue) Submit(ctx context.Context, name string, job Job) <-chan error {
	done := make(chan error, 1)

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		done <- ErrClosed
		return done
	}
	select {
	case q.requests <- request{ctx: ctx, name: name, job: job, done: done}:
	case <-ctx.Done():
		done <- ctx.Err()
	}
	return done
}

// Do submits job and waits for it to finish.
func (q *Queue) Do(ctx context.Context, name string, job Job) error {
	return <-q.Submit(ctx, name, job)
}

// Close stops accepting jobs, runs the ones already queued and waits for
// the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()
	q.wg.Wait()
}
