package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrBusy is reported when the queue slot is taken.
var ErrBusy = errors.New("busy, please retry")

// Job is one unit of background work, for example a save or a remove-last.
type Job func(ctx context.Context) error

// ResultCallback is invoked on job completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(err error)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs   chan task
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type task struct {
	ctx  context.Context
	name string
	run  Job
	cb   ResultCallback
}

// New creates a worker pool. Size defaults to 1 when size<=0, which serializes every job.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan task, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.jobs {
				start := time.Now()
				log.Debug().Str("job", t.name).Msg("worker: starting")
				err := t.ctx.Err()
				if err == nil {
					err = t.run(t.ctx)
				}
				log.Debug().Str("job", t.name).Dur("elapsed", time.Since(start)).AnErr("error", err).Msg("worker: finished")
				if t.cb != nil {
					t.cb(err)
				}
			}
		}()
	}
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, name string, job Job, cb ResultCallback) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- task{ctx: ctx, name: name, run: job, cb: cb}:
		return true
	default:
		log.Warn().Str("job", name).Msg("worker: queue full, job dropped")
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
