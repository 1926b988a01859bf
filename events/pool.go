package events

import (
	"context"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Job is a unit of work run by a Pool
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of workers. Submit blocks when the queue is full.
type Pool struct {
	workers int
	jobs    chan Job
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan Job, queueSize),
	}
}

// Start launches the workers. Jobs receive ctx, which should outlive the producer
// so that queued work can finish during shutdown.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return pkgerrors.New("[Pool.Start] pool has been stopped")
	}
	if p.started {
		return pkgerrors.New("[Pool.Start] pool already started")
	}
	p.started = true
	for n := 0; n < p.workers; n++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
	return nil
}

// Submit queues job. It fails if the pool is stopped or ctx ends first.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.stopped {
		return pkgerrors.New("[Pool.Submit] pool is not running")
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return pkgerrors.Wrap(ctx.Err(), "[Pool.Submit]")
	}
}

// Stop drains the queue and waits for the workers
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(ctx, job)
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("event worker recovered from panic")
		}
	}()
	job(ctx)
}
