package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultJobTimeout = 15 * time.Second

type job struct {
	name string
	fn   func(ctx context.Context)
}

// Dispatcher is a bounded in-process worker pool for fire-and-forget jobs.
// A full queue drops the job.
type Dispatcher struct {
	queue      chan job
	wg         sync.WaitGroup
	jobTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{
		queue:      make(chan job, queueSize),
		jobTimeout: defaultJobTimeout,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue submits fn without blocking. It reports false when the job was dropped.
func (d *Dispatcher) Enqueue(name string, fn func(ctx context.Context)) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		log.Warn().Str("job", name).Msg("Dispatcher closed, dropping job")
		return false
	}

	select {
	case d.queue <- job{name: name, fn: fn}:
		return true
	default:
		log.Warn().Str("job", name).Msg("Dispatcher queue full, dropping job")
		return false
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("job", j.name).Msg("Dispatcher job panicked")
		}
	}()

	j.fn(ctx)
}

// Close stops accepting jobs and waits for queued ones to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
