// Package fanout runs post-commit side effects (event publish, job enqueue)
// on a bounded worker pool so they never add latency to, or fail, the
// request that triggered them.
//
// Dispatch never blocks: when the queue is full the task is dropped, logged
// and counted. Each task gets its own timeout on a background context, and a
// panicking task is recovered and counted as such. Close stops intake, drains
// what is already queued, and waits for the workers.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Task is one unit of fan-out work.
type Task func(ctx context.Context) error

// Result labels for fanout_tasks_total.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
	ResultPanic   = "panic"
)

var tasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "signup_fanout_tasks_total",
		Help: "Post-commit fan-out tasks by task name and result.",
	},
	[]string{"task", "result"},
)

func init() {
	prometheus.MustRegister(tasksTotal)
}

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("fanout: pool closed")

type job struct {
	name string
	run  Task
}

// Pool is a fixed-size worker pool with a bounded queue.
type Pool struct {
	queue   chan job
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines reading from a queue of the given capacity.
// Non-positive values fall back to 4 workers, 256 slots and a 10s timeout.
func New(workers, queue int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Pool{queue: make(chan job, queue), timeout: timeout}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Dispatch enqueues t under name. It reports false if the task was dropped
// because the queue is full or the pool is closed.
func (p *Pool) Dispatch(name string, t Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(name, "pool closed")
		return false
	}
	select {
	case p.queue <- job{name: name, run: t}:
		return true
	default:
		p.drop(name, "queue full")
		return false
	}
}

func (p *Pool) drop(name, reason string) {
	tasksTotal.WithLabelValues(name, ResultDropped).Inc()
	log.Warn().Str("task", name).Str("reason", reason).Msg("fanout task dropped")
}

// Close stops accepting tasks and waits for queued ones to finish, or for ctx
// to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		Run(j.name, p.timeout, j.run)
	}
}

// Run executes t synchronously with its own timeout, recording the outcome.
// It is what the workers call, and what callers without a pool use directly.
func Run(name string, timeout time.Duration, t Task) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fanout task %s panicked: %v", name, r)
			tasksTotal.WithLabelValues(name, ResultPanic).Inc()
			log.Error().Str("task", name).Interface("panic", r).Msg("fanout task panicked")
			return
		}
		if err != nil {
			tasksTotal.WithLabelValues(name, ResultError).Inc()
			log.Warn().Err(err).Str("task", name).Dur("took", time.Since(start)).Msg("fanout task failed")
			return
		}
		tasksTotal.WithLabelValues(name, ResultOK).Inc()
	}()
	return t(ctx)
}
