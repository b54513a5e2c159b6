// Package pool implements a fixed-size, reusable worker pool: unlike a
// throwaway per-run pool, a FixedActiveThreadsExecutor's goroutines are
// started once and parked on a condition variable between rounds, so
// the engine can call SubmitAndAwait once per schedule without paying
// goroutine startup cost on every exploration. Generalizes a
// channel-based "spawn N goroutines, close the channel when the whole
// run ends" worker into "spawn N goroutines once, hand them one task
// per round via a shared condition variable".
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one unit of work handed to a fixed worker slot.
type Task func() error

// ErrShutdown is returned by SubmitAndAwait once the executor has been
// shut down.
var ErrShutdown = fmt.Errorf("pool: executor is shut down")

// TimeoutError reports that a round did not complete within the
// requested deadline.
type TimeoutError struct {
	Name     string
	Timeout  time.Duration
	Finished int
	Total    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pool: %s timed out after %s (%d/%d workers finished)", e.Name, e.Timeout, e.Finished, e.Total)
}

type workerSlot struct {
	task Task
	err  error
	done bool
}

// FixedActiveThreadsExecutor runs exactly N tasks per round, one per
// worker, reusing the same N goroutines across every round of a
// (possibly long) exploration.
type FixedActiveThreadsExecutor struct {
	name string
	n    int

	mu    sync.Mutex
	cond  *sync.Cond
	slots []workerSlot

	round     uint64
	completed int
	shutdown  bool

	wg sync.WaitGroup
}

// NewFixedActiveThreadsExecutor starts n worker goroutines, parked
// until the first SubmitAndAwait call.
func NewFixedActiveThreadsExecutor(name string, n int) *FixedActiveThreadsExecutor {
	if n <= 0 {
		n = 1
	}
	e := &FixedActiveThreadsExecutor{
		name:  name,
		n:     n,
		slots: make([]workerSlot, n),
	}
	e.cond = sync.NewCond(&e.mu)
	e.wg.Add(n)
	for i := 0; i < n; i++ {
		go e.worker(i)
	}
	return e
}

// N reports the fixed number of worker slots.
func (e *FixedActiveThreadsExecutor) N() int { return e.n }

func (e *FixedActiveThreadsExecutor) worker(idx int) {
	defer e.wg.Done()

	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		for !e.shutdown && e.slots[idx].task == nil {
			e.cond.Wait()
		}
		if e.shutdown && e.slots[idx].task == nil {
			return
		}

		task := e.slots[idx].task
		round := e.round
		e.mu.Unlock()
		err := runSafely(task)
		e.mu.Lock()

		if e.round != round {
			// A prior round timed out waiting on this worker and moved
			// on; this slot already belongs to a newer round, so the
			// stale result is discarded rather than corrupting it.
			continue
		}

		e.slots[idx].task = nil
		e.slots[idx].err = err
		e.slots[idx].done = true
		e.completed++
		e.cond.Broadcast()
	}
}

func runSafely(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: task panicked: %v", r)
		}
	}()
	return t()
}

// SubmitAndAwait hands exactly one task to each worker slot and blocks
// until every slot finishes or timeout elapses (timeout <= 0 means
// "wait forever"). The executor is left ready for the next round
// regardless of outcome — this is what makes it reusable across
// schedules rather than single-use.
func (e *FixedActiveThreadsExecutor) SubmitAndAwait(tasks []Task, timeout time.Duration) ([]error, error) {
	if len(tasks) != e.n {
		return nil, fmt.Errorf("pool: %s expected %d tasks, got %d", e.name, e.n, len(tasks))
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil, ErrShutdown
	}

	e.round++
	e.completed = 0
	for i, t := range tasks {
		e.slots[i] = workerSlot{task: t}
	}
	log.Trace().Str("pool", e.name).Uint64("round", e.round).Int("tasks", len(tasks)).Msg("SubmitAndAwait: dispatching round")
	e.cond.Broadcast()

	var timedOut int32
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			atomic.StoreInt32(&timedOut, 1)
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		})
	}

	for e.completed < e.n && atomic.LoadInt32(&timedOut) == 0 {
		e.cond.Wait()
	}

	if timer != nil {
		timer.Stop()
	}

	if e.completed < e.n {
		finished := e.completed
		e.mu.Unlock()
		log.Warn().Str("pool", e.name).Uint64("round", e.round).Int("finished", finished).Int("total", e.n).Msg("SubmitAndAwait: round timed out")
		return nil, &TimeoutError{Name: e.name, Timeout: timeout, Finished: finished, Total: e.n}
	}

	errs := make([]error, e.n)
	for i := range e.slots {
		errs[i] = e.slots[i].err
	}
	e.mu.Unlock()
	return errs, nil
}

// Shutdown stops every worker goroutine and waits for them to exit.
// After Shutdown, SubmitAndAwait returns ErrShutdown.
func (e *FixedActiveThreadsExecutor) Shutdown() {
	e.mu.Lock()
	e.shutdown = true
	e.cond.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()
}
