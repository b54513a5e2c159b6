package engine

import (
	"fmt"

	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/execution"
)

// InconsistencyError wraps an execution.Inconsistency surfaced by the
// engine's ConsistencyChecker.
type InconsistencyError struct {
	Inconsistency *execution.Inconsistency
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("engine: %s", e.Inconsistency.Error())
}

func (e *InconsistencyError) Unwrap() error { return e.Inconsistency }

// TimeoutError reports that an exploration produced more events than
// Config.MaxEvents allows without reaching quiescence.
type TimeoutError struct {
	EventCount int
	Limit      int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("engine: exploration exceeded %d events (limit %d)", e.EventCount, e.Limit)
}

// DeadlockError reports that every thread is blocked on a dangling
// request with no Send able to synchronize with it.
type DeadlockError struct {
	Dangling []event.ID
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("engine: deadlock, %d thread(s) blocked with no available synchronization", len(e.Dangling))
}

// IncorrectResultError wraps a violation raised by a ConsistencyChecker
// other than the built-in sequential-consistency one (e.g. a caller's
// custom algorithm-correctness check plugged in at execution.Checkers).
type IncorrectResultError struct {
	Message string
	At      event.ID
}

func (e *IncorrectResultError) Error() string {
	return fmt.Sprintf("engine: incorrect result at event #%d: %s", e.At, e.Message)
}

// UnexpectedExceptionError wraps a panic recovered from a worker task at
// the pool boundary, so a single faulty task cannot crash the whole
// exploration.
type UnexpectedExceptionError struct {
	Recovered any
}

func (e *UnexpectedExceptionError) Error() string {
	return fmt.Sprintf("engine: unexpected exception from worker task: %v", e.Recovered)
}
