package execution

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/location"
)

// Initializer supplies the value a location holds before any Write has
// reached it, so a consistency checker can tell a legal initial-value
// read apart from a read that matches no write at all.
type Initializer func(loc location.Location) location.Value

// Inconsistency is a non-nil result from a ConsistencyChecker: the
// current execution violates the memory model or the synchronization
// algebra.
type Inconsistency struct {
	Message string
	At      event.ID
}

func (i *Inconsistency) Error() string {
	return fmt.Sprintf("inconsistency at event #%d: %s", i.At, i.Message)
}

// ConsistencyChecker inspects the current execution and returns an
// Inconsistency, or nil if none is found. The engine treats any
// non-nil result as a hard failure for the current schedule.
type ConsistencyChecker interface {
	Check(exec *Execution) *Inconsistency
}

// CheckerFunc adapts a plain function to ConsistencyChecker.
type CheckerFunc func(exec *Execution) *Inconsistency

func (f CheckerFunc) Check(exec *Execution) *Inconsistency { return f(exec) }

// Checkers runs a sequence of checkers, returning the first
// Inconsistency reported.
type Checkers []ConsistencyChecker

func (cs Checkers) Check(exec *Execution) *Inconsistency {
	for _, c := range cs {
		if inc := c.Check(exec); inc != nil {
			return inc
		}
	}
	return nil
}

// NewSequentialConsistencyChecker builds a checker that flags a
// Read-Response whose value matches no Write to the same location with
// a smaller event id (any such write, not only the last one) nor, when
// no such write exists at all, init's value for that location — the cheapest meaningful memory-model check
// the engine can run on every pass, built on the access index. init may
// be nil, in which case a read with no prior write is always accepted
// (the permissive behavior used before an initializer was wired in).
func NewSequentialConsistencyChecker(init Initializer) ConsistencyChecker {
	return CheckerFunc(func(exec *Execution) *Inconsistency {
		for _, tid := range sortedThreadIDs(exec.threads) {
			for _, ev := range exec.threads[tid] {
				if ev.Label.Kind() != event.Read || !ev.Label.IsResponse() {
					continue
				}
				writes := exec.Index().GetWrites(ev.Label.Location)
				matched := false
				sawPriorWrite := false
				for _, w := range writes {
					if w.Id > ev.Id {
						continue
					}
					sawPriorWrite = true
					if w.Label.Value == ev.Label.Value {
						matched = true
						break
					}
				}
				if !sawPriorWrite {
					if init == nil || ev.Label.Value == init(ev.Label.Location) {
						continue // legal initial-value read
					}
					log.Warn().Interface("thread", tid).Uint64("event", uint64(ev.Id)).Interface("location", ev.Label.Location).Msg("SequentialConsistencyChecker: read value matches neither a prior write nor the initial value")
					return &Inconsistency{
						Message: fmt.Sprintf("read of %s returned a value matching neither any prior write nor its initial value", ev.Label.Location),
						At:      ev.Id,
					}
				}
				if !matched {
					log.Warn().Interface("thread", tid).Uint64("event", uint64(ev.Id)).Interface("location", ev.Label.Location).Msg("SequentialConsistencyChecker: read value has no causally-visible matching write")
					return &Inconsistency{
						Message: fmt.Sprintf("read of %s returned a value with no causally-visible matching write", ev.Label.Location),
						At:      ev.Id,
					}
				}
			}
		}
		return nil
	})
}

// SequentialConsistencyChecker is NewSequentialConsistencyChecker(nil):
// every Read of a location with no prior write is accepted unchecked.
// Callers that have a MemoryInitializer should build their own checker
// with NewSequentialConsistencyChecker instead.
var SequentialConsistencyChecker = NewSequentialConsistencyChecker(nil)

// NoOrphanResponseChecker flags a Response event with no Source event
// recorded — an internal invariant guard (every synthesized Response
// must record which Send it synchronized with).
var NoOrphanResponseChecker ConsistencyChecker = CheckerFunc(func(exec *Execution) *Inconsistency {
	for _, tid := range sortedThreadIDs(exec.threads) {
		for _, ev := range exec.threads[tid] {
			if ev.Label.IsResponse() && !ev.HasSource {
				return &Inconsistency{
					Message: "response event has no recorded synchronization source",
					At:      ev.Id,
				}
			}
		}
	}
	return nil
})

func sortedThreadIDs(m map[event.ThreadID][]*event.Event) []event.ThreadID {
	out := make([]event.ThreadID, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
