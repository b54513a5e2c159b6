// Package execution implements the growing per-thread event log, its
// memory-access index, and the pluggable consistency checker.
package execution

import (
	"github.com/loomcheck/loomcheck/event"
)

// Frontier maps each thread to the last event included for it in some
// execution.
type Frontier map[event.ThreadID]event.ID

// Clone returns an independent copy.
func (f Frontier) Clone() Frontier {
	out := make(Frontier, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Update records that id is now the last event for its thread.
func (f Frontier) Update(ev *event.Event) Frontier {
	out := f.Clone()
	out[ev.ThreadId] = ev.Id
	return out
}

// Cut removes from f every thread entry pointing at one of the given
// events: the current execution frontier minus a set of conflicts.
func (f Frontier) Cut(ids []event.ID) Frontier {
	remove := make(map[event.ID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	out := make(Frontier, len(f))
	for t, id := range f {
		if !remove[id] {
			out[t] = id
		}
	}
	return out
}

// Merge combines f and other, keeping for each thread the event with
// the larger id (the "more advanced" one).
func (f Frontier) Merge(other Frontier) Frontier {
	out := f.Clone()
	for t, id := range other {
		if cur, ok := out[t]; !ok || id > cur {
			out[t] = id
		}
	}
	return out
}

// ContainsAll reports whether every id in ids is at-or-before the
// frontier's recorded position for its thread in the given arena
// (i.e. already included in the execution this frontier describes).
func (f Frontier) ContainsAll(arena *event.Arena, ids []event.ID) bool {
	for _, id := range ids {
		ev := arena.Get(id)
		if ev == nil {
			return false
		}
		last, ok := f[ev.ThreadId]
		if !ok || last < id {
			return false
		}
	}
	return true
}

// CalculateFrontier derives the frontier implied by a causality clock:
// for each thread with a recorded position in clock, find the event at
// that position by scanning the given execution's per-thread event
// lists.
func CalculateFrontier(exec *Execution, clock event.Clock) Frontier {
	out := make(Frontier, len(clock))
	for tid, pos := range clock {
		events := exec.ThreadEvents(tid)
		if pos >= 0 && pos < len(events) {
			out[tid] = events[pos].Id
		}
	}
	return out
}
