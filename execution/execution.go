package execution

import (
	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/location"
)

// Execution is a per-thread sequence of events plus a memory-access
// index, growing append-only within one exploration and reset wholesale
// on backtrack.
type Execution struct {
	arena   *event.Arena
	threads map[event.ThreadID][]*event.Event
	order   []event.ID // global append order, for getDanglingRequests and consistency scans

	index *AccessIndex
}

func New(arena *event.Arena) *Execution {
	return &Execution{
		arena:   arena,
		threads: make(map[event.ThreadID][]*event.Event),
		index:   newAccessIndex(),
	}
}

// Arena exposes the backing event arena.
func (e *Execution) Arena() *event.Arena { return e.arena }

// ThreadEvents returns the contiguous event sequence for tid.
func (e *Execution) ThreadEvents(tid event.ThreadID) []*event.Event {
	return e.threads[tid]
}

// Last returns the last event of tid, if any.
func (e *Execution) Last(tid event.ThreadID) (*event.Event, bool) {
	evs := e.threads[tid]
	if len(evs) == 0 {
		return nil, false
	}
	return evs[len(evs)-1], true
}

// Frontier returns the current execution frontier.
func (e *Execution) Frontier() Frontier {
	f := make(Frontier, len(e.threads))
	for tid, evs := range e.threads {
		if len(evs) > 0 {
			f[tid] = evs[len(evs)-1].Id
		}
	}
	return f
}

// Append adds ev to the execution; ev must extend its thread's sequence
// by exactly one position.
func (e *Execution) Append(ev *event.Event) {
	e.threads[ev.ThreadId] = append(e.threads[ev.ThreadId], ev)
	e.order = append(e.order, ev.Id)
	e.index.record(ev)
}

// ThreadEventAt returns the event at thread-local position pos for tid,
// if the execution currently holds one there.
func (e *Execution) ThreadEventAt(tid event.ThreadID, pos int) (*event.Event, bool) {
	evs := e.threads[tid]
	if pos < 0 || pos >= len(evs) {
		return nil, false
	}
	return evs[pos], true
}

// All returns every event currently in the execution, in global append
// order.
func (e *Execution) All() []*event.Event {
	out := make([]*event.Event, 0, len(e.order))
	for _, id := range e.order {
		if ev := e.arena.Get(id); ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

// Contains reports whether id has been appended.
func (e *Execution) Contains(id event.ID) bool {
	ev := e.arena.Get(id)
	if ev == nil {
		return false
	}
	evs := e.threads[ev.ThreadId]
	return ev.ThreadPosition < len(evs) && evs[ev.ThreadPosition].Id == id
}

// Order returns the global append order of every event currently in
// the execution.
func (e *Execution) Order() []event.ID {
	return append([]event.ID(nil), e.order...)
}

// Index exposes the memory-access index for synchronization search and
// consistency checking.
func (e *Execution) Index() *AccessIndex { return e.index }

// ResetTo discards every event whose id exceeds cutoff and rebuilds the
// memory-access index: a reset to a prior frontier by discarding all
// events whose id exceeds the chosen cutoff.
func (e *Execution) ResetTo(cutoff event.ID) {
	newThreads := make(map[event.ThreadID][]*event.Event, len(e.threads))
	var newOrder []event.ID
	for tid, evs := range e.threads {
		kept := evs
		for i, ev := range evs {
			if ev.Id > cutoff {
				kept = evs[:i]
				break
			}
		}
		if len(kept) > 0 {
			newThreads[tid] = append([]*event.Event(nil), kept...)
		}
		for _, ev := range kept {
			newOrder = append(newOrder, ev.Id)
		}
		for _, ev := range evs[len(kept):] {
			e.arena.Delete(ev.Id)
		}
	}
	e.threads = newThreads
	e.order = sortedByID(newOrder)

	e.index = newAccessIndex()
	for _, id := range e.order {
		if ev := e.arena.Get(id); ev != nil {
			e.index.record(ev)
		}
	}
}

// ResetToFrontier truncates every thread independently to the event
// named by f for that thread (dropping the thread's events entirely if
// it has no entry in f), then rebuilds the access index. Unlike
// ResetTo's single global cutoff, this correctly reproduces a
// BacktrackingPoint's frontier even when unrelated threads have raced
// far ahead of the thread the backtracking point concerns.
func (e *Execution) ResetToFrontier(f Frontier) {
	newThreads := make(map[event.ThreadID][]*event.Event, len(e.threads))
	var newOrder []event.ID
	for tid, evs := range e.threads {
		target, ok := f[tid]
		var kept []*event.Event
		if ok {
			for i, ev := range evs {
				kept = evs[:i+1]
				if ev.Id == target {
					break
				}
				if ev.Id > target {
					kept = evs[:i]
					break
				}
			}
		}
		if len(kept) > 0 {
			newThreads[tid] = append([]*event.Event(nil), kept...)
		}
		for _, ev := range kept {
			newOrder = append(newOrder, ev.Id)
		}
		for _, ev := range evs[len(kept):] {
			e.arena.Delete(ev.Id)
		}
	}
	e.threads = newThreads
	e.order = sortedByID(newOrder)

	e.index = newAccessIndex()
	for _, id := range e.order {
		if ev := e.arena.Get(id); ev != nil {
			e.index.record(ev)
		}
	}
}

func sortedByID(ids []event.ID) []event.ID {
	out := append([]event.ID(nil), ids...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// GetDanglingRequests returns every blocking Request event at the
// frontier of some thread that has no Response yet in this execution.
func (e *Execution) GetDanglingRequests() []*event.Event {
	var out []*event.Event
	for tid, evs := range e.threads {
		if len(evs) == 0 {
			continue
		}
		last := evs[len(evs)-1]
		if last.Label.IsBlocking() {
			out = append(out, last)
		}
		_ = tid
	}
	return out
}

// Location re-exported so callers only need to import execution for
// access-index lookups keyed by location.Location.
type Location = location.Location
