package event

import "fmt"

// ID is a globally unique, monotonically increasing event identifier.
// Ids are never reused within a run.
type ID uint64

// Clock is the per-thread vector of maximum observed thread positions:
// a causality clock.
type Clock map[ThreadID]int

// Clone returns an independent copy of c.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Join returns the pointwise maximum of c and other, without mutating
// either. A thread present in only one of them keeps its position, even
// position 0.
func (c Clock) Join(other Clock) Clock {
	out := c.Clone()
	for k, v := range other {
		if cur, ok := out[k]; !ok || v > cur {
			out[k] = v
		}
	}
	return out
}

// LessOrEqual reports whether c is pointwise <= other (c happened-before
// or equals other).
func (c Clock) LessOrEqual(other Clock) bool {
	for k, v := range c {
		if v > other[k] {
			return false
		}
	}
	return true
}

// Event is the immutable record of one thread action. Events are
// arena-allocated and referenced by Id everywhere else (engine,
// execution) to keep the event graph a DAG with no Go pointer cycles.
type Event struct {
	Id             ID
	ThreadId       ThreadID
	ThreadPosition int
	Label          Label

	Parent       ID  // 0 (and HasParent=false) for the root Initialization event
	HasParent    bool
	Dependencies []ID

	Allocation ID // source ObjectAllocation event, if this event operates on an allocated object; 0 if none
	HasAllocation bool
	Source        ID // for a Write response pairing etc: originating Send event
	HasSource     bool

	CausalityClock Clock
}

func (e *Event) String() string {
	return fmt.Sprintf("#%d[t%d@%d]%s", e.Id, e.ThreadId, e.ThreadPosition, e.Label)
}

// Arena owns every Event created during an exploration, keyed by Id.
// Parent/dependency links are ids resolved through the arena rather than
// Go pointers, so a truncated event can be dropped without leaving
// dangling references.
type Arena struct {
	nextID ID
	events map[ID]*Event
}

func NewArena() *Arena {
	return &Arena{nextID: 1, events: make(map[ID]*Event)}
}

// Get resolves id to its Event, or nil if unknown (already rolled back
// by a prior backtrack, or never created).
func (a *Arena) Get(id ID) *Event {
	return a.events[id]
}

// Create allocates a fresh event with a new monotonic id, computing its
// causality clock as the pointwise maximum of parent's and every
// dependency's clocks, with the event's own thread position set for
// its own thread.
func (a *Arena) Create(threadID ThreadID, threadPosition int, label Label, parent ID, hasParent bool, deps []ID) *Event {
	id := a.nextID
	a.nextID++

	clock := Clock{}
	if hasParent {
		if p := a.events[parent]; p != nil {
			clock = p.CausalityClock.Clone()
		}
	}
	for _, d := range deps {
		if de := a.events[d]; de != nil {
			clock = clock.Join(de.CausalityClock)
		}
	}
	clock[threadID] = threadPosition

	ev := &Event{
		Id:             id,
		ThreadId:       threadID,
		ThreadPosition: threadPosition,
		Label:          label,
		Parent:         parent,
		HasParent:      hasParent,
		Dependencies:   append([]ID(nil), deps...),
		CausalityClock: clock,
	}
	a.events[id] = ev
	return ev
}

// Delete discards the event for id. Used during backtracking to truncate
// events beyond a reset frontier.
func (a *Arena) Delete(id ID) {
	delete(a.events, id)
}

// Len reports how many live (non-deleted) events the arena holds.
func (a *Arena) Len() int { return len(a.events) }

// All returns every live event, for invariant-checking tests; iteration
// order is unspecified.
func (a *Arena) All() []*Event {
	out := make([]*Event, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e)
	}
	return out
}
