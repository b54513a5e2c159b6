package engine

import (
	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/execution"
)

// BacktrackingPoint is a deferred alternative response: enough state to
// resume exploration from a point where a different Send was chosen to
// synchronize with some blocked Request.
type BacktrackingPoint struct {
	Event *event.Event

	// Frontier is the execution frontier to reset to before Event is
	// (re-)appended: the current frontier minus Event's conflicts.
	Frontier execution.Frontier

	// Pinned is the set of event ids that must not be chosen as
	// alternative synchronization partners while this point is live —
	// the causal past of Event, merged with whatever was already
	// pinned when Event was created.
	Pinned map[event.ID]bool

	// Blocked snapshots the dangling (unanswered) request ids at the
	// time Event was created. startNextExploration does not read it: it
	// recomputes the dangling requests from the reset execution.
	Blocked []event.ID

	Visited bool
}

// backtrackStack is a stack of BacktrackingPoints kept sorted by
// ascending Event.Id, so the newest point is always at the end — DFS
// explores the newest backtracking point first.
type backtrackStack struct {
	points []*BacktrackingPoint
}

func (s *backtrackStack) push(p *BacktrackingPoint) {
	s.points = append(s.points, p)
}

// popNextUnvisited returns the highest-id unvisited point without
// removing it from the stack (the caller marks it Visited), or nil if
// every point has already been visited.
func (s *backtrackStack) popNextUnvisited() *BacktrackingPoint {
	for i := len(s.points) - 1; i >= 0; i-- {
		if !s.points[i].Visited {
			return s.points[i]
		}
	}
	return nil
}

func (s *backtrackStack) len() int { return len(s.points) }
