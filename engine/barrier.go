package engine

import (
	"github.com/loomcheck/loomcheck/event"
)

// resolveThreadJoin folds every ThreadFinish already in the execution
// into req's join set, completing the request immediately if every
// joined thread has already finished, or recording the (possibly
// already partially reduced) remaining set otherwise — the Barrier sync
// type.
func (e *Engine) resolveThreadJoin(req *event.Event) (*event.Event, Decision) {
	remaining := req.Label
	var deps []event.ID
	for _, ev := range e.exec.All() {
		if ev.Label.Kind() != event.ThreadFinish {
			continue
		}
		if reduced, ok := event.SyncThreadFinish(ev.Label, remaining); ok {
			remaining = reduced
			deps = append(deps, ev.Id)
		}
	}
	if remaining.Phase() == event.Response {
		return e.appendBarrierResponse(req, remaining, deps)
	}
	e.dangling[req.Id] = req
	e.joinRemaining[req.Id] = remaining
	e.joinDeps[req.Id] = deps
	return nil, DecisionContinue
}

// propagateThreadFinish folds send into every dangling ThreadJoin
// request still waiting on send's thread, completing any that become
// fully satisfied.
func (e *Engine) propagateThreadFinish(send *event.Event) Decision {
	decision := DecisionContinue
	for reqID, remaining := range e.joinRemaining {
		reduced, ok := event.SyncThreadFinish(send.Label, remaining)
		if !ok {
			continue
		}
		req := e.dangling[reqID]
		if req == nil {
			continue
		}
		deps := append(append([]event.ID(nil), e.joinDeps[reqID]...), send.Id)
		if reduced.Phase() == event.Response {
			_, d := e.appendBarrierResponse(req, reduced, deps)
			decision = combineDecision(decision, d)
			delete(e.dangling, reqID)
			delete(e.joinRemaining, reqID)
			delete(e.joinDeps, reqID)
		} else {
			e.joinRemaining[reqID] = reduced
			e.joinDeps[reqID] = deps
		}
	}
	return decision
}

// appendBarrierResponse appends a barrier Response with no alternative
// to choose between — ThreadJoin has exactly one outcome once its
// thread set is empty, so there is nothing to push a BacktrackingPoint
// for.
func (e *Engine) appendBarrierResponse(req *event.Event, label event.Label, deps []event.ID) (*event.Event, Decision) {
	pos := req.ThreadPosition + 1
	ev := e.arena.Create(req.ThreadId, pos, label, req.Id, true, deps)
	if len(deps) > 0 {
		ev.Source = deps[len(deps)-1]
		ev.HasSource = true
	} else {
		ev.Source = req.Id
		ev.HasSource = true
	}
	return ev, e.appendEvent(ev)
}
