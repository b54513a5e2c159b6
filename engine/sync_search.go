package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/execution"
)

// appendEvent records ev as the newly-appended tail event and observes
// it for spin detection, reporting ReasonSpinBound through
// signalSwitch once the same thread repeats the same weak signature
// SpinBound times running.
func (e *Engine) appendEvent(ev *event.Event) Decision {
	e.exec.Append(ev)
	e.recordSchedule(ev)
	if e.loop.Observe(ev) {
		return e.signalSwitch(ev.ThreadId, ReasonSpinBound)
	}
	return DecisionContinue
}

// appendSimple appends a one-shot or Request label as the next event of
// threadID, with no synchronization search of its own.
func (e *Engine) appendSimple(threadID event.ThreadID, label event.Label) (*event.Event, Decision) {
	var parentID event.ID
	var hasParent bool
	pos := 0
	if last, ok := e.exec.Last(threadID); ok {
		parentID, hasParent = last.Id, true
		pos = last.ThreadPosition + 1
	}
	ev := e.arena.Create(threadID, pos, label, parentID, hasParent, nil)
	return ev, e.appendEvent(ev)
}

// appendRequest appends label as a blocking Request and immediately
// tries to resolve it against whatever Sends already exist, returning
// the request and its response (nil if still dangling).
func (e *Engine) appendRequest(threadID event.ThreadID, label event.Label) (*event.Event, *event.Event, Decision) {
	req, d1 := e.appendSimple(threadID, label)
	resp, d2 := e.resolveRequest(req)
	return req, resp, combineDecision(d1, d2)
}

// appendSend appends label as a Send and immediately propagates it to
// any currently-dangling compatible Requests.
func (e *Engine) appendSend(threadID event.ThreadID, label event.Label) (*event.Event, Decision) {
	send, d1 := e.appendSimple(threadID, label)
	d2 := e.propagateSend(send)
	return send, combineDecision(d1, d2)
}

// computeConflicts computes a candidate response's conflict set: the
// event (if any) already occupying (threadID, pos), plus — for Lock/Wait
// Responses — every other Response already in the execution sourced
// from the same Send, since at most one requester may win a given
// unlock or notify.
func (e *Engine) computeConflicts(threadID event.ThreadID, pos int, label event.Label, source event.ID) []event.ID {
	var conflicts []event.ID
	if existing, ok := e.exec.ThreadEventAt(threadID, pos); ok {
		conflicts = append(conflicts, existing.Id)
	}
	if !label.IsResponse() {
		return conflicts
	}
	switch label.Kind() {
	case event.Lock, event.Wait:
		for _, ev := range e.exec.All() {
			if ev.Label.Kind() == label.Kind() && ev.Label.IsResponse() && ev.HasSource && ev.Source == source {
				conflicts = append(conflicts, ev.Id)
			}
		}
	}
	return conflicts
}

// causalityViolation reports whether any conflict in conflicts already
// lies in clock's causal past — the new event would contradict
// something the execution already depends on.
func (e *Engine) causalityViolation(clock event.Clock, conflicts []event.ID) bool {
	for _, c := range conflicts {
		ev := e.arena.Get(c)
		if ev == nil {
			continue
		}
		if pos, ok := clock[ev.ThreadId]; ok && pos >= ev.ThreadPosition {
			return true
		}
	}
	return false
}

// createResponseCandidate builds the Response event that would result
// from synchronizing send with req. If visit is true the event is
// simply constructed (the caller is choosing it right now); if false a
// BacktrackingPoint is pushed for later exploration instead. Returns
// ok=false (no error) on a causality violation — an expected,
// non-fatal outcome that just means this candidate is currently
// unreachable.
func (e *Engine) createResponseCandidate(req, send *event.Event, visit bool) (*event.Event, bool, error) {
	label, ok := event.Sync(send.Label, req.Label)
	if !ok {
		return nil, false, nil
	}

	pos := req.ThreadPosition + 1
	conflicts := e.computeConflicts(req.ThreadId, pos, label, send.Id)

	clock := req.CausalityClock.Join(send.CausalityClock)
	if e.causalityViolation(clock, conflicts) {
		return nil, false, nil
	}

	ev := e.arena.Create(req.ThreadId, pos, label, req.Id, true, []event.ID{send.Id})
	ev.Source = send.Id
	ev.HasSource = true

	if !visit {
		// Roll each conflicting thread back to just before the
		// conflicting event, not off the frontier entirely — only the
		// conflicting event (and whatever came after it) is undone.
		frontier := e.exec.Frontier()
		for _, c := range conflicts {
			cev := e.arena.Get(c)
			if cev == nil {
				continue
			}
			if cev.HasParent {
				frontier[cev.ThreadId] = cev.Parent
			} else {
				delete(frontier, cev.ThreadId)
			}
		}
		frontier[req.ThreadId] = req.Id

		pinned := cloneIDSet(e.pinned)
		for _, id := range execution.CalculateFrontier(e.exec, ev.CausalityClock) {
			pinned[id] = true
		}
		for _, c := range conflicts {
			delete(pinned, c)
		}
		for id := range e.dangling {
			delete(pinned, id)
		}
		delete(pinned, ev.Id)

		blocked := make([]event.ID, 0, len(e.dangling))
		for id := range e.dangling {
			blocked = append(blocked, id)
		}

		e.backtrack.push(&BacktrackingPoint{
			Event:    ev,
			Frontier: frontier,
			Pinned:   pinned,
			Blocked:  blocked,
		})
	}

	return ev, true, nil
}

// resolveRequest is called right after a blocking Request is appended:
// it searches the execution for a Send that can answer it now. Lock
// re-entries and ThreadJoin barriers are resolved specially since
// neither involves choosing among competing Sends. A Read with no Send
// candidate at all still has one possible answer: the location's
// memory initializer, for the case nothing has written it yet.
func (e *Engine) resolveRequest(req *event.Event) (*event.Event, Decision) {
	if req.Label.Kind() == event.Lock && req.Label.IsReentry {
		resp := event.NewLockResponse(req.Label.MutexID, true, req.Label.ReentrancyDepth, req.Label.IsSynthetic)
		return e.appendSelfSourcedResponse(req, resp)
	}
	if req.Label.Kind() == event.ThreadJoin {
		return e.resolveThreadJoin(req)
	}

	candidates := e.sortSendCandidates(req, e.findSendCandidates(req))
	if len(candidates) == 0 {
		if req.Label.Kind() == event.Read {
			return e.resolveInitialRead(req)
		}
		e.dangling[req.Id] = req
		return nil, DecisionContinue
	}

	var chosen *event.Event
	decision := DecisionContinue
	for i, send := range candidates {
		resp, ok, err := e.createResponseCandidate(req, send, i == 0)
		if err != nil {
			log.Warn().Err(err).Msg("engine: building response candidate")
			continue
		}
		if !ok {
			continue
		}
		if i == 0 {
			decision = e.appendEvent(resp)
			e.markConsumed(send, req)
			chosen = resp
		}
	}
	if chosen != nil {
		return chosen, decision
	}
	e.dangling[req.Id] = req
	return nil, DecisionContinue
}

// resolveInitialRead synthesizes a Read-Response directly from the
// location's memory initializer when no Write precedes it at all — the
// value a thread observes reading a location nothing has written yet.
// A location whose initializer cannot be found (no Initialization or
// ObjectAllocation event governs it) is left dangling as before.
func (e *Engine) resolveInitialRead(req *event.Event) (*event.Event, Decision) {
	init := e.memoryInitializerFor(req.Label.Location)
	if init == nil {
		e.dangling[req.Id] = req
		return nil, DecisionContinue
	}
	resp := event.NewReadResponse(req.Label.Location, init(req.Label.Location), req.Label.IsExclusive, req.Label.CodeLocation)
	return e.appendSelfSourcedResponse(req, resp)
}

// propagateSend is called right after a Send is appended: it looks for
// currently-dangling Requests this Send can now answer.
// Write, broadcast Notify and ThreadFork are handled separately because
// they are not exclusive: a single write can satisfy every
// currently-dangling read of its location, a broadcast notify every
// current waiter, and a fork the start request of each thread it names,
// all at once with no competition between them.
func (e *Engine) propagateSend(send *event.Event) Decision {
	if send.Label.Kind() == event.ThreadFinish {
		return e.propagateThreadFinish(send)
	}

	candidates := e.sortDanglingRequests(e.findDanglingRequestsFor(send))
	if len(candidates) == 0 {
		return DecisionContinue
	}

	decision := DecisionContinue
	shared := send.Label.Kind() == event.Write || send.Label.Kind() == event.ThreadFork ||
		(send.Label.Kind() == event.Notify && send.Label.IsBroadcast)
	if shared {
		for _, req := range candidates {
			resp, ok, err := e.createResponseCandidate(req, send, true)
			if err != nil || !ok {
				continue
			}
			decision = combineDecision(decision, e.appendEvent(resp))
			delete(e.dangling, req.Id)
			e.markConsumed(send, req)
		}
		return decision
	}

	committed := false
	for _, req := range candidates {
		resp, ok, err := e.createResponseCandidate(req, send, !committed)
		if err != nil || !ok {
			continue
		}
		if !committed {
			decision = e.appendEvent(resp)
			delete(e.dangling, req.Id)
			e.markConsumed(send, req)
			committed = true
		}
	}
	return decision
}

func (e *Engine) appendSelfSourcedResponse(req *event.Event, label event.Label) (*event.Event, Decision) {
	pos := req.ThreadPosition + 1
	ev := e.arena.Create(req.ThreadId, pos, label, req.Id, true, nil)
	ev.Source = req.Id
	ev.HasSource = true
	return ev, e.appendEvent(ev)
}

func (e *Engine) markConsumed(send, req *event.Event) {
	switch req.Label.Kind() {
	case event.Lock, event.Wait, event.Park, event.CoroutineSuspend:
		e.consumedSends[send.Id] = true
	case event.ThreadStart:
		set, ok := e.consumedForkTargets[send.Id]
		if !ok {
			set = make(map[event.ThreadID]bool)
			e.consumedForkTargets[send.Id] = set
		}
		set[req.Label.TargetThread] = true
	}
}

// findSendCandidates returns, for a Request, every Send already in the
// execution that could answer it right now.
func (e *Engine) findSendCandidates(req *event.Event) []*event.Event {
	switch req.Label.Kind() {
	case event.Read:
		return e.exec.Index().GetWrites(req.Label.Location)
	case event.Lock:
		var out []*event.Event
		for _, ev := range e.exec.All() {
			if ev.Label.Kind() == event.Unlock && ev.Label.MutexID == req.Label.MutexID && !e.consumedSends[ev.Id] {
				out = append(out, ev)
			}
		}
		return out
	case event.Wait:
		var out []*event.Event
		for _, ev := range e.exec.All() {
			if ev.Label.Kind() == event.Notify && ev.Label.MutexID == req.Label.MutexID && !e.consumedSends[ev.Id] {
				out = append(out, ev)
			}
		}
		return out
	case event.Park:
		var out []*event.Event
		for _, ev := range e.exec.All() {
			if ev.Label.Kind() == event.Unpark && ev.Label.UnparkingThread == req.ThreadId && !e.consumedSends[ev.Id] {
				out = append(out, ev)
			}
		}
		return out
	case event.ThreadStart:
		var out []*event.Event
		for _, ev := range e.exec.All() {
			if ev.Label.Kind() != event.ThreadFork {
				continue
			}
			if !containsThreadID(ev.Label.ForkThreadIDs, req.Label.TargetThread) {
				continue
			}
			if e.consumedForkTargets[ev.Id] != nil && e.consumedForkTargets[ev.Id][req.Label.TargetThread] {
				continue
			}
			out = append(out, ev)
		}
		return out
	case event.CoroutineSuspend:
		var out []*event.Event
		for _, ev := range e.exec.All() {
			if ev.Label.Kind() == event.CoroutineResume && ev.Label.TargetThread == req.Label.TargetThread &&
				ev.Label.ActorID == req.Label.ActorID && !e.consumedSends[ev.Id] {
				out = append(out, ev)
			}
		}
		return out
	default:
		return nil
	}
}

// findDanglingRequestsFor returns every currently-dangling Request that
// send could answer (the mirror image of findSendCandidates).
func (e *Engine) findDanglingRequestsFor(send *event.Event) []*event.Event {
	var out []*event.Event
	for _, req := range e.dangling {
		switch {
		case send.Label.Kind() == event.Write && req.Label.Kind() == event.Read && send.Label.Location == req.Label.Location:
			out = append(out, req)
		case send.Label.Kind() == event.Unlock && req.Label.Kind() == event.Lock && send.Label.MutexID == req.Label.MutexID:
			out = append(out, req)
		case send.Label.Kind() == event.Notify && req.Label.Kind() == event.Wait && send.Label.MutexID == req.Label.MutexID:
			out = append(out, req)
		case send.Label.Kind() == event.Unpark && req.Label.Kind() == event.Park && send.Label.UnparkingThread == req.ThreadId:
			out = append(out, req)
		case send.Label.Kind() == event.ThreadFork && req.Label.Kind() == event.ThreadStart && containsThreadID(send.Label.ForkThreadIDs, req.Label.TargetThread):
			out = append(out, req)
		case send.Label.Kind() == event.CoroutineResume && req.Label.Kind() == event.CoroutineSuspend &&
			send.Label.TargetThread == req.Label.TargetThread && send.Label.ActorID == req.Label.ActorID:
			out = append(out, req)
		}
	}
	return out
}

// sortSendCandidates orders Send candidates so index 0 is the one that
// should be chosen now. Reads pick the most-recently-written value (the
// usual sequential behavior); everything else picks the
// earliest-available Send (fairness among contenders).
func (e *Engine) sortSendCandidates(req *event.Event, candidates []*event.Event) []*event.Event {
	out := append([]*event.Event(nil), candidates...)
	descending := req.Label.Kind() == event.Read
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			less := out[j-1].Id > out[j].Id
			if descending {
				less = out[j-1].Id < out[j].Id
			}
			if !less {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func (e *Engine) sortDanglingRequests(reqs []*event.Event) []*event.Event {
	out := append([]*event.Event(nil), reqs...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Id > out[j].Id; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func containsThreadID(ids []event.ThreadID, id event.ThreadID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
