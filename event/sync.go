package event

import "fmt"

// Sync implements the synchronization algebra ⊕: a partial binary
// operator on labels, total on the pairs it defines and undefined
// (ok=false) on everything else. send must satisfy send.IsSend() and
// req must satisfy req.IsRequest(); the caller is responsible for
// filtering candidates down to matching resource ids (same location,
// same mutex, …) before calling Sync — Sync itself only checks kind
// compatibility and resource-id equality as a final guard.
func Sync(send, req Label) (resp Label, ok bool) {
	if !send.IsSend() || !req.IsRequest() {
		return Label{}, false
	}

	switch {
	case send.kind == Write && req.kind == Read:
		if send.Location != req.Location {
			return Label{}, false
		}
		return NewReadResponse(req.Location, send.Value, req.IsExclusive, req.CodeLocation), true

	case send.kind == Unlock && req.kind == Lock:
		if send.MutexID != req.MutexID {
			return Label{}, false
		}
		return NewLockResponse(req.MutexID, req.IsReentry, req.ReentrancyDepth, req.IsSynthetic), true

	case send.kind == Notify && req.kind == Wait:
		if send.MutexID != req.MutexID {
			return Label{}, false
		}
		return NewWaitResponse(req.MutexID), true

	case send.kind == Unpark && req.kind == Park:
		if send.UnparkingThread != req.TargetThread {
			return Label{}, false
		}
		return NewParkResponse(req.TargetThread), true

	case send.kind == ThreadFork && req.kind == ThreadStart:
		if !containsThread(send.ForkThreadIDs, req.TargetThread) {
			return Label{}, false
		}
		return NewThreadStartResponse(req.TargetThread), true

	case send.kind == CoroutineResume && req.kind == CoroutineSuspend:
		if send.TargetThread != req.TargetThread || send.ActorID != req.ActorID {
			return Label{}, false
		}
		return NewCoroutineSuspendResponse(req.TargetThread, req.ActorID), true

	default:
		return Label{}, false
	}
}

// SyncThreadFinish implements the barrier reduction
// ThreadFinish(t) ⊕ ThreadJoinRequest(S∋t) = ThreadJoinRequest(S∖{t}),
// promoted to ThreadJoinResponse once S becomes empty. Unlike the
// binary cases above this can be applied repeatedly (once per
// finishing thread), so it is exposed as its own function rather than
// folded into Sync.
func SyncThreadFinish(finish Label, join Label) (reduced Label, ok bool) {
	if finish.kind != ThreadFinish || join.kind != ThreadJoin || join.phase != Request {
		return Label{}, false
	}
	if !containsThread(join.JoinThreadIDs, finish.TargetThread) {
		return Label{}, false
	}
	remaining := make([]ThreadID, 0, len(join.JoinThreadIDs))
	for _, id := range join.JoinThreadIDs {
		if id != finish.TargetThread {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return NewThreadJoinResponse(), true
	}
	return NewThreadJoinRequest(remaining), true
}

func containsThread(ids []ThreadID, id ThreadID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// MustSync is a test/debug helper that panics on an undefined pairing.
func MustSync(send, req Label) Label {
	resp, ok := Sync(send, req)
	if !ok {
		panic(fmt.Sprintf("event: undefined synchronization %s ⊕ %s", send, req))
	}
	return resp
}
