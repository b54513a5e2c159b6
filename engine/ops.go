package engine

import (
	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/location"
)

// AddWriteEvent records a write to loc and wakes any thread currently
// blocked reading it.
func (e *Engine) AddWriteEvent(tid event.ThreadID, loc location.Location, v location.Value, exclusive bool, cl event.CodeLocation) (*event.Event, Decision) {
	return e.appendSend(tid, event.NewWrite(loc, v, exclusive, cl))
}

// AddReadEvent records a read-request and returns its response if one
// resolved immediately, or nil if the thread is now blocked.
func (e *Engine) AddReadEvent(tid event.ThreadID, loc location.Location, exclusive bool, cl event.CodeLocation) (*event.Event, *event.Event, Decision) {
	return e.appendRequest(tid, event.NewReadRequest(loc, exclusive, cl))
}

// AddLockRequestEvent requests mutex, resolving immediately against a
// free or compatible-reentrant lock.
func (e *Engine) AddLockRequestEvent(tid event.ThreadID, mutex int64, reentry bool, depth int, synthetic bool) (*event.Event, *event.Event, Decision) {
	return e.appendRequest(tid, event.NewLockRequest(mutex, reentry, depth, synthetic))
}

// AddUnlockEvent records an unlock, waking any thread blocked acquiring
// the same mutex.
func (e *Engine) AddUnlockEvent(tid event.ThreadID, mutex int64, reentry bool, depth int, synthetic bool) (*event.Event, Decision) {
	return e.appendSend(tid, event.NewUnlock(mutex, reentry, depth, synthetic))
}

// AddWaitRequestEvent requests to wait on mutex's condition.
func (e *Engine) AddWaitRequestEvent(tid event.ThreadID, mutex int64) (*event.Event, *event.Event, Decision) {
	return e.appendRequest(tid, event.NewWaitRequest(mutex))
}

// AddNotifyEvent records a notify, waking up to every thread currently
// waiting (when broadcast) or exactly one (otherwise) — the engine
// resolves only as many as it can immediately, leaving the rest
// dangling for the next notify.
func (e *Engine) AddNotifyEvent(tid event.ThreadID, mutex int64, broadcast bool) (*event.Event, Decision) {
	return e.appendSend(tid, event.NewNotify(mutex, broadcast))
}

// AddParkRequestEvent requests that tid park until unparked.
func (e *Engine) AddParkRequestEvent(tid event.ThreadID) (*event.Event, *event.Event, Decision) {
	return e.appendRequest(tid, event.NewParkRequest(tid))
}

// AddUnparkEvent records tid unparking target.
func (e *Engine) AddUnparkEvent(tid, target event.ThreadID) (*event.Event, Decision) {
	return e.appendSend(tid, event.NewUnpark(target))
}

// AddThreadStartRequestEvent requests that tid begin running, resolving
// immediately if a ThreadFork already named it.
func (e *Engine) AddThreadStartRequestEvent(tid event.ThreadID) (*event.Event, *event.Event, Decision) {
	return e.appendRequest(tid, event.NewThreadStartRequest(tid))
}

// AddThreadFinishEvent records tid finishing, waking any join barrier
// it completes.
func (e *Engine) AddThreadFinishEvent(tid event.ThreadID) (*event.Event, Decision) {
	return e.appendSend(tid, event.NewThreadFinish(tid))
}

// AddThreadForkEvent records tid spawning the given threads.
func (e *Engine) AddThreadForkEvent(tid event.ThreadID, spawned []event.ThreadID) (*event.Event, Decision) {
	return e.appendSend(tid, event.NewThreadFork(spawned))
}

// AddThreadJoinRequestEvent requests that tid block until every thread
// in ids has finished.
func (e *Engine) AddThreadJoinRequestEvent(tid event.ThreadID, ids []event.ThreadID) (*event.Event, *event.Event, Decision) {
	return e.appendRequest(tid, event.NewThreadJoinRequest(ids))
}

// AddCoroutineSuspendRequestEvent requests that actor suspend on tid.
func (e *Engine) AddCoroutineSuspendRequestEvent(tid event.ThreadID, actor int64, promptCancel bool) (*event.Event, *event.Event, Decision) {
	return e.appendRequest(tid, event.NewCoroutineSuspendRequest(tid, actor, promptCancel))
}

// AddCoroutineResumeEvent records tid resuming actor.
func (e *Engine) AddCoroutineResumeEvent(tid event.ThreadID, actor int64) (*event.Event, Decision) {
	return e.appendSend(tid, event.NewCoroutineResume(tid, actor))
}

// AddObjectAllocationEvent records the allocation of obj, an instance of
// className, and the initializer that governs every field of obj a Read
// reaches before any Write does.
func (e *Engine) AddObjectAllocationEvent(tid event.ThreadID, obj location.ObjectID, className string, initializer event.MemoryInitializerFunc) (*event.Event, Decision) {
	ev, d := e.appendSimple(tid, event.NewObjectAllocation(obj, className, initializer))
	ev.Allocation = ev.Id
	ev.HasAllocation = true
	return ev, d
}

// AddRandomEvent records a random-choice outcome.
func (e *Engine) AddRandomEvent(tid event.ThreadID, value int64) (*event.Event, Decision) {
	return e.appendSimple(tid, event.NewRandom(value))
}

// AddActorSpanEvent records the start or end of an actor method span,
// used purely for progress reporting and replay-trace readability.
func (e *Engine) AddActorSpanEvent(tid event.ThreadID, kind event.ActorSpanKind, actor any) (*event.Event, Decision) {
	return e.appendSimple(tid, event.NewActorSpan(kind, tid, actor))
}
