// Package event defines the atomic thread actions an exploration
// reasons about: a sealed tagged union of labels, their derived flags,
// and the synchronization algebra ⊕ that combines a Send label with a
// Request label to produce a Response label.
package event

import (
	"fmt"

	"github.com/loomcheck/loomcheck/location"
)

// ThreadID names one of the fixed threads spawned by the test harness.
type ThreadID int

// Kind distinguishes the label families.
type Kind int

const (
	Initialization Kind = iota
	ObjectAllocation
	Read
	Write
	Lock
	Unlock
	Wait
	Notify
	Park
	Unpark
	ThreadStart
	ThreadFinish
	ThreadFork
	ThreadJoin
	CoroutineSuspend
	CoroutineResume
	ActorSpan
	Random
)

func (k Kind) String() string {
	names := [...]string{
		"Initialization", "ObjectAllocation", "Read", "Write", "Lock", "Unlock",
		"Wait", "Notify", "Park", "Unpark", "ThreadStart", "ThreadFinish",
		"ThreadFork", "ThreadJoin", "CoroutineSuspend", "CoroutineResume",
		"ActorSpan", "Random",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}
	return names[k]
}

// Phase distinguishes Request/Response-carrying labels from one-shot
// and Send labels.
type Phase int

const (
	// NoPhase: label is one-shot (Write, ObjectAllocation, Initialization,
	// ThreadFork, Notify, Unlock, Unpark, ThreadFinish, Random, ActorSpan).
	NoPhase Phase = iota
	Request
	Response
)

func (p Phase) String() string {
	switch p {
	case Request:
		return "Request"
	case Response:
		return "Response"
	default:
		return "-"
	}
}

// SyncType classifies how a Request label's Response is produced.
type SyncType int

const (
	NoSync SyncType = iota
	Binary
	Barrier
)

// ActorSpanKind distinguishes the two ActorSpan variants.
type ActorSpanKind int

const (
	ActorStart ActorSpanKind = iota
	ActorEnd
)

// MemoryInitializerFunc supplies the value a memory location holds
// before any Write reaches it. Initialization carries the one that
// governs static fields; each ObjectAllocation carries the one that
// governs its own instance's fields — together they cover every
// Location an Initialization or ObjectAllocation event brings into
// existence.
type MemoryInitializerFunc func(loc location.Location) location.Value

// Label is the sealed tagged union of an event's payload. Only the
// fields relevant to Kind are meaningful; construct via the NewXxx
// helpers rather than the zero value.
type Label struct {
	kind Kind

	// Initialization
	InitThreadID ThreadID
	MainThreadID ThreadID

	// Read / Write
	Location      location.Location
	Value         location.Value
	IsExclusive   bool
	CodeLocation  CodeLocation

	// ObjectAllocation
	Object    location.ObjectID
	ClassName string

	// Initialization / ObjectAllocation
	MemoryInitializer MemoryInitializerFunc

	// Lock / Unlock / Wait
	MutexID         int64
	IsReentry       bool
	ReentrancyDepth int
	IsSynthetic     bool

	// Notify
	IsBroadcast bool

	// Park / Unpark / ThreadStart / ThreadFinish
	TargetThread    ThreadID
	UnparkingThread ThreadID

	// ThreadFork / ThreadJoin
	ForkThreadIDs []ThreadID
	JoinThreadIDs []ThreadID

	// CoroutineSuspend / CoroutineResume
	ActorID            int64
	PromptCancellation bool

	// ActorSpan
	ActorSpanKind ActorSpanKind
	Actor         any

	// Random
	RandomValue int64

	phase Phase
}

// CodeLocation is the (filename, class, method, line) token every
// inward callback supplies.
type CodeLocation struct {
	Filename string
	Class    string
	Method   string
	Line     int
}

func (c CodeLocation) String() string {
	return fmt.Sprintf("%s.%s(%s:%d)", c.Class, c.Method, c.Filename, c.Line)
}

func (l Label) Kind() Kind   { return l.kind }
func (l Label) Phase() Phase { return l.phase }

// --- derived flags ---

func (l Label) IsRequest() bool  { return l.phase == Request }
func (l Label) IsResponse() bool { return l.phase == Response }

// IsSend reports whether this label can act as the left operand of ⊕:
// a one-shot label that may synchronize with some Request.
func (l Label) IsSend() bool {
	if l.phase != NoPhase {
		return false
	}
	switch l.kind {
	case Write, Unlock, Notify, Unpark, ThreadFinish, ThreadFork, CoroutineResume:
		return true
	default:
		return false
	}
}

// IsBlocking reports whether this label, while a Request, blocks its
// thread until a Response synchronizes with it.
func (l Label) IsBlocking() bool {
	if l.phase != Request {
		return false
	}
	switch l.kind {
	case Read, Lock, Wait, Park, ThreadStart, ThreadJoin, CoroutineSuspend:
		return true
	default:
		return false
	}
}

// IsUnblocked reports whether this label is the Response that releases
// a previously blocked Request.
func (l Label) IsUnblocked() bool { return l.phase == Response }

// SyncType reports how this Request label's Response is produced.
func (l Label) SyncType() SyncType {
	if l.phase != Request {
		return NoSync
	}
	if l.kind == ThreadJoin {
		return Barrier
	}
	return Binary
}

func (l Label) String() string {
	if l.phase == NoPhase {
		return l.kind.String()
	}
	return fmt.Sprintf("%s(%s)", l.kind, l.phase)
}

// --- constructors ---

func NewInitialization(initThread, mainThread ThreadID, initializer MemoryInitializerFunc) Label {
	return Label{kind: Initialization, InitThreadID: initThread, MainThreadID: mainThread, MemoryInitializer: initializer}
}

func NewObjectAllocation(obj location.ObjectID, className string, initializer MemoryInitializerFunc) Label {
	return Label{kind: ObjectAllocation, Object: obj, ClassName: className, MemoryInitializer: initializer}
}

func NewReadRequest(loc location.Location, exclusive bool, cl CodeLocation) Label {
	return Label{kind: Read, phase: Request, Location: loc, IsExclusive: exclusive, CodeLocation: cl}
}

func NewReadResponse(loc location.Location, v location.Value, exclusive bool, cl CodeLocation) Label {
	return Label{kind: Read, phase: Response, Location: loc, Value: v, IsExclusive: exclusive, CodeLocation: cl}
}

func NewWrite(loc location.Location, v location.Value, exclusive bool, cl CodeLocation) Label {
	return Label{kind: Write, Location: loc, Value: v, IsExclusive: exclusive, CodeLocation: cl}
}

func NewLockRequest(mutex int64, reentry bool, depth int, synthetic bool) Label {
	return Label{kind: Lock, phase: Request, MutexID: mutex, IsReentry: reentry, ReentrancyDepth: depth, IsSynthetic: synthetic}
}

func NewLockResponse(mutex int64, reentry bool, depth int, synthetic bool) Label {
	return Label{kind: Lock, phase: Response, MutexID: mutex, IsReentry: reentry, ReentrancyDepth: depth, IsSynthetic: synthetic}
}

func NewUnlock(mutex int64, reentry bool, depth int, synthetic bool) Label {
	return Label{kind: Unlock, MutexID: mutex, IsReentry: reentry, ReentrancyDepth: depth, IsSynthetic: synthetic}
}

func NewWaitRequest(mutex int64) Label {
	return Label{kind: Wait, phase: Request, MutexID: mutex}
}

func NewWaitResponse(mutex int64) Label {
	return Label{kind: Wait, phase: Response, MutexID: mutex}
}

func NewNotify(mutex int64, broadcast bool) Label {
	return Label{kind: Notify, MutexID: mutex, IsBroadcast: broadcast}
}

func NewParkRequest(thread ThreadID) Label {
	return Label{kind: Park, phase: Request, TargetThread: thread}
}

func NewParkResponse(thread ThreadID) Label {
	return Label{kind: Park, phase: Response, TargetThread: thread}
}

func NewUnpark(unparkingThread ThreadID) Label {
	return Label{kind: Unpark, UnparkingThread: unparkingThread}
}

func NewThreadStartRequest(thread ThreadID) Label {
	return Label{kind: ThreadStart, phase: Request, TargetThread: thread}
}

func NewThreadStartResponse(thread ThreadID) Label {
	return Label{kind: ThreadStart, phase: Response, TargetThread: thread}
}

func NewThreadFinish(thread ThreadID) Label {
	return Label{kind: ThreadFinish, TargetThread: thread}
}

func NewThreadFork(ids []ThreadID) Label {
	return Label{kind: ThreadFork, ForkThreadIDs: append([]ThreadID(nil), ids...)}
}

func NewThreadJoinRequest(ids []ThreadID) Label {
	return Label{kind: ThreadJoin, phase: Request, JoinThreadIDs: append([]ThreadID(nil), ids...)}
}

func NewThreadJoinResponse() Label {
	return Label{kind: ThreadJoin, phase: Response}
}

func NewCoroutineSuspendRequest(thread ThreadID, actor int64, promptCancel bool) Label {
	return Label{kind: CoroutineSuspend, phase: Request, TargetThread: thread, ActorID: actor, PromptCancellation: promptCancel}
}

func NewCoroutineSuspendResponse(thread ThreadID, actor int64) Label {
	return Label{kind: CoroutineSuspend, phase: Response, TargetThread: thread, ActorID: actor}
}

func NewCoroutineResume(thread ThreadID, actor int64) Label {
	return Label{kind: CoroutineResume, TargetThread: thread, ActorID: actor}
}

func NewActorSpan(kind ActorSpanKind, thread ThreadID, actor any) Label {
	return Label{kind: ActorSpan, ActorSpanKind: kind, TargetThread: thread, Actor: actor}
}

func NewRandom(value int64) Label {
	return Label{kind: Random, RandomValue: value}
}
