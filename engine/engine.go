package engine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/execution"
	"github.com/loomcheck/loomcheck/location"
	"github.com/loomcheck/loomcheck/objreg"
)

// MemoryInitializer is the outward callback supplying the value a
// location holds before any Write reaches it — the host strategy's view
// of the program's actual starting memory, since the engine has no
// independent notion of it.
type MemoryInitializer func(loc location.Location) location.Value

// Engine is the exploration engine: it grows an Execution one event at a
// time, synchronizes Requests against Sends through the algebra in
// package event, and keeps a stack of backtracking points so a fresh
// call to startNextExploration can resume from any previously deferred
// alternative — DFS over a backtracking-point stack, deduped by causal
// conflict.
type Engine struct {
	arena   *event.Arena
	exec    *execution.Execution
	objects *objreg.Registry
	checker execution.ConsistencyChecker
	cfg     Config
	reporter Reporter
	loop    *LoopDetector

	initializer     MemoryInitializer
	onSwitch        ThreadSwitchCallback
	onInconsistency InconsistencyCallback

	replayer *Replayer

	backtrack backtrackStack
	pinned    map[event.ID]bool
	dangling  map[event.ID]*event.Event

	consumedSends       map[event.ID]bool
	consumedForkTargets map[event.ID]map[event.ThreadID]bool
	joinRemaining       map[event.ID]event.Label
	joinDeps            map[event.ID][]event.ID

	runID       uuid.UUID
	schedule    []event.ThreadID
	invocations int
}

// NewEngine constructs an Engine. checker may be nil, in which case
// only the built-in access-index-derived checks run. initializer,
// onSwitch and onInconsistency are the engine's three outward callbacks
// (spec'd in the external-interfaces section); any of them may be nil.
// A nil onSwitch or onInconsistency is replaced by a no-op. A nil
// initializer supplies no initial values: a Read with no prior Write
// stays blocked until a Write reaches it, and the sequential-consistency
// check accepts any read with no prior write.
func NewEngine(objects *objreg.Registry, checker execution.ConsistencyChecker, cfg Config, reporter Reporter, initializer MemoryInitializer, onSwitch ThreadSwitchCallback, onInconsistency InconsistencyCallback) *Engine {
	if reporter == nil {
		reporter = SilentReporter{}
	}
	if onSwitch == nil {
		onSwitch = func(event.ThreadID, SwitchReason) {}
	}
	if onInconsistency == nil {
		onInconsistency = func(*execution.Inconsistency) {}
	}
	return &Engine{
		objects:         objects,
		checker:         checker,
		cfg:             cfg,
		reporter:        reporter,
		loop:            NewLoopDetector(cfg.SpinBound),
		initializer:     initializer,
		onSwitch:        onSwitch,
		onInconsistency: onInconsistency,
	}
}

// initializeExploration resets all per-run state and appends the
// Initialization event, starting a brand-new exploration from scratch.
func (e *Engine) initializeExploration(mainThread, initThread event.ThreadID) {
	e.arena = event.NewArena()
	e.exec = execution.New(e.arena)
	e.pinned = make(map[event.ID]bool)
	e.dangling = make(map[event.ID]*event.Event)
	e.consumedSends = make(map[event.ID]bool)
	e.consumedForkTargets = make(map[event.ID]map[event.ThreadID]bool)
	e.joinRemaining = make(map[event.ID]event.Label)
	e.joinDeps = make(map[event.ID][]event.ID)
	e.backtrack = backtrackStack{}
	e.loop.Reset()
	e.replayer = nil
	e.runID = uuid.New()
	e.schedule = nil
	e.invocations = 0

	log.Debug().Str("run_id", e.runID.String()).Msg("engine: initializing exploration")
	e.appendSimple(initThread, event.NewInitialization(initThread, mainThread, event.MemoryInitializerFunc(e.initializer)))
}

// AttachReplayer arms the engine to drive its next exploration through
// a previously recorded schedule: the calling driver should consult
// NextReplayThread before each scheduling decision instead of picking a
// thread itself, falling back to its own strategy once it returns
// ok=false.
func (e *Engine) AttachReplayer(order ReplayOrder) {
	e.replayer = NewReplayer(order)
}

// NextReplayThread returns the next thread a previously attached
// replayer wants to run, advancing its position, or ok=false if no
// replayer is attached or the recorded order is exhausted.
func (e *Engine) NextReplayThread() (tid event.ThreadID, ok bool) {
	tid, ok = e.replayer.Next()
	if ok {
		e.replayer.Advance()
	}
	return tid, ok
}

// abortExploration discards everything the current exploration added
// beyond boundary without marking any backtracking point visited,
// because the run never reached quiescence.
func (e *Engine) abortExploration(boundary execution.Frontier) {
	e.exec.ResetToFrontier(boundary)
	e.rebuildBookkeeping()
	e.loop.Reset()
}

// startNextExploration pops the newest unvisited backtracking point,
// resets the execution to its stored frontier, restores pinned events
// and blocked requests, marks it visited, appends its event, and
// returns true — or returns false once every point has been explored.
func (e *Engine) startNextExploration() bool {
	p := e.backtrack.popNextUnvisited()
	if p == nil {
		return false
	}
	p.Visited = true

	e.exec.ResetToFrontier(p.Frontier)
	e.pinned = cloneIDSet(p.Pinned)
	e.rebuildBookkeeping()
	e.loop.Reset()

	e.exec.Append(p.Event)
	e.recordSchedule(p.Event)
	delete(e.dangling, p.Event.Parent)
	e.invocations++

	log.Debug().Str("run_id", e.runID.String()).Uint64("event", uint64(p.Event.Id)).
		Msg("engine: resumed from backtracking point")
	return true
}

// Schedule returns the thread-order this exploration has produced so
// far, the form persisted as a ReplayOrder.
func (e *Engine) Schedule() ReplayOrder {
	return ReplayOrder{ThreadOrder: append([]event.ThreadID(nil), e.schedule...)}
}

// Invocations reports how many startNextExploration calls have
// succeeded since the last initializeExploration.
func (e *Engine) Invocations() int { return e.invocations }

// BacktrackingPointsRemaining reports how many unvisited backtracking
// points are still on the stack.
func (e *Engine) BacktrackingPointsRemaining() int {
	n := 0
	for _, p := range e.backtrack.points {
		if !p.Visited {
			n++
		}
	}
	return n
}

// Execution exposes the current execution for consistency checking and
// test assertions.
func (e *Engine) Execution() *execution.Execution { return e.exec }

func (e *Engine) recordSchedule(ev *event.Event) {
	e.schedule = append(e.schedule, ev.ThreadId)
}

func cloneIDSet(m map[event.ID]bool) map[event.ID]bool {
	out := make(map[event.ID]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// checkConsistency runs the built-in sequential-consistency (aware of
// this run's memory initializer) and no-orphan-response checks, then
// the engine's pluggable checker (if any), in that order.
func (e *Engine) checkConsistency() *execution.Inconsistency {
	if inc := execution.NewSequentialConsistencyChecker(execution.Initializer(e.initializer)).Check(e.exec); inc != nil {
		return inc
	}
	if inc := execution.NoOrphanResponseChecker.Check(e.exec); inc != nil {
		return inc
	}
	if e.checker != nil {
		return e.checker.Check(e.exec)
	}
	return nil
}

// CheckConsistency runs the engine's consistency checks against the
// current execution and reports any failure through the
// InconsistencyCallback, returning the Decision the host strategy
// should act on.
func (e *Engine) CheckConsistency() Decision {
	if inc := e.checkConsistency(); inc != nil {
		return e.reportInconsistency(inc)
	}
	return DecisionContinue
}

// CheckReplayThread reports ReasonStrategySwitch when an attached
// replayer's recorded schedule wants a thread other than tid to run
// next, the STRATEGY_SWITCH half of the cooperation primitive.
func (e *Engine) CheckReplayThread(tid event.ThreadID) Decision {
	if e.replayer == nil {
		return DecisionContinue
	}
	want, ok := e.replayer.Next()
	if !ok || want == tid {
		return DecisionContinue
	}
	return e.signalSwitch(tid, ReasonStrategySwitch)
}

// signalSwitch reports an internal thread-switch signal to the host
// strategy through ThreadSwitchCallback and returns the Decision it
// implies for the calling event append.
func (e *Engine) signalSwitch(tid event.ThreadID, reason SwitchReason) Decision {
	e.onSwitch(tid, reason)
	return DecisionSwitch
}

// reportInconsistency reports a hard consistency failure through
// InconsistencyCallback and returns DecisionAbort.
func (e *Engine) reportInconsistency(inc *execution.Inconsistency) Decision {
	e.onInconsistency(inc)
	return DecisionAbort
}

// memoryInitializerFor finds the initializer that governs loc: the
// ObjectAllocation event that created loc's object, or the run's
// Initialization event for a static field (or any location whose
// owning allocation has since been backtracked away).
func (e *Engine) memoryInitializerFor(loc location.Location) event.MemoryInitializerFunc {
	if loc.Kind() != location.StaticField {
		for _, ev := range e.exec.All() {
			if ev.Label.Kind() == event.ObjectAllocation && ev.Label.Object == loc.Object {
				return ev.Label.MemoryInitializer
			}
		}
	}
	for _, ev := range e.exec.All() {
		if ev.Label.Kind() == event.Initialization {
			return ev.Label.MemoryInitializer
		}
	}
	return nil
}

// rebuildBookkeeping recomputes dangling requests and consumed-send
// tracking from the current (possibly just-truncated) execution lazily,
// rather than diffing it incrementally.
func (e *Engine) rebuildBookkeeping() {
	e.dangling = make(map[event.ID]*event.Event)
	e.consumedSends = make(map[event.ID]bool)
	e.consumedForkTargets = make(map[event.ID]map[event.ThreadID]bool)
	e.joinRemaining = make(map[event.ID]event.Label)
	e.joinDeps = make(map[event.ID][]event.ID)

	all := e.exec.All()
	for _, ev := range all {
		if ev.Label.IsResponse() && ev.HasSource {
			switch ev.Label.Kind() {
			case event.Lock, event.Wait, event.Park, event.CoroutineSuspend:
				e.consumedSends[ev.Source] = true
			case event.ThreadStart:
				set, ok := e.consumedForkTargets[ev.Source]
				if !ok {
					set = make(map[event.ThreadID]bool)
					e.consumedForkTargets[ev.Source] = set
				}
				set[ev.Label.TargetThread] = true
			}
		}
	}

	for _, req := range e.exec.GetDanglingRequests() {
		e.dangling[req.Id] = req
		if req.Label.Kind() == event.ThreadJoin {
			remaining := req.Label
			var deps []event.ID
			for _, ev := range all {
				if ev.Label.Kind() == event.ThreadFinish {
					if reduced, ok := event.SyncThreadFinish(ev.Label, remaining); ok {
						remaining = reduced
						deps = append(deps, ev.Id)
					}
				}
			}
			e.joinRemaining[req.Id] = remaining
			e.joinDeps[req.Id] = deps
		}
	}
}
