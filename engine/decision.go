package engine

import (
	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/execution"
)

// Decision is what the engine tells an inward callback to do next after
// recording the event it reported: keep running the calling thread,
// yield to another thread, or abort the exploration outright.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionSwitch
	DecisionAbort
)

func (d Decision) String() string {
	switch d {
	case DecisionSwitch:
		return "switch"
	case DecisionAbort:
		return "abort"
	default:
		return "continue"
	}
}

// combineDecision picks the more severe of two decisions: Abort beats Switch
// beats Continue.
func combineDecision(a, b Decision) Decision {
	if a == DecisionAbort || b == DecisionAbort {
		return DecisionAbort
	}
	if a == DecisionSwitch || b == DecisionSwitch {
		return DecisionSwitch
	}
	return DecisionContinue
}

// SwitchReason names why the engine asked for an internal thread
// switch.
type SwitchReason int

const (
	ReasonNone SwitchReason = iota
	// ReasonStrategySwitch fires when a replayed thread no longer
	// matches the thread the recorded schedule expects next.
	ReasonStrategySwitch
	// ReasonSpinBound fires when the LoopDetector's bound is hit.
	ReasonSpinBound
)

func (r SwitchReason) String() string {
	switch r {
	case ReasonStrategySwitch:
		return "STRATEGY_SWITCH"
	case ReasonSpinBound:
		return "SPIN_BOUND"
	default:
		return "NONE"
	}
}

// ThreadSwitchCallback is the outward cooperation primitive: the engine
// calls it to tell the host strategy that tid should yield and why,
// instead of deciding on its own which thread runs next.
type ThreadSwitchCallback func(tid event.ThreadID, reason SwitchReason)

// InconsistencyCallback reports a hard consistency failure to the host
// strategy so it can abort the run and surface it to the caller.
type InconsistencyCallback func(inc *execution.Inconsistency)
