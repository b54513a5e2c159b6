package engine

import (
	"github.com/loomcheck/loomcheck/event"
)

// LoopDetector flags a thread that keeps producing the same weak
// signature (label kind + location, ignoring the value) without any
// other thread making progress in between. There is no global state
// snapshot to hash here, so the signature is the repeating event itself:
// once it recurs SpinBound times in a row on one thread with no
// interleaving from any other thread, exploring further along this path
// is assumed to spin forever.
type LoopDetector struct {
	bound int

	haveLast  bool
	signature weakSignature
	streak    int
}

type weakSignature struct {
	thread   event.ThreadID
	kind     event.Kind
	location string
}

func NewLoopDetector(bound int) *LoopDetector {
	if bound <= 0 {
		bound = 3
	}
	return &LoopDetector{bound: bound}
}

// Observe records ev and reports whether the spin bound has now been
// reached.
func (d *LoopDetector) Observe(ev *event.Event) (spinning bool) {
	sig := weakSignature{thread: ev.ThreadId, kind: ev.Label.Kind()}
	if ev.Label.Kind() == event.Read || ev.Label.Kind() == event.Write {
		sig.location = ev.Label.Location.String()
	}

	if d.haveLast && sig == d.signature {
		d.streak++
	} else {
		d.signature = sig
		d.streak = 1
		d.haveLast = true
	}
	return d.streak >= d.bound
}

// Reset clears accumulated state, used when the engine resets the
// execution on backtrack: spin detection is per-path.
func (d *LoopDetector) Reset() {
	d.haveLast = false
	d.streak = 0
}
