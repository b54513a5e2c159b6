package engine

import (
	"fmt"
	"os"

	"github.com/shamaton/msgpack/v2"

	"github.com/loomcheck/loomcheck/event"
)

// ReplayOrder is the serializable record of one schedule: the sequence
// of threads the scheduler let act, in append order. Replaying it
// against a fresh exploration reproduces the same event sequence,
// because Sync is a pure function of the labels the instrumented
// program deterministically produces for a given thread interleaving.
type ReplayOrder struct {
	ThreadOrder []event.ThreadID `msgpack:"thread_order"`
}

// Save persists o to path (msgpack.MarshalWrite against an os.File).
func (o ReplayOrder) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("engine: creating replay log %s: %w", path, err)
	}
	defer f.Close()
	if err := msgpack.MarshalWrite(f, &o); err != nil {
		return fmt.Errorf("engine: writing replay log %s: %w", path, err)
	}
	return nil
}

// LoadReplayOrder reads back a ReplayOrder previously written by Save.
func LoadReplayOrder(path string) (ReplayOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReplayOrder{}, fmt.Errorf("engine: opening replay log %s: %w", path, err)
	}
	defer f.Close()
	var o ReplayOrder
	if err := msgpack.UnmarshalRead(f, &o); err != nil {
		return ReplayOrder{}, fmt.Errorf("engine: reading replay log %s: %w", path, err)
	}
	return o, nil
}

// Replayer drives an exploration through a previously recorded
// ReplayOrder until either it runs out (the engine switches back to
// live synchronization search) or a recorded thread cannot legally act
// next, at which point it signals a strategy switch.
type Replayer struct {
	order ReplayOrder
	pos   int
}

func NewReplayer(order ReplayOrder) *Replayer {
	return &Replayer{order: order}
}

// Next returns the next thread the replayer wants to run, or ok=false
// once the recorded order is exhausted.
func (r *Replayer) Next() (tid event.ThreadID, ok bool) {
	if r == nil || r.pos >= len(r.order.ThreadOrder) {
		return 0, false
	}
	tid = r.order.ThreadOrder[r.pos]
	return tid, true
}

// Advance records that the thread returned by Next was indeed run.
func (r *Replayer) Advance() {
	if r != nil {
		r.pos++
	}
}

// Done reports whether every recorded step has been replayed.
func (r *Replayer) Done() bool {
	return r == nil || r.pos >= len(r.order.ThreadOrder)
}

// StrategySwitchError describes a replayed thread that can no longer
// act as recorded. No engine method returns it: the engine reports a
// replay mismatch through CheckReplayThread's Decision and the
// ThreadSwitchCallback instead.
type StrategySwitchError struct {
	Thread event.ThreadID
	Reason string
}

func (e *StrategySwitchError) Error() string {
	return fmt.Sprintf("engine: replay strategy switch at thread %d: %s", e.Thread, e.Reason)
}
