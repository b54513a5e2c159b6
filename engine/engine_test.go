package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/location"
)

func newTestEngine() *Engine {
	return NewEngine(nil, nil, DefaultConfig(), nil, nil, nil, nil)
}

func newTestEngineWithInit(init MemoryInitializer) *Engine {
	return NewEngine(nil, nil, DefaultConfig(), nil, init, nil, nil)
}

func TestEngine_WriteThenRead_ResolvesImmediately(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)
	loc := location.NewStaticField("Counter", "value")

	eng.AddWriteEvent(0, loc, location.Prim(int32(1)), false, event.CodeLocation{})
	_, resp, _ := eng.AddReadEvent(1, loc, false, event.CodeLocation{})

	require.NotNil(t, resp)
	require.Equal(t, location.Prim(int32(1)), resp.Label.Value)
	require.Nil(t, eng.checkConsistency())
}

func TestEngine_ReadBeforeWrite_ResolvesOnPropagate(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)
	loc := location.NewStaticField("X", "f")

	_, resp, _ := eng.AddReadEvent(1, loc, false, event.CodeLocation{})
	require.Nil(t, resp, "no write yet, thread 1 should block")

	eng.AddWriteEvent(0, loc, location.Prim(int32(7)), false, event.CodeLocation{})

	last, ok := eng.Execution().Last(1)
	require.True(t, ok)
	require.True(t, last.Label.IsResponse())
	require.Equal(t, location.Prim(int32(7)), last.Label.Value)
}

func TestEngine_MultipleWrites_BacktracksToEarlierWrite(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)
	loc := location.NewStaticField("X", "f")

	eng.AddWriteEvent(0, loc, location.Prim(int32(1)), false, event.CodeLocation{})
	eng.AddWriteEvent(0, loc, location.Prim(int32(2)), false, event.CodeLocation{})
	_, resp, _ := eng.AddReadEvent(1, loc, false, event.CodeLocation{})

	require.NotNil(t, resp)
	require.Equal(t, location.Prim(int32(2)), resp.Label.Value, "the latest write answers the read by default")
	require.Greater(t, eng.BacktrackingPointsRemaining(), 0)

	require.True(t, eng.startNextExploration())
	last, ok := eng.Execution().Last(1)
	require.True(t, ok)
	require.Equal(t, location.Prim(int32(1)), last.Label.Value, "backtracking explores the earlier write")
}

func TestEngine_LockContention_SecondWaiterBlocksThenWakes(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)
	const mutex = int64(1)

	eng.AddUnlockEvent(2, mutex, false, 0, true) // synthetic: mutex starts unlocked
	_, resp0, _ := eng.AddLockRequestEvent(0, mutex, false, 0, false)
	require.NotNil(t, resp0)

	_, resp1, _ := eng.AddLockRequestEvent(1, mutex, false, 0, false)
	require.Nil(t, resp1, "mutex is already held by thread 0")

	eng.AddUnlockEvent(0, mutex, false, 0, false)

	last, ok := eng.Execution().Last(1)
	require.True(t, ok)
	require.True(t, last.Label.IsResponse())
}

func TestEngine_LockReentry_SelfSourced(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)
	const mutex = int64(7)

	_, resp, _ := eng.AddLockRequestEvent(0, mutex, true, 1, false)
	require.NotNil(t, resp, "a re-entrant acquire always resolves immediately")
	require.True(t, resp.HasSource)
}

func TestEngine_ParkUnpark(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)

	_, resp, _ := eng.AddParkRequestEvent(1)
	require.Nil(t, resp)

	eng.AddUnparkEvent(0, 1)

	last, ok := eng.Execution().Last(1)
	require.True(t, ok)
	require.True(t, last.Label.IsResponse())
}

func TestEngine_ThreadForkStartFinishJoin(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)

	eng.AddThreadForkEvent(0, []event.ThreadID{1, 2})
	_, start1, _ := eng.AddThreadStartRequestEvent(1)
	require.NotNil(t, start1)
	_, start2, _ := eng.AddThreadStartRequestEvent(2)
	require.NotNil(t, start2)

	_, joinResp, _ := eng.AddThreadJoinRequestEvent(0, []event.ThreadID{1, 2})
	require.Nil(t, joinResp, "neither spawned thread has finished yet")

	eng.AddThreadFinishEvent(1)
	last, ok := eng.Execution().Last(0)
	require.True(t, ok)
	require.False(t, last.Label.IsResponse(), "still waiting on thread 2")

	eng.AddThreadFinishEvent(2)
	last, ok = eng.Execution().Last(0)
	require.True(t, ok)
	require.True(t, last.Label.IsResponse(), "join completes once every joined thread has finished")
}

func TestEngine_CoroutineSuspendResume(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)

	_, resp, _ := eng.AddCoroutineSuspendRequestEvent(1, 42, false)
	require.Nil(t, resp)

	eng.AddCoroutineResumeEvent(0, 42)

	last, ok := eng.Execution().Last(1)
	require.True(t, ok)
	require.True(t, last.Label.IsResponse())
}

// TestEngine_S1_CounterRace_LostUpdate covers the flagship race: two
// threads each read a never-written counter location and must both
// observe its initial value, the precondition for a lost-update
// interleaving (both later write the same incremented value).
func TestEngine_S1_CounterRace_LostUpdate(t *testing.T) {
	eng := newTestEngineWithInit(func(location.Location) location.Value {
		return location.Prim(int32(0))
	})
	eng.initializeExploration(0, 0)
	counter := location.NewStaticField("Counter", "value")

	_, readA, _ := eng.AddReadEvent(0, counter, false, event.CodeLocation{})
	require.NotNil(t, readA, "thread 0 reads the initial value with no write in sight")
	require.Equal(t, location.Prim(int32(0)), readA.Label.Value)

	_, readB, _ := eng.AddReadEvent(1, counter, false, event.CodeLocation{})
	require.NotNil(t, readB, "thread 1 reads the same initial value independently")
	require.Equal(t, location.Prim(int32(0)), readB.Label.Value)

	eng.AddWriteEvent(0, counter, location.Prim(int32(1)), false, event.CodeLocation{})
	eng.AddWriteEvent(1, counter, location.Prim(int32(1)), false, event.CodeLocation{})

	require.Nil(t, eng.checkConsistency(), "both initial-value reads and both racing writes are each individually legal")
}

// TestEngine_S2_RelaxedPublication_ObservesInitialValue covers a reader
// that checks a publication flag before a writer has set it: the data
// location it reads is still un-written, so it must observe the
// initializer's value rather than block forever.
func TestEngine_S2_RelaxedPublication_ObservesInitialValue(t *testing.T) {
	eng := newTestEngineWithInit(func(location.Location) location.Value {
		return location.Prim(int32(0))
	})
	eng.initializeExploration(0, 0)
	data := location.NewStaticField("Publisher", "data")
	flag := location.NewStaticField("Publisher", "ready")

	_, dataRead, _ := eng.AddReadEvent(1, data, false, event.CodeLocation{})
	require.NotNil(t, dataRead, "reader gets through before the writer has published anything")
	require.Equal(t, location.Prim(int32(0)), dataRead.Label.Value, "data reads as its initial value")

	eng.AddWriteEvent(0, data, location.Prim(int32(42)), false, event.CodeLocation{})
	eng.AddWriteEvent(0, flag, location.Prim(true), false, event.CodeLocation{})

	_, flagRead, _ := eng.AddReadEvent(1, flag, false, event.CodeLocation{})
	require.NotNil(t, flagRead)
	require.Equal(t, location.Prim(true), flagRead.Label.Value)

	require.Nil(t, eng.checkConsistency())
}

// TestEngine_S3_Dekker_BothThreadsSeeOtherFlagFalse covers the entry
// protocol of Dekker's algorithm: each thread raises its own flag, then
// reads the other thread's. Thread 0's read runs ahead of thread 1's
// write and resolves against the initializer (false); thread 1's read
// comes after thread 0's write and sees flag0 raised.
func TestEngine_S3_Dekker_FirstReaderSeesOtherFlagFalse(t *testing.T) {
	eng := newTestEngineWithInit(func(location.Location) location.Value {
		return location.Prim(false)
	})
	eng.initializeExploration(0, 0)
	flag0 := location.NewStaticField("Dekker", "flag0")
	flag1 := location.NewStaticField("Dekker", "flag1")

	eng.AddWriteEvent(0, flag0, location.Prim(true), false, event.CodeLocation{})
	_, readFlag1, _ := eng.AddReadEvent(0, flag1, false, event.CodeLocation{})
	require.NotNil(t, readFlag1)
	require.Equal(t, location.Prim(false), readFlag1.Label.Value, "thread 0 enters believing thread 1 is not interested")

	eng.AddWriteEvent(1, flag1, location.Prim(true), false, event.CodeLocation{})
	_, readFlag0, _ := eng.AddReadEvent(1, flag0, false, event.CodeLocation{})
	require.NotNil(t, readFlag0)
	require.Equal(t, location.Prim(true), readFlag0.Label.Value, "thread 1's read happens after thread 0's write, so it sees flag0 raised")

	require.Nil(t, eng.checkConsistency())
}

// TestEngine_S6_SpinLoop_TriggersThreadSwitch covers the spin-bound
// cooperation path: a thread repeatedly re-reading a location nothing
// has written yet produces the same weak signature over and over, and
// once it recurs SpinBound times running the engine must ask the host
// strategy to switch threads instead of silently continuing forever.
func TestEngine_S6_SpinLoop_TriggersThreadSwitch(t *testing.T) {
	var switched []struct {
		tid    event.ThreadID
		reason SwitchReason
	}
	cfg := DefaultConfig()
	cfg.SpinBound = 3
	eng := NewEngine(nil, nil, cfg, nil,
		func(location.Location) location.Value { return location.Prim(int32(0)) },
		func(tid event.ThreadID, reason SwitchReason) {
			switched = append(switched, struct {
				tid    event.ThreadID
				reason SwitchReason
			}{tid, reason})
		},
		nil,
	)
	eng.initializeExploration(0, 0)
	loc := location.NewStaticField("Flag", "done")

	var lastDecision Decision
	for i := 0; i < 3; i++ {
		_, _, lastDecision = eng.AddReadEvent(0, loc, false, event.CodeLocation{})
	}
	require.Equal(t, DecisionSwitch, lastDecision, "re-reading an unwritten location SpinBound times running must ask for a switch")
	require.NotEmpty(t, switched)
	require.Equal(t, ReasonSpinBound, switched[len(switched)-1].reason)
	require.Equal(t, event.ThreadID(0), switched[len(switched)-1].tid)

	eng.AddWriteEvent(1, loc, location.Prim(int32(1)), false, event.CodeLocation{})
	_, resp, decision := eng.AddReadEvent(0, loc, false, event.CodeLocation{})
	require.NotNil(t, resp)
	require.Equal(t, location.Prim(int32(1)), resp.Label.Value, "a write from another thread finally lets the spinning thread observe a new value")
	require.Equal(t, DecisionContinue, decision, "the interleaving write resets spin detection")
}

func TestLoopDetector_FlagsRepeatingSignature(t *testing.T) {
	d := NewLoopDetector(3)
	arena := event.NewArena()
	loc := location.NewStaticField("X", "f")

	var spinning bool
	for i := 0; i < 3; i++ {
		ev := arena.Create(0, i, event.NewWrite(loc, location.Prim(int32(i)), false, event.CodeLocation{}), 0, false, nil)
		spinning = d.Observe(ev)
	}
	require.True(t, spinning)
}

func TestLoopDetector_ResetsOnDifferentSignature(t *testing.T) {
	d := NewLoopDetector(3)
	arena := event.NewArena()
	loc := location.NewStaticField("X", "f")

	ev1 := arena.Create(0, 0, event.NewWrite(loc, location.Prim(int32(1)), false, event.CodeLocation{}), 0, false, nil)
	require.False(t, d.Observe(ev1))
	ev2 := arena.Create(0, 1, event.NewReadRequest(loc, false, event.CodeLocation{}), ev1.Id, true, nil)
	require.False(t, d.Observe(ev2))
}

func TestReplayOrder_SaveLoadRoundTrip(t *testing.T) {
	path := t.TempDir() + "/replay.msgpack"
	order := ReplayOrder{ThreadOrder: []event.ThreadID{0, 1, 0, 2}}

	require.NoError(t, order.Save(path))
	loaded, err := LoadReplayOrder(path)
	require.NoError(t, err)
	require.Equal(t, order.ThreadOrder, loaded.ThreadOrder)
}

func TestReplayer_NextAndAdvance(t *testing.T) {
	r := NewReplayer(ReplayOrder{ThreadOrder: []event.ThreadID{1, 0}})
	tid, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, event.ThreadID(1), tid)
	r.Advance()

	tid, ok = r.Next()
	require.True(t, ok)
	require.Equal(t, event.ThreadID(0), tid)
	r.Advance()

	require.True(t, r.Done())
	_, ok = r.Next()
	require.False(t, ok)
}

func TestEngine_NextReplayThread_DrivesThenExhausts(t *testing.T) {
	eng := newTestEngine()
	eng.AttachReplayer(ReplayOrder{ThreadOrder: []event.ThreadID{1, 0}})

	tid, ok := eng.NextReplayThread()
	require.True(t, ok)
	require.Equal(t, event.ThreadID(1), tid)

	tid, ok = eng.NextReplayThread()
	require.True(t, ok)
	require.Equal(t, event.ThreadID(0), tid)

	_, ok = eng.NextReplayThread()
	require.False(t, ok)
}

func TestEngine_CheckReplayThread_SignalsStrategySwitchOnMismatch(t *testing.T) {
	var switched []SwitchReason
	eng := NewEngine(nil, nil, DefaultConfig(), nil, nil,
		func(tid event.ThreadID, reason SwitchReason) { switched = append(switched, reason) },
		nil,
	)
	eng.initializeExploration(0, 0)
	eng.AttachReplayer(ReplayOrder{ThreadOrder: []event.ThreadID{1}})

	require.Equal(t, DecisionContinue, eng.CheckReplayThread(1), "the host strategy already picked the thread the replay expects")
	require.Equal(t, DecisionSwitch, eng.CheckReplayThread(0), "the host strategy picked a thread the replay does not expect next")
	require.Equal(t, []SwitchReason{ReasonStrategySwitch}, switched)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := t.TempDir() + "/engine.toml"
	require.NoError(t, os.WriteFile(path, []byte("max_events = 42\nverbose = true\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.MaxEvents)
	require.True(t, cfg.Verbose)
	require.Equal(t, DefaultConfig().SpinBound, cfg.SpinBound)
}

func TestEngine_AbortExploration_RollsBackToBoundary(t *testing.T) {
	eng := newTestEngine()
	eng.initializeExploration(0, 0)
	loc := location.NewStaticField("X", "f")

	boundary := eng.Execution().Frontier()
	eng.AddWriteEvent(0, loc, location.Prim(int32(1)), false, event.CodeLocation{})
	require.True(t, len(eng.Execution().All()) > 0)

	eng.abortExploration(boundary)
	last, ok := eng.Execution().Last(0)
	require.True(t, ok, "the Initialization event on thread 0 lies inside the boundary")
	require.Equal(t, event.Initialization, last.Label.Kind(), "the write should have been rolled back")
}
