package event

import (
	"testing"

	"github.com/loomcheck/loomcheck/location"
	"github.com/stretchr/testify/require"
)

func TestSync_WriteRead(t *testing.T) {
	loc := location.NewStaticField("X", "f")
	write := NewWrite(loc, location.Prim(int32(42)), false, CodeLocation{})
	read := NewReadRequest(loc, false, CodeLocation{Line: 10})

	resp, ok := Sync(write, read)
	require.True(t, ok)
	require.Equal(t, Read, resp.Kind())
	require.Equal(t, Response, resp.Phase())
	require.Equal(t, location.Prim(int32(42)), resp.Value)
}

func TestSync_WriteRead_DifferentLocation(t *testing.T) {
	write := NewWrite(location.NewStaticField("X", "a"), location.Prim(int32(1)), false, CodeLocation{})
	read := NewReadRequest(location.NewStaticField("X", "b"), false, CodeLocation{})
	_, ok := Sync(write, read)
	require.False(t, ok)
}

func TestSync_UnlockLock(t *testing.T) {
	unlock := NewUnlock(7, false, 0, false)
	lock := NewLockRequest(7, false, 0, false)
	resp, ok := Sync(unlock, lock)
	require.True(t, ok)
	require.Equal(t, Lock, resp.Kind())
	require.Equal(t, Response, resp.Phase())
}

func TestSync_NotifyWait(t *testing.T) {
	notify := NewNotify(3, true)
	wait := NewWaitRequest(3)
	resp, ok := Sync(notify, wait)
	require.True(t, ok)
	require.Equal(t, Wait, resp.Kind())
}

func TestSync_UnparkPark(t *testing.T) {
	unpark := NewUnpark(1)
	park := NewParkRequest(1)
	resp, ok := Sync(unpark, park)
	require.True(t, ok)
	require.Equal(t, Park, resp.Kind())
}

func TestSync_ThreadForkStart(t *testing.T) {
	fork := NewThreadFork([]ThreadID{2, 3})
	start := NewThreadStartRequest(2)
	resp, ok := Sync(fork, start)
	require.True(t, ok)
	require.Equal(t, ThreadStart, resp.Kind())
}

func TestSync_Undefined(t *testing.T) {
	write := NewWrite(location.NewStaticField("X", "a"), location.Prim(int32(1)), false, CodeLocation{})
	lock := NewLockRequest(1, false, 0, false)
	_, ok := Sync(write, lock)
	require.False(t, ok)
}

func TestSyncThreadFinish_BarrierReduction(t *testing.T) {
	join := NewThreadJoinRequest([]ThreadID{1, 2, 3})
	reduced, ok := SyncThreadFinish(NewThreadFinish(2), join)
	require.True(t, ok)
	require.Equal(t, Request, reduced.Phase())
	require.ElementsMatch(t, []ThreadID{1, 3}, reduced.JoinThreadIDs)

	reduced2, ok := SyncThreadFinish(NewThreadFinish(1), reduced)
	require.True(t, ok)
	require.Equal(t, Request, reduced2.Phase())
	require.ElementsMatch(t, []ThreadID{3}, reduced2.JoinThreadIDs)

	final, ok := SyncThreadFinish(NewThreadFinish(3), reduced2)
	require.True(t, ok)
	require.Equal(t, Response, final.Phase())
}

func TestDerivedFlags(t *testing.T) {
	read := NewReadRequest(location.NewStaticField("X", "f"), false, CodeLocation{})
	require.True(t, read.IsRequest())
	require.True(t, read.IsBlocking())
	require.Equal(t, Binary, read.SyncType())

	join := NewThreadJoinRequest([]ThreadID{1})
	require.Equal(t, Barrier, join.SyncType())

	write := NewWrite(location.NewStaticField("X", "f"), location.Prim(int32(1)), false, CodeLocation{})
	require.True(t, write.IsSend())
	require.False(t, write.IsRequest())
}
