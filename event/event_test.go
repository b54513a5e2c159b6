package event

import (
	"testing"

	"github.com/loomcheck/loomcheck/location"
	"github.com/stretchr/testify/require"
)

func TestArena_MonotonicIDsAndParentInvariant(t *testing.T) {
	a := NewArena()
	root := a.Create(0, 0, NewInitialization(0, 1, nil), 0, false, nil)
	require.Equal(t, ID(1), root.Id)

	child := a.Create(0, 1, NewWrite(locStatic(), primValue(), false, CodeLocation{}), root.Id, true, nil)
	require.Less(t, root.Id, child.Id)
	require.Equal(t, root.ThreadId, child.ThreadId)
	require.Equal(t, root.ThreadPosition+1, child.ThreadPosition)
}

func TestArena_CausalityClockIsPointwiseMax(t *testing.T) {
	a := NewArena()
	root := a.Create(0, 0, NewInitialization(0, 1, nil), 0, false, nil)

	t0e1 := a.Create(0, 1, NewWrite(locStatic(), primValue(), false, CodeLocation{}), root.Id, true, nil)
	t1e1 := a.Create(1, 0, NewReadRequest(locStatic(), false, CodeLocation{}), 0, false, nil)

	// A response on thread 1 depending on both t0e1 and t1e1.
	resp := a.Create(1, 1, NewReadResponse(locStatic(), primValue(), false, CodeLocation{}), t1e1.Id, true, []ID{t0e1.Id})

	require.Equal(t, t0e1.ThreadPosition, resp.CausalityClock[0])
	require.Equal(t, resp.ThreadPosition, resp.CausalityClock[1])
}

func TestClock_LessOrEqual(t *testing.T) {
	a := Clock{0: 1, 1: 2}
	b := Clock{0: 2, 1: 2, 2: 0}
	require.True(t, a.LessOrEqual(b))
	require.False(t, b.LessOrEqual(a))
}

func locStatic() location.Location { return location.NewStaticField("X", "f") }
func primValue() location.Value    { return location.Prim(int32(1)) }
