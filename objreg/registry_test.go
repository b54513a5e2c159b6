package objreg

import (
	"testing"

	"github.com/loomcheck/loomcheck/location"
	"github.com/stretchr/testify/require"
)

func TestComputeValueID_NullAndRoundTrip(t *testing.T) {
	r := New()
	require.Equal(t, location.NullObjectID, r.ComputeValueID(nil, 0))

	type obj struct{ X int }
	o := &obj{X: 1}
	id1 := r.ComputeValueID(o, 1)
	id2 := r.ComputeValueID(o, 1)
	require.Equal(t, id1, id2, "same object must reuse its id")

	got, ok := r.Resolve(id1)
	require.True(t, ok)
	require.Same(t, o, got)
}

func TestComputeValueID_DistinctObjectsGetDistinctIDs(t *testing.T) {
	r := New()
	type obj struct{ X int }
	a := &obj{X: 1}
	b := &obj{X: 1}
	idA := r.ComputeValueID(a, 0)
	idB := r.ComputeValueID(b, 0)
	require.NotEqual(t, idA, idB)
}

func TestAllocate_NotExternal(t *testing.T) {
	r := New()
	type obj struct{}
	id := r.Allocate(&obj{}, 5)
	e, ok := r.Lookup(id)
	require.True(t, ok)
	require.False(t, e.IsExternal)
	require.Equal(t, uint64(5), e.Allocation)
}

func TestRetain_DropsNonExternal(t *testing.T) {
	r := New()
	type obj struct{ N int }
	external := r.ComputeValueID(&obj{N: 1}, 0)
	fresh := r.Allocate(&obj{N: 2}, 0)

	r.Retain(func(e *Entry) bool { return e.IsExternal })

	_, ok := r.Lookup(external)
	require.True(t, ok, "external objects survive retain")
	_, ok = r.Lookup(fresh)
	require.False(t, ok, "non-external objects are dropped on retain")
}
