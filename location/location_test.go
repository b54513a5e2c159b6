package location

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMapper struct {
	objects map[ObjectID]any
}

func (m *fakeMapper) Resolve(id ObjectID) (any, bool) {
	v, ok := m.objects[id]
	return v, ok
}

type counter struct {
	Value int32
	Name  string
}

type derivedCounter struct {
	counter
	Extra int64
}

func TestReflectResolver_ObjectField_RoundTrip(t *testing.T) {
	c := &counter{Value: 41}
	mapper := &fakeMapper{objects: map[ObjectID]any{1: c}}
	r := ReflectResolver{}

	loc := NewObjectField(1, "counter", "Value")
	v, err := Read(loc, mapper, r)
	require.NoError(t, err)
	require.Equal(t, int32(41), v.Primitive)

	require.NoError(t, Write(loc, Prim(int32(42)), mapper, r))
	require.Equal(t, int32(42), c.Value)
}

func TestReflectResolver_SuffixMatchedClassName(t *testing.T) {
	d := &derivedCounter{counter: counter{Value: 1}}
	mapper := &fakeMapper{objects: map[ObjectID]any{1: d}}
	r := ReflectResolver{}

	// "counter" suffix-matches the embedded struct even though the
	// receiver's own type is derivedCounter.
	loc := NewObjectField(1, "counter", "Value")
	require.NoError(t, Write(loc, Prim(int32(9)), mapper, r))
	require.Equal(t, int32(9), d.Value)
}

func TestReflectResolver_ArrayElement(t *testing.T) {
	arr := []int64{10, 20, 30}
	mapper := &fakeMapper{objects: map[ObjectID]any{2: arr}}
	r := ReflectResolver{}

	loc := NewArrayElement(2, 1)
	v, err := Read(loc, mapper, r)
	require.NoError(t, err)
	require.Equal(t, int64(20), v.Primitive)
}

func TestReflectResolver_ArrayElement_OutOfBounds(t *testing.T) {
	arr := []int64{1, 2}
	mapper := &fakeMapper{objects: map[ObjectID]any{2: arr}}
	r := ReflectResolver{}

	_, err := Read(NewArrayElement(2, 5), mapper, r)
	require.Error(t, err)
}

func TestReflectResolver_ReferenceField_RefRoundTrip(t *testing.T) {
	type node struct {
		Next ObjectID
	}
	n := &node{Next: 7}
	mapper := &fakeMapper{objects: map[ObjectID]any{3: n}}
	r := ReflectResolver{}

	loc := NewObjectField(3, "node", "Next")
	v, err := Read(loc, mapper, r)
	require.NoError(t, err)
	require.True(t, v.IsRef)
	require.Equal(t, ObjectID(7), v.Ref)

	require.NoError(t, Write(loc, Ref(99), mapper, r))
	require.Equal(t, ObjectID(99), n.Next)
}

func TestLocationEquality(t *testing.T) {
	a := NewObjectField(1, "X", "f")
	b := NewObjectField(1, "X", "f")
	c := NewObjectField(2, "X", "f")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
