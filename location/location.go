// Package location implements a uniform memory-location abstraction: one
// handle type covering static fields, instance fields, array elements,
// and atomic primitive wrappers, each readable and writable through a
// caller-supplied object mapper.
package location

import "fmt"

// ObjectID is an opaque identifier minted by the object registry.
// Mirrored here (rather than imported from objreg) to avoid a cyclic
// dependency: locations name objects by id, the registry resolves them.
type ObjectID int64

const (
	// NullObjectID denotes the null reference.
	NullObjectID ObjectID = 0
	// StaticObjectID is the pseudo-object backing static fields.
	StaticObjectID ObjectID = -1
	// InvalidObjectID marks an unresolved or malformed reference.
	InvalidObjectID ObjectID = -2
)

// Kind tags the Location union.
type Kind int

const (
	StaticField Kind = iota
	ObjectField
	ArrayElement
	AtomicPrimitive
)

func (k Kind) String() string {
	switch k {
	case StaticField:
		return "StaticField"
	case ObjectField:
		return "ObjectField"
	case ArrayElement:
		return "ArrayElement"
	case AtomicPrimitive:
		return "AtomicPrimitive"
	default:
		return "Unknown"
	}
}

// Location is a tagged union over the four memory-location variants.
// Equality is structural over the tag and its fields, so a Location is
// safe to use as a map key.
type Location struct {
	kind Kind

	// StaticField / ObjectField
	ClassName string
	FieldName string

	// ObjectField / ArrayElement / AtomicPrimitive
	Object ObjectID

	// ArrayElement
	Index int
}

func NewStaticField(className, fieldName string) Location {
	return Location{kind: StaticField, ClassName: className, FieldName: fieldName, Object: StaticObjectID}
}

func NewObjectField(obj ObjectID, className, fieldName string) Location {
	return Location{kind: ObjectField, Object: obj, ClassName: className, FieldName: fieldName}
}

func NewArrayElement(obj ObjectID, index int) Location {
	return Location{kind: ArrayElement, Object: obj, Index: index}
}

func NewAtomicPrimitive(obj ObjectID) Location {
	return Location{kind: AtomicPrimitive, Object: obj}
}

func (l Location) Kind() Kind { return l.kind }

func (l Location) String() string {
	switch l.kind {
	case StaticField:
		return fmt.Sprintf("%s.%s", l.ClassName, l.FieldName)
	case ObjectField:
		return fmt.Sprintf("obj#%d(%s).%s", l.Object, l.ClassName, l.FieldName)
	case ArrayElement:
		return fmt.Sprintf("obj#%d[%d]", l.Object, l.Index)
	case AtomicPrimitive:
		return fmt.Sprintf("atomic#%d", l.Object)
	default:
		return "<invalid location>"
	}
}

// Mapper resolves an ObjectID back to the live receiver it names, the
// way model.Executor resolves a thread id back to a stack frame.
type Mapper interface {
	Resolve(id ObjectID) (any, bool)
}

// Value is the uniform wire shape a Read/Write moves through the
// location abstraction: either a primitive embedded by value, or an
// ObjectID naming a registered object, or the null marker.
type Value struct {
	IsNull    bool
	Primitive any // one of byte/int16/int32/int64/float32/float64/rune/bool, exact width preserved
	Ref       ObjectID
	IsRef     bool
}

func Null() Value { return Value{IsNull: true} }

func Prim(v any) Value { return Value{Primitive: v} }

func Ref(id ObjectID) Value { return Value{Ref: id, IsRef: true} }

// FieldStore is the minimal reflective contract a resolved field/array
// cell exposes once the location has been resolved to a live receiver.
// Accessor implementations (reflect-based, or a raw-pointer fallback)
// satisfy this.
type FieldStore interface {
	Get() (Value, error)
	Set(Value) error
}

// Resolver turns a Location plus a Mapper into a concrete FieldStore.
// ReflectResolver reaches the field through reflection and uses a
// raw-memory pointer only when reflection cannot set the field (user
// code may have made it inaccessible); a field reflection can set is
// never accessed through the raw-memory path.
type Resolver interface {
	Resolve(loc Location, m Mapper) (FieldStore, error)
}

// Read resolves loc via resolver/mapper and reads its current value.
func Read(loc Location, m Mapper, r Resolver) (Value, error) {
	store, err := r.Resolve(loc, m)
	if err != nil {
		return Value{}, err
	}
	return store.Get()
}

// Write resolves loc via resolver/mapper and stores v.
func Write(loc Location, v Value, m Mapper, r Resolver) error {
	store, err := r.Resolve(loc, m)
	if err != nil {
		return err
	}
	return store.Set(v)
}
