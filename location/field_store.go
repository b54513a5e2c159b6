package location

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"
)

// reflectFieldStore is the common case: an addressable, settable field
// or array element reached directly through reflection.
type reflectFieldStore struct {
	field reflect.Value
}

func (s *reflectFieldStore) Get() (Value, error) {
	return goToValue(s.field)
}

func (s *reflectFieldStore) Set(v Value) error {
	return valueToGo(s.field, v)
}

// unsafeFieldStore is the fallback path for fields user code made
// inaccessible (unexported, through an interface, etc). It takes the
// field's address via unsafe.Pointer and builds a new reflect.Value
// that IS settable, bypassing Go's export visibility check — the
// raw-memory escape hatch needed when reflection alone cannot set the
// field.
type unsafeFieldStore struct {
	field reflect.Value
}

func newUnsafeFieldStore(f reflect.Value) (*unsafeFieldStore, error) {
	if !f.CanAddr() {
		return nil, fmt.Errorf("location: field is not addressable, cannot use raw-memory fallback")
	}
	raw := reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
	return &unsafeFieldStore{field: raw}, nil
}

func (s *unsafeFieldStore) Get() (Value, error) {
	return goToValue(s.field)
}

func (s *unsafeFieldStore) Set(v Value) error {
	return valueToGo(s.field, v)
}

// atomicStore wraps an atomic primitive wrapper object (e.g. an
// *atomic.Int64-shaped holder) exposing Load/Store by convention.
type atomicStore struct {
	holder any
}

func (s *atomicStore) Get() (Value, error) {
	switch h := s.holder.(type) {
	case *atomic.Int32:
		return Prim(h.Load()), nil
	case *atomic.Int64:
		return Prim(h.Load()), nil
	case *atomic.Bool:
		return Prim(h.Load()), nil
	case *atomic.Value:
		loaded := h.Load()
		if loaded == nil {
			return Null(), nil
		}
		if id, ok := loaded.(ObjectID); ok {
			return Ref(id), nil
		}
		return Prim(loaded), nil
	default:
		return Value{}, fmt.Errorf("location: unsupported atomic holder type %T", s.holder)
	}
}

func (s *atomicStore) Set(v Value) error {
	switch h := s.holder.(type) {
	case *atomic.Int32:
		p, ok := v.Primitive.(int32)
		if !ok {
			return fmt.Errorf("location: atomic.Int32 write expects int32, got %T", v.Primitive)
		}
		h.Store(p)
		return nil
	case *atomic.Int64:
		p, ok := v.Primitive.(int64)
		if !ok {
			return fmt.Errorf("location: atomic.Int64 write expects int64, got %T", v.Primitive)
		}
		h.Store(p)
		return nil
	case *atomic.Bool:
		p, ok := v.Primitive.(bool)
		if !ok {
			return fmt.Errorf("location: atomic.Bool write expects bool, got %T", v.Primitive)
		}
		h.Store(p)
		return nil
	case *atomic.Value:
		if v.IsNull {
			h.Store(nil)
			return nil
		}
		if v.IsRef {
			h.Store(v.Ref)
			return nil
		}
		h.Store(v.Primitive)
		return nil
	default:
		return fmt.Errorf("location: unsupported atomic holder type %T", s.holder)
	}
}

// goToValue converts a reflect.Value into the uniform Value union,
// preserving the exact primitive width (byte/short/int/long/float/
// double/char/boolean all round-trip as their distinct Go types).
var objectIDType = reflect.TypeOf(ObjectID(0))

func goToValue(f reflect.Value) (Value, error) {
	if f.Type() == objectIDType {
		return Ref(ObjectID(f.Int())), nil
	}
	switch f.Kind() {
	case reflect.Int8:
		return Prim(int8(f.Int())), nil
	case reflect.Int16:
		return Prim(int16(f.Int())), nil
	case reflect.Int32:
		return Prim(int32(f.Int())), nil
	case reflect.Int64, reflect.Int:
		return Prim(f.Int()), nil
	case reflect.Uint8:
		return Prim(uint8(f.Uint())), nil
	case reflect.Float32:
		return Prim(float32(f.Float())), nil
	case reflect.Float64:
		return Prim(f.Float()), nil
	case reflect.Bool:
		return Prim(f.Bool()), nil
	case reflect.Ptr, reflect.Interface:
		if f.IsNil() {
			return Null(), nil
		}
		if id, ok := f.Interface().(ObjectID); ok {
			return Ref(id), nil
		}
		return Value{}, fmt.Errorf("location: reference-typed field holds non-ObjectID value %T", f.Interface())
	default:
		return Value{}, fmt.Errorf("location: unsupported field kind %v", f.Kind())
	}
}

// valueToGo writes v into f, always storing it at the field's own
// declared type: an integer field accepts any integer primitive
// (converted to the field's width), a float field accepts float32 or
// float64, a bool field only a bool, and a reference field only null or
// an ObjectID. The primitive's width is not required to match the
// field's.
func valueToGo(f reflect.Value, v Value) error {
	if f.Type() == objectIDType {
		if v.IsNull {
			f.SetInt(int64(NullObjectID))
			return nil
		}
		if !v.IsRef {
			return fmt.Errorf("location: ObjectID-typed field requires a reference value, got primitive %T", v.Primitive)
		}
		f.SetInt(int64(v.Ref))
		return nil
	}
	switch f.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		i, err := asInt(v.Primitive)
		if err != nil {
			return err
		}
		f.SetInt(i)
		return nil
	case reflect.Uint8:
		i, err := asInt(v.Primitive)
		if err != nil {
			return err
		}
		f.SetUint(uint64(i))
		return nil
	case reflect.Float32, reflect.Float64:
		switch p := v.Primitive.(type) {
		case float32:
			f.SetFloat(float64(p))
		case float64:
			f.SetFloat(p)
		default:
			return fmt.Errorf("location: expected float primitive, got %T", v.Primitive)
		}
		return nil
	case reflect.Bool:
		b, ok := v.Primitive.(bool)
		if !ok {
			return fmt.Errorf("location: expected bool primitive, got %T", v.Primitive)
		}
		f.SetBool(b)
		return nil
	case reflect.Ptr, reflect.Interface:
		if v.IsNull {
			f.Set(reflect.Zero(f.Type()))
			return nil
		}
		if v.IsRef {
			f.Set(reflect.ValueOf(v.Ref))
			return nil
		}
		return fmt.Errorf("location: reference-typed field requires a null or ObjectID value")
	default:
		return fmt.Errorf("location: unsupported field kind %v", f.Kind())
	}
}

func asInt(p any) (int64, error) {
	switch n := p.(type) {
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("location: expected integer primitive, got %T", p)
	}
}
