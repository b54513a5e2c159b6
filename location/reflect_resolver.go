package location

import (
	"fmt"
	"reflect"
	"strings"
)

// ReflectResolver resolves Locations against live Go values using
// reflection, walking the superclass (embedded-struct) chain and
// suffix-matching the recorded class name against the runtime type
// name. The suffix match tolerates package-path renaming — kept
// conservatively rather than removed, see DESIGN.md.
type ReflectResolver struct{}

func (ReflectResolver) Resolve(loc Location, m Mapper) (FieldStore, error) {
	switch loc.Kind() {
	case StaticField:
		return nil, fmt.Errorf("location: static field %s.%s has no registered backing value", loc.ClassName, loc.FieldName)
	case ObjectField:
		recv, ok := m.Resolve(loc.Object)
		if !ok {
			return nil, fmt.Errorf("location: unresolved object id %d", loc.Object)
		}
		return resolveField(recv, loc.ClassName, loc.FieldName)
	case ArrayElement:
		recv, ok := m.Resolve(loc.Object)
		if !ok {
			return nil, fmt.Errorf("location: unresolved object id %d", loc.Object)
		}
		return resolveIndex(recv, loc.Index)
	case AtomicPrimitive:
		recv, ok := m.Resolve(loc.Object)
		if !ok {
			return nil, fmt.Errorf("location: unresolved atomic object id %d", loc.Object)
		}
		return &atomicStore{holder: recv}, nil
	default:
		return nil, fmt.Errorf("location: unknown kind %v", loc.Kind())
	}
}

// resolveField walks the embedded-struct chain of recv looking for a
// struct whose runtime type name suffix-matches className, then the
// named field within it. If className is empty, the outermost struct
// is used directly.
func resolveField(recv any, className, fieldName string) (FieldStore, error) {
	v := reflect.ValueOf(recv)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("location: nil receiver resolving %s.%s", className, fieldName)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("location: receiver for %s.%s is not a struct (%s)", className, fieldName, v.Kind())
	}

	target, err := findEmbeddedStruct(v, className)
	if err != nil {
		return nil, err
	}

	f := target.FieldByName(fieldName)
	if !f.IsValid() {
		return nil, fmt.Errorf("location: field %q not found on %s (or its superclasses)", fieldName, target.Type())
	}
	if !f.CanSet() {
		// Field is unexported or otherwise inaccessible — fall back to
		// the unsafe-pointer path rather than fail the access.
		return newUnsafeFieldStore(f)
	}
	return &reflectFieldStore{field: f}, nil
}

// findEmbeddedStruct walks v's own type, then its embedded (anonymous)
// fields breadth-first, looking for a struct type whose name suffix-
// matches className (case-sensitive, matching on the unqualified type
// name after the last '.'). An empty className matches v itself.
func findEmbeddedStruct(v reflect.Value, className string) (reflect.Value, error) {
	if className == "" || typeNameMatches(v.Type(), className) {
		return v, nil
	}

	queue := []reflect.Value{v}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		t := cur.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.Anonymous {
				continue
			}
			fv := cur.Field(i)
			for fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					fv = reflect.Value{}
					break
				}
				fv = fv.Elem()
			}
			if !fv.IsValid() || fv.Kind() != reflect.Struct {
				continue
			}
			if typeNameMatches(fv.Type(), className) {
				return fv, nil
			}
			queue = append(queue, fv)
		}
	}
	return reflect.Value{}, fmt.Errorf("location: no struct in the embedding chain matches class %q", className)
}

func typeNameMatches(t reflect.Type, className string) bool {
	name := t.Name()
	if name == className {
		return true
	}
	return strings.HasSuffix(className, name) || strings.HasSuffix(name, className)
}

func resolveIndex(recv any, index int) (FieldStore, error) {
	v := reflect.ValueOf(recv)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("location: nil receiver resolving array index %d", index)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("location: receiver is not an array/slice (%s)", v.Kind())
	}
	if index < 0 || index >= v.Len() {
		return nil, fmt.Errorf("location: array index %d out of bounds (len %d)", index, v.Len())
	}
	elem := v.Index(index)
	if !elem.CanSet() {
		return newUnsafeFieldStore(elem)
	}
	return &reflectFieldStore{field: elem}, nil
}
