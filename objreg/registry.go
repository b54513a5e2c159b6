// Package objreg implements the object registry: a monotonic allocator
// of ObjectIDs with value<->id resolution, built on a content-addressing
// idiom generalized from "hash immutable state blobs" to "assign stable
// identities to live, mutable objects".
package objreg

import (
	"sync"

	"github.com/dgryski/go-farm"
	"github.com/loomcheck/loomcheck/location"
)

// Entry is one object-registry record.
type Entry struct {
	ID         location.ObjectID
	Value      any
	Allocation uint64 // id of the allocation event (the Initialization or ObjectAllocation event)
	IsExternal bool   // created before the test started; survives retain()
}

// Registry assigns stable ObjectIDs to live objects and resolves both
// directions. Known objects are deduplicated by identity for reference
// types and by content hash for value types that declare themselves
// comparable via Fingerprint.
type Registry struct {
	mu       sync.Mutex
	nextID   location.ObjectID
	byID     map[location.ObjectID]*Entry
	byIdent  map[any]location.ObjectID // comparable Go values only
	byHash   map[uint64][]location.ObjectID
}

// Fingerprintable lets non-comparable objects (e.g. containing slices)
// participate in content-based dedup; objects that don't implement it
// are always treated as freshly allocated on first sight and then
// tracked by identity pointer.
type Fingerprintable interface {
	Fingerprint() []byte
}

func New() *Registry {
	return &Registry{
		nextID:  location.NullObjectID + 1,
		byID:    make(map[location.ObjectID]*Entry),
		byIdent: make(map[any]location.ObjectID),
		byHash:  make(map[uint64][]location.ObjectID),
	}
}

// Resolve implements location.Mapper.
func (r *Registry) Resolve(id location.ObjectID) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Lookup returns the entry for id, if any.
func (r *Registry) Lookup(id location.ObjectID) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	return e, ok
}

// ComputeValueID resolves value to a stable ObjectID: nil maps to
// NullObjectID (the caller is expected to special-case primitives before
// calling this — this registry only ever mints ids for reference-typed
// values), a known object returns its cached id, and an unknown object
// is allocated fresh and registered with allocationEvent as its
// allocation source and isExternal set (since it predates the current
// exploration's own allocations).
func (r *Registry) ComputeValueID(value any, allocationEvent uint64) location.ObjectID {
	if value == nil {
		return location.NullObjectID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if fp, ok := value.(Fingerprintable); ok {
		h := farm.Hash64(fp.Fingerprint())
		for _, id := range r.byHash[h] {
			if sameValue(r.byID[id].Value, value) {
				return id
			}
		}
		id := r.allocateLocked(value, allocationEvent, true)
		r.byHash[h] = append(r.byHash[h], id)
		return id
	}

	if isComparable(value) {
		if id, ok := r.byIdent[value]; ok {
			return id
		}
		id := r.allocateLocked(value, allocationEvent, true)
		r.byIdent[value] = id
		return id
	}

	// Non-comparable, non-fingerprintable (e.g. a bare slice/map):
	// always fresh, tracked only by id.
	return r.allocateLocked(value, allocationEvent, true)
}

// Allocate registers a brand-new object created during the current
// exploration (e.g. from an ObjectAllocation event) — never marked
// external, so it is dropped by Retain on backtrack.
func (r *Registry) Allocate(value any, allocationEvent uint64) location.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocateLocked(value, allocationEvent, false)
}

func (r *Registry) allocateLocked(value any, allocationEvent uint64, external bool) location.ObjectID {
	id := r.nextID
	r.nextID++
	r.byID[id] = &Entry{ID: id, Value: value, Allocation: allocationEvent, IsExternal: external}
	return id
}

// Retain drops every entry for which keep returns false, implementing
// the backtracking reset: retaining only external entries rolls the
// registry back to its pre-exploration state. Callers typically pass a
// predicate that is simply `func(e *Entry) bool { return e.IsExternal }`.
func (r *Registry) Retain(keep func(*Entry) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.byID {
		if !keep(e) {
			delete(r.byID, id)
		}
	}
	for k, ids := range r.byHash {
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := r.byID[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(r.byHash, k)
		} else {
			r.byHash[k] = kept
		}
	}
	for v, id := range r.byIdent {
		if _, ok := r.byID[id]; !ok {
			delete(r.byIdent, v)
		}
	}
}

func isComparable(v any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	m := map[any]struct{}{v: {}}
	_ = m
	return true
}

func sameValue(a, b any) bool {
	af, aok := a.(Fingerprintable)
	bf, bok := b.(Fingerprintable)
	if !aok || !bok {
		return a == b
	}
	afp, bfp := af.Fingerprint(), bf.Fingerprint()
	if len(afp) != len(bfp) {
		return false
	}
	for i := range afp {
		if afp[i] != bfp[i] {
			return false
		}
	}
	return true
}
