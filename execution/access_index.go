package execution

import (
	"github.com/dgryski/go-farm"
	"github.com/loomcheck/loomcheck/event"
	"github.com/loomcheck/loomcheck/location"
)

// AccessIndex tracks, per memory location, the ordered read-requests
// and writes seen so far. Locations are bucketed by a go-farm hash of
// their string form to keep lookup O(1) amortized without requiring
// location.Location to be hashable beyond Go map equality (it already
// is, via struct equality, but the extra hash bucket mirrors objreg's
// content-addressing shape and keeps the two indexes consistent).
type locationAccess struct {
	reads  []*event.Event // Read-Request events
	writes []*event.Event // Write events, append order
}

type AccessIndex struct {
	byLocation map[uint64]map[location.Location]*locationAccess
}

func newAccessIndex() *AccessIndex {
	return &AccessIndex{byLocation: make(map[uint64]map[location.Location]*locationAccess)}
}

func bucket(loc location.Location) uint64 {
	return farm.Hash64([]byte(loc.String()))
}

func (a *AccessIndex) entry(loc location.Location) *locationAccess {
	b := bucket(loc)
	m, ok := a.byLocation[b]
	if !ok {
		m = make(map[location.Location]*locationAccess)
		a.byLocation[b] = m
	}
	e, ok := m[loc]
	if !ok {
		e = &locationAccess{}
		m[loc] = e
	}
	return e
}

func (a *AccessIndex) lookup(loc location.Location) (*locationAccess, bool) {
	m, ok := a.byLocation[bucket(loc)]
	if !ok {
		return nil, false
	}
	e, ok := m[loc]
	return e, ok
}

// record indexes ev if it is a Read-Request or a Write.
func (a *AccessIndex) record(ev *event.Event) {
	switch {
	case ev.Label.Kind() == event.Read && ev.Label.IsRequest():
		e := a.entry(ev.Label.Location)
		e.reads = append(e.reads, ev)
	case ev.Label.Kind() == event.Write:
		e := a.entry(ev.Label.Location)
		e.writes = append(e.writes, ev)
	}
}

// GetReadRequests returns every Read-Request event recorded for loc.
func (a *AccessIndex) GetReadRequests(loc location.Location) []*event.Event {
	e, ok := a.lookup(loc)
	if !ok {
		return nil
	}
	return append([]*event.Event(nil), e.reads...)
}

// GetWrites returns every Write event recorded for loc, in append order.
func (a *AccessIndex) GetWrites(loc location.Location) []*event.Event {
	e, ok := a.lookup(loc)
	if !ok {
		return nil
	}
	return append([]*event.Event(nil), e.writes...)
}

// GetLastWrite returns the most recently appended Write to loc, if any.
func (a *AccessIndex) GetLastWrite(loc location.Location) (*event.Event, bool) {
	e, ok := a.lookup(loc)
	if !ok || len(e.writes) == 0 {
		return nil, false
	}
	return e.writes[len(e.writes)-1], true
}

// IsRaceFree reports whether loc has at most one writer thread and no
// read interleaved between writes from different threads — i.e. every
// write to loc so far came from the same thread.
func (a *AccessIndex) IsRaceFree(loc location.Location) bool {
	e, ok := a.lookup(loc)
	if !ok || len(e.writes) == 0 {
		return true
	}
	first := e.writes[0].ThreadId
	for _, w := range e.writes[1:] {
		if w.ThreadId != first {
			return false
		}
	}
	return true
}

// IsReadWriteRaceFree reports whether loc has no reader thread distinct
// from its writer and no writes interleaved among readers.
func (a *AccessIndex) IsReadWriteRaceFree(loc location.Location) bool {
	e, ok := a.lookup(loc)
	if !ok {
		return true
	}
	if len(e.reads) == 0 {
		return true
	}
	if len(e.writes) == 0 {
		return false // readers exist, no writer: still "has a reader thread"
	}
	writer := e.writes[0].ThreadId
	for _, w := range e.writes[1:] {
		if w.ThreadId != writer {
			return false
		}
	}
	for _, r := range e.reads {
		if r.ThreadId != writer {
			return false
		}
	}
	return true
}
