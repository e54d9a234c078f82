package hostsim

import "github.com/wippyai/objbridge"

type refKind uint8

const (
	kindLocal refKind = iota + 1
	kindGlobal
	kindWeak
)

func (k refKind) strong() bool {
	return k == kindLocal || k == kindGlobal
}

func (k refKind) String() string {
	switch k {
	case kindLocal:
		return "local"
	case kindGlobal:
		return "global"
	case kindWeak:
		return "weak"
	}
	return "invalid"
}

type refEntry struct {
	obj   *object // nil once a weak referent is collected
	kind  refKind
	valid bool
}

// refTable hands out reference values with slot reuse, so a deleted Ref
// value may later denote a different object, as host reference tables do.
type refTable struct {
	entries  []refEntry
	freeList []uint32
}

func newRefTable() refTable {
	return refTable{
		entries:  make([]refEntry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

func encodeRef(idx uint32, kind refKind) objbridge.Ref {
	return objbridge.Ref(uintptr(idx+1)<<2 | uintptr(kind))
}

func (t *refTable) insert(obj *object, kind refKind) objbridge.Ref {
	e := refEntry{obj: obj, kind: kind, valid: true}

	if len(t.freeList) > 0 {
		idx := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[idx] = e
		return encodeRef(idx, kind)
	}

	t.entries = append(t.entries, e)
	return encodeRef(uint32(len(t.entries)-1), kind)
}

func (t *refTable) lookup(r objbridge.Ref) (*refEntry, bool) {
	if r == 0 {
		return nil, false
	}
	kind := refKind(r & 3)
	idx := uint64(r>>2) - 1
	if idx >= uint64(len(t.entries)) {
		return nil, false
	}
	e := &t.entries[idx]
	if !e.valid || e.kind != kind {
		return nil, false
	}
	return e, true
}

func (t *refTable) drop(r objbridge.Ref) (refEntry, bool) {
	e, ok := t.lookup(r)
	if !ok {
		return refEntry{}, false
	}
	old := *e
	*e = refEntry{}
	t.freeList = append(t.freeList, uint32(r>>2)-1)
	return old, true
}

// clearWeak empties every weak reference to obj.
func (t *refTable) clearWeak(obj *object) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.valid && e.kind == kindWeak && e.obj == obj {
			e.obj = nil
		}
	}
}

func (t *refTable) count(kind refKind) int {
	n := 0
	for _, e := range t.entries {
		if e.valid && e.kind == kind {
			n++
		}
	}
	return n
}
