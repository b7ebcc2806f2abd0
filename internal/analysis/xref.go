package analysis

import (
	"maps"
	"slices"
)

// XrefIndex maps a vtable address to the addresses of the instructions
// that reference it, in the order they were encountered. The zero value
// is ready to use.
type XrefIndex struct {
	refs map[uint64][]uint64
}

// NewXrefIndex creates an empty index
func NewXrefIndex() *XrefIndex {
	return &XrefIndex{refs: make(map[uint64][]uint64)}
}

// Add appends site to the list for vtable. Duplicates are kept.
func (x *XrefIndex) Add(vtable, site uint64) {
	if x.refs == nil {
		x.refs = make(map[uint64][]uint64)
	}
	x.refs[vtable] = append(x.refs[vtable], site)
}

// Get returns the referencing sites for vtable. ok is false if nothing was
// ever recorded for it.
func (x *XrefIndex) Get(vtable uint64) (sites []uint64, ok bool) {
	sites, ok = x.refs[vtable]
	return sites, ok
}

// Len returns the number of vtables with at least one reference.
func (x *XrefIndex) Len() int {
	return len(x.refs)
}

// Vtables returns the indexed vtable addresses in ascending order.
func (x *XrefIndex) Vtables() []uint64 {
	return slices.Sorted(maps.Keys(x.refs))
}

// Reset drops every entry.
func (x *XrefIndex) Reset() {
	clear(x.refs)
}
