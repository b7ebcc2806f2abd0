package analysis

import (
	"encoding/binary"
	"slices"
)

// SectionRange is the address range of a section.
type SectionRange struct {
	Addr uint64
	Size uint64
}

// interior reports whether ptr lies strictly inside the range. The first
// address and the one-past-last address are both excluded.
func (r SectionRange) interior(ptr uint64) bool {
	return r.Addr < ptr && ptr < r.Addr+r.Size
}

// Candidates is a strictly increasing set of vtable candidate addresses.
type Candidates []uint64

// Contains reports whether addr is a candidate.
func (c Candidates) Contains(addr uint64) bool {
	_, ok := slices.BinarySearch(c, addr)
	return ok
}

// ScanCandidates walks data in non-overlapping width-sized windows and
// returns the start address of every run of values pointing inside code.
// base is the virtual address of data[0]; width must be 4 or 8.
//
// A run is only recorded once a value outside code closes it, so a run
// reaching the end of data is dropped.
func ScanCandidates(data []byte, base uint64, code SectionRange, width int, order binary.ByteOrder) Candidates {
	var (
		out    Candidates
		open   bool
		runVA  uint64
		decode func([]byte) uint64
	)

	switch width {
	case PointerSize32:
		decode = func(b []byte) uint64 { return uint64(order.Uint32(b)) }
	case PointerSize64:
		decode = order.Uint64
	default:
		return nil
	}

	for off := 0; off+width <= len(data); off += width {
		ptr := decode(data[off : off+width])

		if code.interior(ptr) {
			if !open {
				open = true
				runVA = base + uint64(off)
			}
		} else if open {
			out = append(out, runVA)
			open = false
		}
	}

	return out
}
