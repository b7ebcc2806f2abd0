package analysis

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"vtscan/internal/binfile"
	"vtscan/internal/disasm"
)

// FindVtables scans the read-only data of the context's binary for vtable
// candidates, confirms them against the code section's instructions and
// returns the confirmed addresses in ascending order. Every referencing
// instruction is appended to c.Xrefs.
//
// A missing code or read-only data section yields a *MissingSectionError
// before anything is scanned. Decoder errors are returned unchanged.
func FindVtables(c *Context) ([]uint64, error) {
	lg := c.logger()
	if c.Xrefs == nil {
		c.Xrefs = NewXrefIndex()
	}
	if c.ByteOrder == nil {
		c.ByteOrder = binary.LittleEndian
	}

	text, ok := c.Sections.Section(binfile.CodeSection)
	if !ok {
		return nil, &MissingSectionError{Name: binfile.CodeSection}
	}
	rdata, ok := c.Sections.Section(binfile.RodataSection)
	if !ok {
		return nil, &MissingSectionError{Name: binfile.RodataSection}
	}

	// 1. Find vtable candidates
	candidates := ScanCandidates(
		rdata.Data,
		rdata.Addr,
		SectionRange{Addr: text.Addr, Size: text.Size},
		c.PointerSize,
		c.ByteOrder,
	)
	if lg.GetLevel() <= log.DebugLevel {
		for _, addr := range candidates {
			lg.Debug("vtable candidate", "addr", fmt.Sprintf("%#x", addr))
		}
	}

	// 2. Validate vtable candidates by parsing the code
	insns, err := c.instructions(text)
	if err != nil {
		return nil, err
	}

	v := Validator{Idioms: c.Idioms, Logger: lg}
	vtables := v.Validate(insns, candidates, c.PointerSize, c.Xrefs)

	lg.Info("vtable scan complete",
		"candidates", len(candidates),
		"instructions", len(insns),
		"vtables", len(vtables))

	return vtables, nil
}

// Validator confirms candidates by matching instruction idioms.
type Validator struct {
	Idioms []Idiom
	Logger *log.Logger
}

// Validate walks insns once and returns every candidate referenced by a
// matching idiom, sorted and deduplicated. The address of each matching
// instruction is appended to xrefs in stream order; a nil xrefs records
// nothing.
func (v Validator) Validate(insns disasm.Stream, candidates Candidates, width int, xrefs *XrefIndex) []uint64 {
	idioms := v.Idioms
	if idioms == nil {
		idioms = DefaultIdioms()
	}

	found := make(map[uint64]struct{})
	cur := disasm.NewCursor(insns)
	for cur.Next() {
		insn := cur.Inst()
		for _, id := range idioms {
			addr, ok := id.Match(cur, candidates, width)
			if !ok {
				continue
			}
			if v.Logger != nil {
				v.Logger.Debug("found vtable",
					"addr", fmt.Sprintf("%#x", addr),
					"site", fmt.Sprintf("%#x", insn.VA),
					"idiom", id.Name())
			}
			found[addr] = struct{}{}
			if xrefs != nil {
				xrefs.Add(addr, insn.VA)
			}
		}
	}

	return slices.Sorted(maps.Keys(found))
}
