// Package report assembles detection results into a document that can be
// written as JSON, markdown or styled text.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vtscan/internal/analysis"
	"vtscan/internal/binfile"
	"vtscan/internal/disasm"
)

// maxInsnLen is the longest legal x86 instruction.
const maxInsnLen = 15

// Report is the result of scanning one binary.
type Report struct {
	File       string   `json:"file" jsonschema:"description=Path of the scanned binary"`
	Format     string   `json:"format" jsonschema:"enum=elf,enum=pe,enum=macho,enum=memory"`
	Bits       int      `json:"bits" jsonschema:"enum=32,enum=64"`
	Code       Section  `json:"code"`
	Rodata     Section  `json:"rodata"`
	Candidates int      `json:"candidates" jsonschema:"description=Number of candidate vtable starts found in read-only data"`
	Vtables    []Vtable `json:"vtables"`
}

// Section describes one scanned section.
type Section struct {
	Name    string `json:"name"`
	Address string `json:"address" jsonschema:"pattern=^0x[0-9a-f]+$"`
	Size    uint64 `json:"size"`
}

// Vtable is a confirmed vtable and the instructions referencing it.
type Vtable struct {
	Address string `json:"address" jsonschema:"pattern=^0x[0-9a-f]+$"`
	Xrefs   []Xref `json:"xrefs"`
}

// Xref is one instruction that stores the vtable address.
type Xref struct {
	Address     string `json:"address" jsonschema:"pattern=^0x[0-9a-f]+$"`
	Instruction string `json:"instruction,omitempty" jsonschema:"description=Intel-syntax disassembly of the site"`
}

// Options controls what Build includes.
type Options struct {
	// MinXrefs drops vtables with fewer referencing instructions.
	MinXrefs int
	// Code disassembles every xref site.
	Code bool
}

// Hex formats an address the way every report field does.
func Hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}

// ParseHex parses an address with or without a 0x prefix.
func ParseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}

// Build collects the vtables found with c into a Report. The context must
// already have been run through analysis.FindVtables.
func Build(im *binfile.Image, c *analysis.Context, vtables []uint64, opts Options) (*Report, error) {
	text, ok := im.Section(binfile.CodeSection)
	if !ok {
		return nil, &analysis.MissingSectionError{Name: binfile.CodeSection}
	}
	rdata, ok := im.Section(binfile.RodataSection)
	if !ok {
		return nil, &analysis.MissingSectionError{Name: binfile.RodataSection}
	}

	candidates := analysis.ScanCandidates(rdata.Data, rdata.Addr,
		analysis.SectionRange{Addr: text.Addr, Size: text.Size},
		c.PointerSize, c.ByteOrder)

	r := &Report{
		File:       im.Path,
		Format:     string(im.Format),
		Bits:       im.Bits,
		Code:       Section{Name: text.Name, Address: Hex(text.Addr), Size: text.Size},
		Rodata:     Section{Name: rdata.Name, Address: Hex(rdata.Addr), Size: rdata.Size},
		Candidates: len(candidates),
		Vtables:    make([]Vtable, 0, len(vtables)),
	}

	for _, vt := range vtables {
		sites, _ := c.Xrefs.Get(vt)
		if len(sites) < opts.MinXrefs {
			continue
		}
		v := Vtable{Address: Hex(vt), Xrefs: make([]Xref, 0, len(sites))}
		for _, site := range sites {
			x := Xref{Address: Hex(site)}
			if opts.Code {
				x.Instruction = disassemble(im, site)
			}
			v.Xrefs = append(v.Xrefs, x)
		}
		r.Vtables = append(r.Vtables, v)
	}

	return r, nil
}

func disassemble(im *binfile.Image, va uint64) string {
	code, ok := im.ReadVA(va, maxInsnLen)
	if !ok {
		return ""
	}
	s, err := disasm.FormatIntel(code, va, im.Bits)
	if err != nil {
		return ""
	}
	return s
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return nil
}

// Lookup returns the vtable at addr.
func (r *Report) Lookup(addr uint64) (Vtable, bool) {
	want := Hex(addr)
	for _, v := range r.Vtables {
		if v.Address == want {
			return v, true
		}
	}
	return Vtable{}, false
}
