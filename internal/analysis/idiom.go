package analysis

import (
	"vtscan/internal/disasm"
)

// Idiom recognizes an instruction sequence that stores a vtable address,
// typically into the first word of an object under construction.
type Idiom interface {
	// Name identifies the idiom in logs and reports
	Name() string
	// Match inspects the cursor's current instruction, peeking ahead if it
	// needs to, and returns the referenced candidate on a match
	Match(cur *disasm.Cursor, candidates Candidates, width int) (uint64, bool)
}

// DefaultIdioms returns the idioms emitted by common x86 compilers.
func DefaultIdioms() []Idiom {
	return []Idiom{
		RIPRelativeStore{},
		AbsoluteStore{},
	}
}

// RIPRelativeStore matches position-independent code that materializes
// the vtable address and then stores it:
//
//	lea reg, [rip+disp]
//	mov [dest], reg
type RIPRelativeStore struct{}

func (RIPRelativeStore) Name() string { return "lea-rip/mov" }

func (RIPRelativeStore) Match(cur *disasm.Cursor, candidates Candidates, width int) (uint64, bool) {
	insn := cur.Inst()
	if insn.Op != disasm.OpLEA || len(insn.Args) != 2 {
		return 0, false
	}

	var reg disasm.Reg
	switch dst := insn.Args[0]; dst.Kind {
	case disasm.KindRegister:
		reg = dst.Reg
	case disasm.KindMemory, disasm.KindImmediate, disasm.KindNone:
		return 0, false
	}

	var disp int64
	switch src := insn.Args[1]; src.Kind {
	case disasm.KindMemory:
		if src.Mem.Base != disasm.RegRIP {
			return 0, false
		}
		disp = src.Mem.Disp
	case disasm.KindRegister, disasm.KindImmediate, disasm.KindNone:
		return 0, false
	}

	// Displacement is relative to the next instruction. Wraps on overflow.
	addr := uint64(disp) + insn.VA + uint64(insn.Len)
	if !candidates.Contains(addr) {
		return 0, false
	}

	next, ok := cur.Peek()
	if !ok || !isStoreFromReg(next, reg) {
		return 0, false
	}
	return addr, true
}

// isStoreFromReg reports whether insn is mov [mem], reg for exactly reg.
func isStoreFromReg(insn *disasm.Inst, reg disasm.Reg) bool {
	if insn.Op != disasm.OpMOV || len(insn.Args) != 2 {
		return false
	}
	if insn.Args[0].Kind != disasm.KindMemory {
		return false
	}
	switch src := insn.Args[1]; src.Kind {
	case disasm.KindRegister:
		return src.Reg == reg
	case disasm.KindMemory, disasm.KindImmediate, disasm.KindNone:
		return false
	}
	return false
}

// AbsoluteStore matches non-PIC code storing the vtable address directly:
//
//	mov dword ptr [reg], offset vtable
type AbsoluteStore struct{}

func (AbsoluteStore) Name() string { return "mov-imm" }

func (AbsoluteStore) Match(cur *disasm.Cursor, candidates Candidates, width int) (uint64, bool) {
	insn := cur.Inst()
	if insn.Op != disasm.OpMOV || len(insn.Args) != 2 {
		return 0, false
	}
	if insn.Args[0].Kind != disasm.KindMemory {
		return 0, false
	}

	var imm int64
	switch src := insn.Args[1]; src.Kind {
	case disasm.KindImmediate:
		imm = src.Imm
	case disasm.KindRegister, disasm.KindMemory, disasm.KindNone:
		return 0, false
	}
	if imm < MinImm32 || imm > MaxImm32 {
		return 0, false
	}

	addr := uint64(imm)
	if width == PointerSize32 {
		addr = uint64(uint32(imm))
	}
	if !candidates.Contains(addr) {
		return 0, false
	}
	return addr, true
}
