// Package disasm defines a common instruction representation used
// by the vtable analysis, independent of the decoder that produced it.
package disasm

import (
	"fmt"
	"strings"
)

// Op is the closed set of mnemonics the analysis distinguishes.
type Op int

const (
	OpOther Op = iota // any mnemonic the analysis does not inspect
	OpLEA             // load effective address
	OpMOV             // move
)

func (o Op) String() string {
	switch o {
	case OpLEA:
		return "lea"
	case OpMOV:
		return "mov"
	default:
		return "other"
	}
}

// Reg identifies a register. Identity comparison is exact: EAX and RAX are
// different registers.
type Reg string

// RegNone marks an absent base or index register.
const RegNone Reg = ""

// RegRIP and RegEIP are the instruction pointer registers usable as a
// memory base.
const (
	RegRIP Reg = "RIP"
	RegEIP Reg = "EIP"
)

// OperandKind discriminates the Operand variant.
type OperandKind int

const (
	KindNone OperandKind = iota
	KindRegister
	KindMemory
	KindImmediate
)

// Mem is a memory reference: [Base + Index*Scale + Disp].
type Mem struct {
	Base  Reg
	Index Reg
	Scale uint8
	Disp  int64
}

// Operand is a tagged variant. Exactly one of Reg, Mem or Imm is meaningful,
// selected by Kind.
type Operand struct {
	Kind OperandKind
	Reg  Reg
	Mem  Mem
	Imm  int64
}

// Register returns a register operand.
func Register(r Reg) Operand { return Operand{Kind: KindRegister, Reg: r} }

// Memory returns a memory operand.
func Memory(m Mem) Operand { return Operand{Kind: KindMemory, Mem: m} }

// Immediate returns an immediate operand.
func Immediate(v int64) Operand { return Operand{Kind: KindImmediate, Imm: v} }

func (o Operand) String() string {
	switch o.Kind {
	case KindRegister:
		return strings.ToLower(string(o.Reg))
	case KindMemory:
		var parts []string
		if o.Mem.Base != RegNone {
			parts = append(parts, strings.ToLower(string(o.Mem.Base)))
		}
		if o.Mem.Index != RegNone {
			parts = append(parts, fmt.Sprintf("%s*%d", strings.ToLower(string(o.Mem.Index)), o.Mem.Scale))
		}
		s := strings.Join(parts, "+")
		switch {
		case o.Mem.Disp < 0:
			s += fmt.Sprintf("-%#x", -o.Mem.Disp)
		case o.Mem.Disp > 0 && s != "":
			s += fmt.Sprintf("+%#x", o.Mem.Disp)
		case o.Mem.Disp > 0 || s == "":
			s = fmt.Sprintf("%#x", o.Mem.Disp)
		}
		return "[" + s + "]"
	case KindImmediate:
		return fmt.Sprintf("%#x", o.Imm)
	default:
		return "?"
	}
}

// Inst is a simplified decoded instruction.
type Inst struct {
	VA   uint64    // virtual address of instruction
	Len  int       // encoded length in bytes
	Op   Op        // mnemonic class
	Args []Operand // operands, destination first (Intel order)
	Text string    // formatted disassembly string, may be empty
}

// End returns the address immediately following the instruction.
func (i Inst) End() uint64 {
	return i.VA + uint64(i.Len)
}

func (i Inst) String() string {
	if i.Text != "" {
		return fmt.Sprintf("%x  %s", i.VA, i.Text)
	}
	args := make([]string, len(i.Args))
	for n, a := range i.Args {
		args[n] = a.String()
	}
	return fmt.Sprintf("%x  %s %s", i.VA, i.Op, strings.Join(args, ", "))
}

// Stream is a linear sequence of instructions in ascending address order.
type Stream []Inst

// Cursor walks a Stream with one instruction of lookahead.
type Cursor struct {
	s Stream
	i int
}

// NewCursor returns a cursor positioned before the first instruction.
func NewCursor(s Stream) *Cursor {
	return &Cursor{s: s, i: -1}
}

// Next advances to the next instruction. It returns false at the end.
func (c *Cursor) Next() bool {
	if c.i < len(c.s) {
		c.i++
	}
	return c.i < len(c.s)
}

// Inst returns the current instruction. Only valid after Next returned true.
func (c *Cursor) Inst() *Inst {
	return &c.s[c.i]
}

// Peek returns the instruction after the current one, if any.
func (c *Cursor) Peek() (*Inst, bool) {
	if c.i+1 >= len(c.s) {
		return nil, false
	}
	return &c.s[c.i+1], true
}
