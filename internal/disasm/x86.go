package disasm

import (
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// ErrUnsupportedMode is returned for a bitness other than 32 or 64.
var ErrUnsupportedMode = errors.New("unsupported x86 mode")

// X86Decoder decodes x86 and x86-64 machine code into a Stream.
type X86Decoder struct{}

// Decode linearly disassembles code starting at virtual address addr.
// Undecodable bytes are skipped one at a time, so a stream is always
// produced for valid modes.
func (X86Decoder) Decode(code []byte, addr uint64, bits int) (Stream, error) {
	if bits != 32 && bits != 64 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMode, bits)
	}

	// Rough guess at average instruction length to size the slice once.
	out := make(Stream, 0, len(code)/4)

	offset := 0
	pc := addr
	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], bits)
		// Truncated input can decode as a one-byte Op(0) with no error.
		if err != nil || inst.Len == 0 || inst.Op == 0 {
			offset++
			pc++
			continue
		}

		out = append(out, Inst{
			VA:   pc,
			Len:  inst.Len,
			Op:   convertOp(inst.Op),
			Args: convertArgs(inst.Args),
		})

		offset += inst.Len
		pc += uint64(inst.Len)
	}

	return out, nil
}

// FormatIntel decodes the single instruction at the start of code and
// renders it in Intel syntax.
func FormatIntel(code []byte, va uint64, bits int) (string, error) {
	inst, err := x86asm.Decode(code, bits)
	if err != nil {
		return "", fmt.Errorf("decode at %#x: %w", va, err)
	}
	return x86asm.IntelSyntax(inst, va, nil), nil
}

func convertOp(op x86asm.Op) Op {
	switch op {
	case x86asm.LEA:
		return OpLEA
	case x86asm.MOV:
		return OpMOV
	default:
		return OpOther
	}
}

func convertArgs(args x86asm.Args) []Operand {
	var out []Operand
	for _, a := range args {
		if a == nil {
			break
		}
		switch v := a.(type) {
		case x86asm.Reg:
			out = append(out, Register(convertReg(v)))
		case x86asm.Mem:
			out = append(out, Memory(Mem{
				Base:  convertReg(v.Base),
				Index: convertReg(v.Index),
				Scale: v.Scale,
				Disp:  v.Disp,
			}))
		case x86asm.Imm:
			out = append(out, Immediate(int64(v)))
		case x86asm.Rel:
			// Branch displacements are not data references; keep the
			// operand count intact without exposing them as immediates.
			out = append(out, Operand{Kind: KindNone})
		}
	}
	return out
}

func convertReg(r x86asm.Reg) Reg {
	if r == 0 {
		return RegNone
	}
	return Reg(r.String())
}
