// Package colorize highlights x86 disassembly for terminal output.
package colorize

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// getAssemblyLexer returns an Intel-syntax lexer with fallbacks
func getAssemblyLexer() chroma.Lexer {
	for _, name := range []string{"nasm", "tasm", "gas"} {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getDisasmStyle returns the disassembly style with fallbacks
func getDisasmStyle() *chroma.Style {
	for _, name := range []string{"disasm-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Assembly highlights a block of Intel-syntax assembly. With noColor or
// when no lexer is available the input is returned unchanged.
func Assembly(code string, noColor bool) (string, error) {
	if noColor {
		return code, nil
	}

	lexer := getAssemblyLexer()
	if lexer == nil {
		return code, nil
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

// InstructionLine colorizes one "address  instruction" line, keeping the
// address in gray and handing the rest to the assembly lexer.
func InstructionLine(line string, noColor bool) string {
	if noColor {
		return line
	}

	addr, rest, ok := strings.Cut(line, " ")
	if !ok || !isHex(addr) {
		out, _ := Assembly(line, false)
		return strings.TrimRight(out, "\n")
	}

	out, err := Assembly(rest, false)
	if err != nil {
		out = rest
	}
	return fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m %s", addr, strings.TrimRight(out, "\n"))
}

func isHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !((ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')) {
			return false
		}
	}
	return true
}
