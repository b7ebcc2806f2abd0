package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"vtscan/internal/ui/colorize"
	"vtscan/internal/vtscan/styles"
)

// Markdown renders r as a markdown document.
func Markdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", filepath.Base(r.File))
	fmt.Fprintf(&b, "%s, %d-bit\n\n", r.Format, r.Bits)

	b.WriteString("| section | address | size |\n")
	b.WriteString("|---|---|---|\n")
	for _, s := range []Section{r.Code, r.Rodata} {
		fmt.Fprintf(&b, "| %s | `%s` | %s |\n", s.Name, s.Address, humanize.Bytes(s.Size))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "**%d** vtables from **%s** candidates\n\n",
		len(r.Vtables), humanize.Comma(int64(r.Candidates)))

	for _, v := range r.Vtables {
		fmt.Fprintf(&b, "## `%s`\n\n", v.Address)
		for _, x := range v.Xrefs {
			if x.Instruction != "" {
				fmt.Fprintf(&b, "- `%s` `%s`\n", x.Address, x.Instruction)
			} else {
				fmt.Fprintf(&b, "- `%s`\n", x.Address)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// WriteText writes r as styled plain text.
func WriteText(w io.Writer, r *Report, noColor bool) error {
	p := styles.NewPalette(noColor)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n",
		p.Title.Render(filepath.Base(r.File)),
		p.Dim.Render(fmt.Sprintf("(%s, %d-bit)", r.Format, r.Bits)))
	for _, s := range []Section{r.Code, r.Rodata} {
		fmt.Fprintf(&b, "%-16s %s %s\n",
			p.Label.Render(s.Name), p.Address.Render(s.Address), p.Dim.Render(humanize.Bytes(s.Size)))
	}
	fmt.Fprintf(&b, "%s vtables from %s candidates\n",
		p.Count.Render(fmt.Sprint(len(r.Vtables))),
		p.Count.Render(humanize.Comma(int64(r.Candidates))))

	for _, v := range r.Vtables {
		fmt.Fprintf(&b, "\n%s %s\n", p.Address.Render(v.Address), p.Dim.Render(plural(len(v.Xrefs), "xref")))
		for _, x := range v.Xrefs {
			if x.Instruction == "" {
				fmt.Fprintf(&b, "  %s\n", x.Address)
				continue
			}
			line := fmt.Sprintf("%s  %s", x.Address, x.Instruction)
			fmt.Fprintf(&b, "  %s\n", colorize.InstructionLine(line, noColor))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
