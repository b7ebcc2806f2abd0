package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vtscan/internal/analysis"
	"vtscan/internal/binfile"
	"vtscan/internal/report"
	"vtscan/internal/vtscan/styles"
)

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "List vtables and their references",
		Example: `
# Styled summary
vtscan scan ./msvc_rtti1_32.exe

# Markdown with the referencing instructions
vtscan scan --markdown --code ./msvc_rtti1_64.exe

# Only vtables stored from two or more places
vtscan scan --min-xrefs 2 ./libfoo.so
  `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.teardown()

			jsonOut, _ := cmd.Flags().GetBool("json")
			markdown, _ := cmd.Flags().GetBool("markdown")
			theme, _ := cmd.Flags().GetString("theme")
			if jsonOut && markdown {
				return fmt.Errorf("--json and --markdown are mutually exclusive")
			}
			if _, err := styles.Theme(theme); err != nil {
				return err
			}

			opts, err := reportOptions(cmd)
			if err != nil {
				return err
			}
			r, err := a.scan(args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case jsonOut:
				return report.WriteJSON(out, r)
			case markdown:
				return a.writeMarkdown(out, r, theme)
			default:
				return report.WriteText(out, r, a.cfg.NoColor)
			}
		},
	}

	cmd.Flags().BoolP("json", "j", false, "Output the report as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output the report as markdown")
	cmd.Flags().String("theme", styles.ThemeCharm, "Markdown theme (charm, vscode)")
	cmd.Flags().BoolP("code", "C", false, "Disassemble each referencing instruction")
	cmd.Flags().Int("min-xrefs", 0, "Hide vtables with fewer references")
	return cmd
}

func reportOptions(cmd *cobra.Command) (report.Options, error) {
	code, _ := cmd.Flags().GetBool("code")
	minXrefs, _ := cmd.Flags().GetInt("min-xrefs")
	if minXrefs < 0 {
		return report.Options{}, fmt.Errorf("--min-xrefs must not be negative")
	}
	return report.Options{Code: code, MinXrefs: minXrefs}, nil
}

// scan opens path, runs vtable detection and builds the report.
func (a *app) scan(path string, opts report.Options) (*report.Report, error) {
	lg := a.logger.Logger

	im, err := binfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}
	lg.Debug("opened binary", "path", path, "format", im.Format, "bits", im.Bits)

	c, err := analysis.NewContextForImage(im)
	if err != nil {
		return nil, err
	}
	c.Logger = lg

	vtables, err := analysis.FindVtables(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return report.Build(im, c, vtables, opts)
}

func (a *app) writeMarkdown(w io.Writer, r *report.Report, theme string) error {
	md := report.Markdown(r)
	if a.cfg.NoColor {
		_, err := io.WriteString(w, md)
		return err
	}

	renderer, err := styles.MarkdownRenderer(theme, 100)
	if err != nil {
		return err
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
