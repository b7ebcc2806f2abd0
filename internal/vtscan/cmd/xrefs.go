package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vtscan/internal/report"
	"vtscan/internal/ui/colorize"
)

func newXrefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xrefs [file] [vtable]",
		Short: "Show the instructions that store one vtable",
		Example: `
vtscan xrefs ./msvc_rtti1_32.exe 0x40e174
vtscan xrefs --code ./msvc_rtti1_64.exe 140010368
  `,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.teardown()

			addr, err := report.ParseHex(args[1])
			if err != nil {
				return err
			}
			code, _ := cmd.Flags().GetBool("code")

			r, err := a.scan(args[0], report.Options{Code: code})
			if err != nil {
				return err
			}
			v, ok := r.Lookup(addr)
			if !ok {
				return fmt.Errorf("%s is not a vtable in %s", report.Hex(addr), args[0])
			}

			out := cmd.OutOrStdout()
			for _, x := range v.Xrefs {
				line := x.Address
				if x.Instruction != "" {
					line = fmt.Sprintf("%s  %s", x.Address, x.Instruction)
				}
				fmt.Fprintln(out, colorize.InstructionLine(line, a.cfg.NoColor))
			}
			return nil
		},
	}

	cmd.Flags().BoolP("code", "C", false, "Disassemble each referencing instruction")
	return cmd
}
