package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"vtscan/internal/config"
	"vtscan/internal/logging"
)

// app is the state shared by all subcommands for one invocation.
type app struct {
	cfg            config.Config
	logger         *logging.LoggerCloser
	stopCPUProfile func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "vtscan",
		Short: "Find C++ vtables in x86 binaries",
		Long: `vtscan locates C++ virtual function tables in x86 and x86-64 ELF, PE and
Mach-O binaries. Runs of code pointers in read-only data are confirmed by
instructions that store their address, and every such instruction is reported.`,
		Example: `
# List vtables and the instructions that reference them
vtscan scan /path/to/binary

# Machine-readable output
vtscan scan --json /path/to/binary

# Who stores this vtable?
vtscan xrefs --code /path/to/binary 0x40e174
  `,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().BoolP("debug", "d", false, "Debug")
	root.PersistentFlags().Bool("no-color", false, "Disable colors")
	root.PersistentFlags().String("cpuprofile", "", "Write CPU profile to file")

	root.AddCommand(newScanCmd(a), newXrefsCmd(a), newSchemaCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cfg.NoColor = true
	}
	if f, ok := cmd.OutOrStdout().(*os.File); !ok || !term.IsTerminal(f.Fd()) {
		cfg.NoColor = true
	}
	a.cfg = cfg

	if cfg.LogToFile {
		a.logger = logging.NewLogger(cfg)
	} else {
		a.logger = logging.NewLoggerWithWriter(cmd.ErrOrStderr(), cfg)
	}

	if path, _ := cmd.Flags().GetString("cpuprofile"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		a.stopCPUProfile = func() {
			pprof.StopCPUProfile()
			f.Close()
		}
	}
	return nil
}

// teardown stops profiling and closes the log file. Subcommands defer it.
func (a *app) teardown() error {
	if a.stopCPUProfile != nil {
		a.stopCPUProfile()
		a.stopCPUProfile = nil
	}
	if a.logger != nil {
		return a.logger.Close()
	}
	return nil
}

// Execute runs the root command. Output that is piped or machine-readable
// bypasses fang's styled rendering.
func Execute() {
	root := newRootCmd()

	plain := !term.IsTerminal(os.Stdout.Fd())
	for _, arg := range os.Args[1:] {
		if arg == "--json" || arg == "-j" {
			plain = true
			break
		}
	}

	if plain {
		if err := root.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
