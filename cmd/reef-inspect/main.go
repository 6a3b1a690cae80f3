// Package main provides the reef-inspect binary: the out-of-process inspector
// for frozen module-table images captured from a reef debug session.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reefdbg/reef/internal/config"
	"github.com/reefdbg/reef/internal/debugger"
	rerrors "github.com/reefdbg/reef/internal/errors"
	"github.com/reefdbg/reef/internal/logging"
	"github.com/reefdbg/reef/internal/snapshot"
	"github.com/reefdbg/reef/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "reef-inspect",
		Short:         "Reef Inspect - walk frozen module-table images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newModulesCmd())
	rootCmd.AddCommand(newLookupCmd())
	rootCmd.AddCommand(newDemoCaptureCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openImage(path string) (*snapshot.ImageModuleTable, error) {
	//nolint:gosec // G304: Path comes from the operator's command line.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	logger := logging.NewWithComponent(logging.DefaultConfig(), "inspector")
	defer rerrors.DeferClose(logger, f, "failed to close image file")

	return snapshot.Open(f)
}

// parseID accepts decimal or 0x-prefixed hex module/domain identities.
func parseID(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identity %q: %w", s, err)
	}
	return v, nil
}

func newModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules <image>",
		Short: "List all module records in a frozen image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := openImage(args[0])
			if err != nil {
				return err
			}

			cmd.Printf("Session:  %s\n", img.SessionID())
			cmd.Printf("Captured: %s\n", img.CapturedAt().Format("2006-01-02 15:04:05.000"))
			cmd.Printf("Modules:  %d\n\n", img.Count())
			cmd.Printf("%-18s %-18s %s\n", "MODULE", "DOMAIN", "JIT-FLAGS-MUTABLE")
			img.ForEach(func(dm *debugger.DebuggerModule) bool {
				cmd.Printf("%#-18x %#-18x %t\n",
					uint64(dm.EngineModule()), uint64(dm.Domain()), dm.JitFlagsMutable())
				return true
			})
			return nil
		},
	}
}

func newLookupCmd() *cobra.Command {
	var moduleArg, domainArg string

	cmd := &cobra.Command{
		Use:   "lookup <image>",
		Short: "Look up a module record in a frozen image",
		Long: `Look up a module record in a frozen image.

With only --module, returns the first record for that module regardless of
domain (arbitrary when the module is shared across domains). With --domain as
well, returns the exact (module, domain) record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := openImage(args[0])
			if err != nil {
				return err
			}

			module, err := parseID(moduleArg)
			if err != nil {
				return err
			}

			var dm *debugger.DebuggerModule
			if domainArg != "" {
				domain, err := parseID(domainArg)
				if err != nil {
					return err
				}
				dm = img.LookupByModuleAndDomain(debugger.ModuleID(module), debugger.DomainID(domain))
			} else {
				dm = img.LookupExact(debugger.ModuleID(module))
			}

			if dm == nil {
				cmd.Println("not found")
				return nil
			}
			cmd.Printf("module=%#x domain=%#x jit_flags_mutable=%t\n",
				uint64(dm.EngineModule()), uint64(dm.Domain()), dm.JitFlagsMutable())
			return nil
		},
	}

	cmd.Flags().StringVar(&moduleArg, "module", "", "engine module identity (decimal or 0x hex)")
	cmd.Flags().StringVar(&domainArg, "domain", "", "isolation domain identity (decimal or 0x hex)")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}

// newDemoCaptureCmd drives a scripted debug session and freezes it, so the
// inspect commands have something to chew on without a live runtime.
func newDemoCaptureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo-capture <out>",
		Short: "Run a scripted debug session and write its frozen image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			logger := logging.NewWithComponent(logging.Config{
				Level:  cfg.Logging.Level,
				Pretty: cfg.Logging.Pretty,
			}, "demo")

			eng := debugger.NewEngine(cfg.Engine, logger)
			defer eng.Teardown()

			// Two domains sharing one module, plus domain-private modules.
			const (
				d1 = debugger.DomainID(0x10)
				d2 = debugger.DomainID(0x20)
			)
			for _, load := range []struct {
				module debugger.ModuleID
				domain debugger.DomainID
			}{
				{0x7f0000401000, d1},
				{0x7f0000402000, d1},
				{0x7f0000401000, d2}, // shared module
				{0x7f0000403000, d2},
			} {
				if _, err := eng.OnModuleLoad(load.module, load.domain); err != nil {
					return err
				}
			}
			eng.SetModuleJitFlagsMutable(0x7f0000402000, d1, true)
			eng.OnDomainUnload(d2)

			//nolint:gosec // G304: Path comes from the operator's command line.
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create image: %w", err)
			}
			defer rerrors.DeferClose(logger, f, "failed to close image file")

			if err := snapshot.Capture(f, eng); err != nil {
				return err
			}
			cmd.Printf("wrote %s (%d modules, session %s)\n", args[0], eng.ModuleCount(), eng.SessionID())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Reef Inspect version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}
