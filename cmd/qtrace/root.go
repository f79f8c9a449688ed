package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qtrace-dev/qtrace/internal/config"
	"github.com/qtrace-dev/qtrace/internal/launcher"
	"github.com/qtrace-dev/qtrace/internal/machine"
	"github.com/qtrace-dev/qtrace/internal/qlog"
	"github.com/qtrace-dev/qtrace/internal/symtab"
	"github.com/qtrace-dev/qtrace/internal/syscalls"
	"github.com/qtrace-dev/qtrace/internal/ui"
)

var (
	flagConfig          string
	flagArch            string
	flagLDPath          string
	flagLibsPath        string
	flagEmulator        string
	flagPlugin          string
	flagTracePort       int
	flagGDBPort         int
	flagConnectAttempts int
	flagConnectDelay    time.Duration
	flagVerbose         bool
	flagQuiet           bool
	flagNoTUI           bool
)

var rootCmd = &cobra.Command{
	Use:           "qtrace <program> [args...]",
	Short:         "Trace a guest program's basic blocks, syscalls, and output under an emulator",
	SilenceUsage:  true,
	Args:          cobra.MinimumNArgs(1),
	RunE:          runTrace,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", config.DefaultPath(), "path to a YAML config file")
	flags.StringVar(&flagArch, "arch", "", "syscall table architecture (amd64, arm64)")
	flags.StringVar(&flagLDPath, "ld-path", "", "dynamic loader path (full-system emulation leaves this empty)")
	flags.StringVar(&flagLibsPath, "libs-path", "", "library search path passed to the loader")
	flags.StringVar(&flagEmulator, "emulator", "", "emulator binary")
	flags.StringVar(&flagPlugin, "plugin", "", "trace plugin path")
	flags.IntVar(&flagTracePort, "trace-port", 0, "trace socket port")
	flags.IntVar(&flagGDBPort, "gdb-port", 0, "debug-remote socket port")
	flags.IntVar(&flagConnectAttempts, "connect-attempts", 0, "connector retry budget")
	flags.DurationVar(&flagConnectDelay, "connect-delay", 0, "connector retry delay")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug-level logging, including every basic-block address")
	flags.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress per-event logging, print only the summary")
	flags.BoolVar(&flagNoTUI, "no-tui", false, "disable the live progress display even when attached to a terminal")

	rootCmd.AddCommand(infoCmd)
}

// loadConfig realizes flag > config file > built-in default.
func loadConfig() (config.Config, error) {
	fileCfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	merged := config.Merge(config.Default(), fileCfg)

	overlay := config.Config{
		LDPath:          flagLDPath,
		LibsPath:        flagLibsPath,
		Emulator:        flagEmulator,
		Plugin:          flagPlugin,
		TracePort:       flagTracePort,
		GDBPort:         flagGDBPort,
		ConnectAttempts: flagConnectAttempts,
		ConnectDelay:    flagConnectDelay,
		Arch:            flagArch,
	}
	return config.Merge(merged, overlay), nil
}

// resolveProgram resolves a guest program path via the filesystem first,
// then $PATH, matching spec.md §6's "filesystem then PATH" rule.
func resolveProgram(name string) (string, error) {
	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("program %q not found: %w", name, err)
		}
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	if _, err := os.Stat(name); err == nil {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("program %q not found in PATH: %w", name, err)
	}
	return path, nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	program, err := resolveProgram(args[0])
	if err != nil {
		return fmt.Errorf("qtrace: %w", err)
	}

	arch := syscalls.Arch(cfg.Arch)

	zapLogger, err := qlog.Init(flagVerbose)
	if err != nil {
		return fmt.Errorf("qtrace: init logger: %w", err)
	}
	defer zapLogger.Sync()

	var symbols *symtab.Table
	if t, err := symtab.Load(program); err == nil {
		symbols = t
	}

	counters := ui.NewCounters()
	sink := newCLISink(qlog.NewNop(), counters, flagQuiet)

	m := machine.New(machine.Config{
		Launch: launcher.Config{
			LDPath:   cfg.LDPath,
			LibsPath: cfg.LibsPath,
			Emulator: cfg.Emulator,
			Plugin:   cfg.Plugin,
			GDBPort:  cfg.GDBPort,
			Argv:     append([]string{program}, args[1:]...),
		},
		TraceAddr:       cfg.TraceAddr(),
		GDBAddr:         cfg.GDBAddr(),
		Arch:            arch,
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectDelay:    cfg.ConnectDelay,
		Resolve: func(name string) (uint64, error) {
			if symbols == nil {
				return 0, fmt.Errorf("no symbol table loaded for %s", program)
			}
			addr, ok := symbols.Resolve(name)
			if !ok {
				return 0, fmt.Errorf("symbol %q not found", name)
			}
			return addr, nil
		},
		Sink: sink,
	})

	logger := qlog.New(zapLogger, m.RunID)
	sink.logger = logger

	ctx := context.Background()

	showTUI := ui.IsTTY() && !flagNoTUI && !flagQuiet
	var runErr error
	if showTUI {
		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			runErr = m.Run(ctx)
		}()
		if err := ui.Run(ctx, counters, runDone); err != nil {
			logger.Warn("live display exited early", zap.Error(err))
		}
		<-runDone
	} else {
		runErr = m.Run(ctx)
	}

	printSummary(m, counters)

	if runErr != nil {
		logger.Error("trace run failed", zap.Error(runErr))
	}
	return nil
}
