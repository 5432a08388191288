package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ledgerbench/ledgerbench/internal/config"
	"github.com/ledgerbench/ledgerbench/internal/history"
	"github.com/ledgerbench/ledgerbench/internal/logger"
	"github.com/ledgerbench/ledgerbench/internal/metrics"
	"github.com/ledgerbench/ledgerbench/internal/runner"
)

var version = "dev"

// GlobalFlags holds the persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// usageError marks command-line mistakes so main can exit with the usage
// code instead of the generic failure code.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:           "ledgerbench",
		Short:         "Benchmark run orchestrator for the ledger API",
		Long:          "ledgerbench drives end-to-end benchmark runs: container teardown and startup, readiness polling, endpoint warm-up, database reset, and the external load-test invocation, with resource snapshots captured throughout.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "ledgerbench.toml", "path to TOML config")

	root.AddCommand(
		createRunCommand(flags),
		createValidateCommand(flags),
		createVersionCommand(),
	)
	return root
}

func createRunCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [repetitions]",
		Short: "Execute one or more benchmark runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return usageError{fmt.Sprintf("repetitions must be a positive integer, got %q", args[0])}
				}
				reps = n
			}
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return usageError{err.Error()}
			}
			return runBenchmark(cfg, reps)
		},
	}
}

func runBenchmark(cfg *config.Config, reps int) error {
	log := logger.NewConsole(cfg.Log)
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sink, err := history.NewSink(cfg.History)
	if err != nil {
		// History is an optional convenience; a broken sink must not block
		// the benchmark itself.
		log.Warn("history sink unavailable", "err", err)
	}
	if sink != nil {
		defer func() { _ = sink.Close() }()
	}

	ctx, stop := signal.NotifyContext(cmdContext(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher := &runner.Launcher{
		Cfg:         cfg,
		Log:         log,
		Repetitions: reps,
		Sink:        sink,
	}
	if code := launcher.Execute(ctx); code != 0 {
		os.Exit(code)
	}
	return nil
}

func createValidateCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return usageError{err.Error()}
			}
			fmt.Printf("config ok: %d services watched, load test: %s\n",
				len(cfg.Services), cfg.LoadTest.Command)
			return nil
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ledgerbench", version)
		},
	}
}
