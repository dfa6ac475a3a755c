package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kpotier/agbnp/pkg/cfg"
	"github.com/kpotier/agbnp/pkg/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	logLevel    string
	dev         bool
	metricsFile string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "agbnp",
		Short:         "AGBNP3 implicit solvent energies and gradients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVar(&opts.dev, "dev", false, "human readable development logs")
	pf.StringVar(&opts.metricsFile, "metrics-file", "", "write the Prometheus metrics to this file at the end of the run")

	root.AddCommand(&cobra.Command{
		Use:   "run <cfg.toml>",
		Short: "Run the calculations listed in a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0])
		},
	})
	return root
}

func newLogger(opts *rootOptions) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(opts.logLevel)
	if err != nil {
		return nil, fmt.Errorf("ParseAtomicLevel: %w", err)
	}
	conf := zap.NewProductionConfig()
	if opts.dev {
		conf = zap.NewDevelopmentConfig()
	}
	conf.Level = level
	return conf.Build()
}

func run(ctx context.Context, opts *rootOptions, path string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	c, err := cfg.New(path)
	if err != nil {
		return fmt.Errorf("New: %w", err)
	}

	env := cfg.Env{Log: log}
	if opts.metricsFile != "" {
		env.Metrics, err = metrics.New()
		if err != nil {
			return fmt.Errorf("metrics.New: %w", err)
		}
	}

	runErr := c.Start(ctx, env)
	if env.Metrics != nil {
		if err := env.Metrics.WriteFile(opts.metricsFile); err != nil {
			log.Error("metrics not written", zap.Error(err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("Start: %w", runErr)
	}
	return nil
}
