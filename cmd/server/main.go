package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/groupshout/internal/app"
	"github.com/vovakirdan/groupshout/internal/config"
	applog "github.com/vovakirdan/groupshout/internal/log"
)

type serveFlags struct {
	configPath        string
	addr              string
	logLevel          string
	resultsDB         string
	publicURL         string
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f serveFlags

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	bindServeFlags(serve, &f)

	root := &cobra.Command{
		Use:           "groupshout-server",
		Short:         "Multi-classroom shout and sing game server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	bindServeFlags(root, &f)
	root.AddCommand(serve)
	return root
}

func bindServeFlags(cmd *cobra.Command, f *serveFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to config.yaml")
	fs.StringVar(&f.addr, "addr", "", "HTTP listen address")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.resultsDB, "results-db", "", "sqlite path of the results archive")
	fs.StringVar(&f.publicURL, "public-url", "", "public base URL used in invite links")
	fs.DurationVar(&f.readHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	fs.DurationVar(&f.shutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
}

func runServe(ctx context.Context, f serveFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLog := applog.New("info", "console", os.Stderr)
	cfg, path, err := config.Load(bootLog, f.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(config.Config{
		Addr:              f.addr,
		LogLevel:          f.logLevel,
		ResultsDB:         f.resultsDB,
		PublicURL:         f.publicURL,
		ReadHeaderTimeout: f.readHeaderTimeout,
		ShutdownTimeout:   f.shutdownTimeout,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := applog.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting groupshout server")

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
