package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chestnotes/internal/daemon"
	"chestnotes/internal/logging"
	"chestnotes/internal/metadata"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the notes server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), ctx)
		},
	}
}

func runServer(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := metadata.Open(signalCtx, cfg.DatabaseURL(), metadata.WithLogger(logger))
	if err != nil {
		logger.Error("open metadata store", logging.Error(err), logging.String("database", metadata.Redact(cfg.DatabaseURL())))
		return err
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	fmt.Fprintf(os.Stderr, "chest listening on %s%s (pid %d)\n", d.Addr(), cfg.Server.RoutePrefix, os.Getpid())

	<-signalCtx.Done()
	logger.Info("chest shutting down")
	return nil
}
