package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yourarch/services/worker/internal/app"
	"yourarch/services/worker/internal/server"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drain the caption queue until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			core, closers, err := buildApp(cfg)
			defer closeAll(closers)
			if err != nil {
				return err
			}
			defer func() {
				if err := core.Close(); err != nil {
					slog.Warn("close store failed", "err", err)
				}
			}()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Port != "" {
				srv := startStatusServer(core, cfg.Port)
				defer shutdownStatusServer(srv)
			}
			return core.Run(runCtx)
		},
	}
}

func startStatusServer(core *app.App, port string) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server.New(server.Config{App: core}).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("status server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server failed", "err", err)
		}
	}()
	return srv
}

func shutdownStatusServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("status server shutdown failed", "err", err)
	}
}
