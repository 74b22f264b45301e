package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvload/internal/store"
	"github.com/JonMunkholm/csvload/internal/store/memstore"
	"github.com/JonMunkholm/csvload/internal/store/pgstore"
	"github.com/JonMunkholm/csvload/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var memory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the file loaders over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "keep records in memory instead of Postgres; run history is disabled")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down and
// waits for running loads within the configured shutdown timeout.
func (a *app) serve(ctx context.Context, memory bool) error {
	var (
		factory store.Factory
		history web.History
	)
	if memory {
		factory = store.Memory(memstore.New())
	} else {
		pool, err := a.connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		h := pgstore.NewHistory(pool)
		if err := h.EnsureSchema(ctx); err != nil {
			return withCode(exitDB, err)
		}
		factory = store.Postgres(pool)
		history = h
	}

	reg, err := a.registry(factory)
	if err != nil {
		return err
	}

	slog.Info("configuration loaded",
		"addr", a.cfg.Server.Addr(),
		"loaders", reg.Len(),
		"memory", memory,
		"upload_max_concurrent", a.cfg.Upload.MaxConcurrent,
	)

	server := web.NewServer(a.cfg, reg, history)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("loads did not complete in time", "error", err)
		return err
	}
	slog.Info("server stopped")
	return <-errCh
}
