// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openshelf/openshelf/internal/catalog"
	"github.com/openshelf/openshelf/internal/coordinator"
	"github.com/openshelf/openshelf/internal/guard"
	"github.com/openshelf/openshelf/internal/provider"
	"github.com/openshelf/openshelf/internal/realtime"
	"github.com/openshelf/openshelf/internal/server"
	"github.com/openshelf/openshelf/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the search API server",
	Long: `Serve starts the HTTP API: GET /api/search answers synchronously from
the local catalog, GET /api/search/subscribe streams late provider
results over a websocket, and GET /healthz reports liveness.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := realtime.NewHub()
	defer hub.Close()

	coord := coordinator.New(
		store,
		buildProviders(cfg),
		guard.NewRegistry(cfg.Guard),
		hub,
		cfg.Search,
		log,
	)

	srv := server.New(coord, hub, cfg.Server, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildProviders assembles the enabled provider clients in fan-out
// priority order: Open Library first, Google Books second.
func buildProviders(cfg types.AppConfig) []provider.Client {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}

	var clients []provider.Client
	if pc := cfg.Providers[string(types.SourceOpenLibrary)]; pc.Enabled {
		clients = append(clients, provider.NewOpenLibraryClient(httpClient, cfg.HTTP, pc))
	}
	if pc := cfg.Providers[string(types.SourceGoogleBooks)]; pc.Enabled {
		clients = append(clients, provider.NewGoogleBooksClient(httpClient, cfg.HTTP, pc))
	}
	return clients
}
