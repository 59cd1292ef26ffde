package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/tryon/internal/config"
	"github.com/lehigh-university-libraries/tryon/internal/handlers"
	"github.com/lehigh-university-libraries/tryon/internal/remote"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string
	var assets string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the try-on HTTP API",
		Long: `Starts the try-on API on the specified port.

The API serves the preset catalog, the custom item gallery, the catalog to
try-on handoff and try-on sessions. Sessions composite locally and submit to
the configured provider (TRYON_PROVIDER) for AI try-on, falling back to the
local overlay when the provider fails.`,
		Example: `  # Start server on default port 8888
  tryon serve

  # Start server on custom port with catalog images in ./assets
  tryon serve --port 3000 --assets ./assets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			provider, err := newProvider(a.cfg)
			if err != nil {
				return err
			}
			cam, err := a.camera("")
			if err != nil {
				return err
			}
			if cam != nil {
				defer cam.Close()
			}

			var remoteClient *remote.Client
			if a.cfg.Provider == config.ProviderTryOnAPI {
				remoteClient = remote.New(a.cfg.ProviderConfig())
			}

			if assets == "" {
				assets = a.assetsDir()
			}
			handler := handlers.New(handlers.Deps{
				Sessions:       a.sessions(provider, cam),
				Catalog:        a.catalog,
				Wardrobe:       a.wardrobe,
				TryOnHandoff:   a.tryOnHandoff,
				CatalogHandoff: a.catalogHandoff,
				History:        a.history,
				Remote:         remoteClient,
				MaxUploadBytes: a.cfg.MaxUploadBytes,
				AssetsDir:      assets,
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Try-on API available", "addr", addr, "url", "http://localhost"+addr, "provider", provider.Name())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&assets, "assets", "", "Directory served under /static/ (defaults to the catalog file's directory)")

	return cmd
}
