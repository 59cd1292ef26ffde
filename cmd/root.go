package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "tryon",
		Short: "Virtual clothing try-on service",
		Long: `Tryon overlays clothing images onto user photos.

It serves an HTTP API for the catalog, the custom item gallery and try-on
sessions, and offers CLI commands for compositing, remote try-on and camera
capture. Remote try-on falls back to the local compositor whenever the
inference service is unavailable.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newComposeCmd())
	cmd.AddCommand(newTryOnCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newItemsCmd())
	cmd.AddCommand(newHandoffCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newCaptureCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}
