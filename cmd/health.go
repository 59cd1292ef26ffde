package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/tryon/internal/config"
	"github.com/lehigh-university-libraries/tryon/internal/remote"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check whether the try-on API is available",
		Example: `  tryon health
  tryon health --url http://gpu-box:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pc := cfg.ProviderConfig()
			pc.BaseURL = cfg.APIURL
			if url != "" {
				pc.BaseURL = url
			}

			client := remote.New(pc)
			status, err := client.Health(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "❌ %s is not available: %v\n", client.BaseURL, err)
				return err
			}
			if status != "healthy" {
				fmt.Fprintf(cmd.OutOrStdout(), "⚠️  %s reports status %q\n", client.BaseURL, status)
				return fmt.Errorf("try-on API status is %q", status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is healthy\n", client.BaseURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Try-on API base URL (defaults to TRYON_API_URL)")

	return cmd
}
