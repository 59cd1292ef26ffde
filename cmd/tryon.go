package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/session"
	"github.com/spf13/cobra"
)

func newTryOnCmd() *cobra.Command {
	var basePath, overlayPath, outPath, name string
	var adj models.Adjustment

	cmd := &cobra.Command{
		Use:   "tryon",
		Short: "Run a virtual try-on through the configured provider",
		Long: `Submits a user photo and a clothing image to the configured try-on provider
(TRYON_PROVIDER: tryonapi, gemini or openai).

If the provider is unreachable or returns an error, the local compositor
produces the result instead. Every attempt is recorded in the history.`,
		Example: `  # Remote try-on with local fallback
  tryon tryon --base me.jpg --overlay shirt.png --out tryon.png

  # Use Gemini
  TRYON_PROVIDER=gemini tryon tryon --base me.jpg --overlay saree.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			provider, err := newProvider(a.cfg)
			if err != nil {
				return err
			}
			svc := a.sessions(provider, nil)
			// command line paths are relative to the working directory
			fetcher := images.NewFetcher()
			fetcher.MaxBytes = a.cfg.MaxUploadBytes

			base, err := resolveUpload(ctx, fetcher, basePath)
			if err != nil {
				return err
			}
			overlay, err := resolveUpload(ctx, fetcher, overlayPath)
			if err != nil {
				return err
			}
			if name == "" {
				name = overlay.Filename
			}

			view := svc.Create(models.ModeUpload)
			if _, err := svc.SetBase(view.ID, base); err != nil {
				return err
			}
			if _, err := svc.SetOverlay(view.ID, overlay, name); err != nil {
				return err
			}
			if _, err := svc.Adjust(view.ID, adj); err != nil {
				return err
			}

			out, err := svc.TryOn(ctx, view.ID)
			if err != nil {
				return err
			}
			if err := writeOutput(outPath, out.Image); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.Notice.Message)
			fmt.Fprintf(w, "Source:   %s\n", out.Result.Source)
			if out.Result.Provider != "" {
				fmt.Fprintf(w, "Provider: %s\n", out.Result.Provider)
			}
			if out.Result.Error != "" {
				fmt.Fprintf(w, "Error:    %s\n", out.Result.Error)
			}
			fmt.Fprintf(w, "Size:     %dx%d\n", out.Result.Width, out.Result.Height)
			fmt.Fprintf(w, "Time:     %dms\n", out.Result.DurationMS)
			fmt.Fprintf(w, "Output:   %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&basePath, "base", "", "User photo (required)")
	cmd.Flags().StringVar(&overlayPath, "overlay", "", "Clothing image (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "tryon.png", "Output PNG path")
	cmd.Flags().StringVar(&name, "name", "", "Item name recorded in the history")
	cmd.Flags().Float64Var(&adj.Scale, "scale", 100, "Overlay scale in percent for the local fallback")
	cmd.Flags().IntVar(&adj.OffsetX, "offset-x", 0, "Horizontal overlay offset for the local fallback")
	cmd.Flags().IntVar(&adj.OffsetY, "offset-y", 0, "Vertical overlay offset for the local fallback")

	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("overlay")

	return cmd
}

func resolveUpload(ctx context.Context, fetcher *images.Fetcher, ref string) (session.Upload, error) {
	data, mimeType, err := fetcher.Resolve(ctx, ref)
	if err != nil {
		return session.Upload{}, fmt.Errorf("failed to load %s: %w", ref, err)
	}
	filename := filepath.Base(ref)
	if images.IsDataURI(ref) {
		filename = ""
	}
	return session.Upload{Filename: filename, ContentType: mimeType, Data: data}, nil
}
