package cmd

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/tryon/internal/compositor"
	"github.com/lehigh-university-libraries/tryon/internal/config"
	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/spf13/cobra"
)

func newComposeCmd() *cobra.Command {
	var basePath, overlayPath, outPath string
	var adj models.Adjustment

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Overlay a clothing image onto a photo locally",
		Long: `Composites a clothing image onto a user photo without any remote service.

The photo is scaled to cover the canvas (TRYON_CANVAS_WIDTH x TRYON_CANVAS_HEIGHT),
cropping whichever sides overflow, and the clothing is multiply-blended on top. --scale, --offset-x and --offset-y
move and resize the overlay. Images may be file paths, http(s) URLs or data URIs.`,
		Example: `  # Default placement
  tryon compose --base me.jpg --overlay shirt.png --out result.png

  # Larger overlay shifted down
  tryon compose --base me.jpg --overlay shirt.png --scale 130 --offset-y 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fetcher := images.NewFetcher()
			fetcher.MaxBytes = cfg.MaxUploadBytes

			base, err := loadImage(cmd.Context(), fetcher, basePath)
			if err != nil {
				return fmt.Errorf("failed to load base image: %w", err)
			}
			overlay, err := loadImage(cmd.Context(), fetcher, overlayPath)
			if err != nil {
				return fmt.Errorf("failed to load overlay image: %w", err)
			}

			out, err := compositor.New(cfg.CompositorOptions()).Compose(base, overlay, cfg.Canvas(), adj)
			if err != nil {
				return err
			}
			data, err := images.EncodePNG(out)
			if err != nil {
				return err
			}
			if err := writeOutput(outPath, data); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %dx%d composite to %s\n", out.Bounds().Dx(), out.Bounds().Dy(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&basePath, "base", "", "User photo (required)")
	cmd.Flags().StringVar(&overlayPath, "overlay", "", "Clothing image (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "result.png", "Output PNG path")
	cmd.Flags().Float64Var(&adj.Scale, "scale", 100, "Overlay scale in percent")
	cmd.Flags().IntVar(&adj.OffsetX, "offset-x", 0, "Horizontal overlay offset in pixels")
	cmd.Flags().IntVar(&adj.OffsetY, "offset-y", 0, "Vertical overlay offset in pixels")

	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("overlay")

	return cmd
}

func loadImage(ctx context.Context, fetcher *images.Fetcher, ref string) (image.Image, error) {
	data, _, err := fetcher.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, _, err := images.Decode(data)
	return img, err
}

func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Debug("Output written", "path", path, "bytes", len(data))
	return nil
}
