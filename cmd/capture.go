package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/tryon/internal/capture"
	"github.com/lehigh-university-libraries/tryon/internal/config"
	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/spf13/cobra"
)

func newCaptureCmd() *cobra.Command {
	var device, outPath string
	c := capture.DefaultConstraints()

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Snapshot one frame from a camera",
		Long: `Opens the capture device, grabs a single frame at its native resolution and
releases the device.

The device is TRYON_CAMERA or --device: "file:<path>" for a still image, or
an http(s) URL returning JPEG/PNG snapshots (IP cameras). If the device cannot
meet the requested size or facing, capture is retried once with no constraints.`,
		Example: `  tryon capture --device http://192.168.1.20/snapshot.jpg --out me.png
  tryon capture --width 1280 --height 720`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if device == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				device = cfg.Camera
			}
			dev, err := capture.FromSpec(device)
			if err != nil {
				return fmt.Errorf("%s: %w", capture.Remediation(err), err)
			}

			adapter := capture.NewAdapter(dev)
			defer adapter.Close()

			frame, err := adapter.CaptureOnce(cmd.Context(), c)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "❌ %s\n", capture.Remediation(err))
				return err
			}
			data, err := images.EncodePNG(frame)
			if err != nil {
				return err
			}
			if err := writeOutput(outPath, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "📸 Captured %dx%d frame to %s\n", frame.Bounds().Dx(), frame.Bounds().Dy(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Capture device (defaults to TRYON_CAMERA)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "capture.png", "Output PNG path")
	cmd.Flags().IntVar(&c.Width, "width", c.Width, "Preferred minimum width")
	cmd.Flags().IntVar(&c.Height, "height", c.Height, "Preferred minimum height")
	cmd.Flags().StringVar(&c.Facing, "facing", c.Facing, "Preferred facing: user or environment")

	return cmd
}
