package cmd

import (
	"fmt"
	"strconv"

	"github.com/lehigh-university-libraries/tryon/internal/handoff"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/spf13/cobra"
)

func newHandoffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Publish or consume a catalog selection",
		Long: `Publishes or consumes the single pending selection handed from the catalog
to the try-on flow (--target tryon), or back from the try-on flow to the
catalog (--target catalog). A record is consumed at most once.`,
	}

	cmd.AddCommand(newHandoffPublishCmd())
	cmd.AddCommand(newHandoffConsumeCmd())

	return cmd
}

func handoffTarget(a *app, target string) (*handoff.Store, error) {
	switch target {
	case "tryon":
		return a.tryOnHandoff, nil
	case "catalog":
		return a.catalogHandoff, nil
	default:
		return nil, fmt.Errorf("invalid --target %q: must be 'tryon' or 'catalog'", target)
	}
}

func newHandoffPublishCmd() *cobra.Command {
	var itemID, imageRef, name, mode, target string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Hand an item to the try-on flow",
		Example: `  # Catalog item by id
  tryon handoff publish --item navy-polo --mode camera

  # Custom item by numeric id
  tryon handoff publish --item 1718000000000 --mode upload

  # Arbitrary image
  tryon handoff publish --image ./shirt.png --name "My Shirt"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := handoffTarget(a, target)
			if err != nil {
				return err
			}

			var m models.Mode
			if mode != "" {
				if m, err = models.ParseMode(mode); err != nil {
					return err
				}
			}

			rec := models.HandoffRecord{ImageRef: imageRef, DisplayName: name, Mode: m}
			if itemID != "" {
				if id, convErr := strconv.ParseInt(itemID, 10, 64); convErr == nil {
					rec, err = a.wardrobe.Handoff(cmd.Context(), id, m)
				} else {
					rec, err = a.catalog.Handoff(itemID, m)
				}
				if err != nil {
					return err
				}
			}

			if err := store.Publish(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %q for %s\n", rec.DisplayName, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&itemID, "item", "", "Catalog item id or custom item id")
	cmd.Flags().StringVar(&imageRef, "image", "", "Image path, URL or data URI (when --item is not given)")
	cmd.Flags().StringVar(&name, "name", "", "Display name (when --item is not given)")
	cmd.Flags().StringVar(&mode, "mode", "", "Try-on mode: camera or upload (default camera)")
	cmd.Flags().StringVar(&target, "target", "tryon", "Receiving side: tryon or catalog")

	return cmd
}

func newHandoffConsumeCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Read and clear the pending selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := handoffTarget(a, target)
			if err != nil {
				return err
			}
			rec, ok, err := store.Consume(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(w, "No pending selection")
				return nil
			}

			fmt.Fprintf(w, "Name:   %s\n", rec.DisplayName)
			if rec.Mode != "" {
				fmt.Fprintf(w, "Mode:   %s\n", rec.Mode)
			}
			fmt.Fprintf(w, "Custom: %t\n", rec.IsCustom)
			ref := rec.ImageRef
			if len(ref) > 80 {
				ref = ref[:77] + "..."
			}
			fmt.Fprintf(w, "Image:  %s\n", ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "tryon", "Receiving side: tryon or catalog")

	return cmd
}
