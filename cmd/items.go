package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/wardrobe"
	"github.com/spf13/cobra"
)

func newItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage uploaded custom clothing items",
		Long: `Lists, adds and deletes the user's custom clothing items.

Items are stored as one collection in the database (TRYON_DB_PATH) and are
available to the catalog and the try-on sessions of the HTTP API.`,
	}

	cmd.AddCommand(newItemsListCmd())
	cmd.AddCommand(newItemsAddCmd())
	cmd.AddCommand(newItemsDeleteCmd())

	return cmd
}

func newItemsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List custom items",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.wardrobe.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No custom items yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUPLOADED")
			for _, it := range items {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", it.ID, it.DisplayName, it.UploadDate)
			}
			return tw.Flush()
		},
	}
}

func newItemsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "add <image file>",
		Short:   "Upload an image as a custom item",
		Example: `  tryon items add ./my-jacket.jpg`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			item, err := a.wardrobe.Add(cmd.Context(), wardrobe.Upload{
				Filename:    filepath.Base(args[0]),
				ContentType: images.SniffType(data),
				Data:        data,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Added %q (id %d)\n", item.DisplayName, item.ID)
			return nil
		},
	}
}

func newItemsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a custom item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.wardrobe.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted item %d\n", id)
			return nil
		},
	}
}
