package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/lehigh-university-libraries/tryon/internal/catalog"
	"github.com/lehigh-university-libraries/tryon/internal/config"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the preset clothing catalog",
	}

	cmd.AddCommand(newCatalogListCmd())

	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var category, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog items",
		Long: `Lists preset catalog items from TRYON_CATALOG_FILE, or the built-in catalog
when that file does not exist.`,
		Example: `  tryon catalog list
  tryon catalog list --category sarees
  tryon catalog list --search silk`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.CatalogFile)
			if err != nil {
				return err
			}

			var items []models.CatalogItem
			if search != "" {
				for _, it := range cat.Search(search) {
					if category == "" || category == catalog.CategoryAll || it.Category == category {
						items = append(items, it)
					}
				}
			} else {
				items = cat.ItemsIn(category)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tTAGS")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Category, strings.Join(it.Tags, ", "))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d items\n", len(items))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "all", "Category id to show")
	cmd.Flags().StringVar(&search, "search", "", "Search name, description, category and tags")

	return cmd
}
