package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lehigh-university-libraries/tryon/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded try-on results",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistoryInspectCmd())
	cmd.AddCommand(newHistoryReportCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent try-on results",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tITEM\tSOURCE\tPROVIDER\tSIZE\tDURATION")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dx%d\t%dms\n",
					r.CreatedAt.Local().Format(time.DateTime), r.ItemName, r.Source, r.Provider, r.Width, r.Height, r.DurationMS)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of results to show (0 for all)")

	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Export all try-on results to a parquet file",
		Example: `  tryon history export --out history.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			n, err := a.history.ExportParquet(cmd.Context(), f)
			if err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", outPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "💾 Exported %d results to %s\n", n, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "history.parquet", "Output parquet path")

	return cmd
}

func newHistoryInspectCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarise an exported history file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open parquet file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to stat file: %w", err)
			}
			results, err := history.ReadParquet(f, info.Size())
			if err != nil {
				return err
			}

			var remote, local int
			var total int64
			for _, r := range results {
				if r.Source == "remote" {
					remote++
				} else {
					local++
				}
				total += r.DurationMS
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Results:        %d\n", len(results))
			fmt.Fprintf(w, "Remote:         %d\n", remote)
			fmt.Fprintf(w, "Local fallback: %d\n", local)
			if len(results) > 0 {
				fmt.Fprintf(w, "Avg duration:   %dms\n", total/int64(len(results)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "Exported parquet file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newHistoryReportCmd() *cobra.Command {
	var format string
	var limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise fallback rate, provider latency and popular items",
		Example: `  tryon history report
  tryon history report --format csv > history.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return history.Summarize(results).WriteReport(cmd.OutOrStdout(), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, yaml or csv")
	cmd.Flags().IntVar(&limit, "limit", 0, "Only include the most recent N results (0 for all)")

	return cmd
}
