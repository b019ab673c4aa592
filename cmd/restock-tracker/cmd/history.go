package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		product string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show availability changes, newest first",
		Example: `  restock-tracker history --limit 20
  restock-tracker history --product shop:123`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := newClient().ListHistory(cmd.Context(), product, limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(w, entries)
			}
			if len(entries) == 0 {
				_, err := fmt.Fprintln(w, "No history recorded.")
				return err
			}
			return printHistoryTable(w, entries)
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "only show one product key")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries")
	return cmd
}
