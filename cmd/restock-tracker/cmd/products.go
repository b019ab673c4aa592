package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/restock-tracker/internal/api/client"
)

func productsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "products",
		Short: "Query tracked products",
	}
	root.AddCommand(productsListCmd(), productsGetCmd())
	return root
}

func productsListCmd() *cobra.Command {
	var f client.ProductFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked products",
		Example: `  restock-tracker products list
  restock-tracker products list --source shop --status available
  restock-tracker products list --all --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := newClient().ListProducts(cmd.Context(), f)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(w, list)
			}
			if len(list.Products) == 0 {
				_, err := fmt.Fprintln(w, "No products found.")
				return err
			}
			return printProductsTable(w, list)
		},
	}

	cmd.Flags().StringVar(&f.Source, "source", "", "filter by source prefix")
	cmd.Flags().StringVar(&f.Status, "status", "", "filter by availability (available, unavailable)")
	cmd.Flags().BoolVar(&f.IncludeHidden, "all", false, "include hidden products")
	return cmd
}

func productsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Show one product",
		Example: `  restock-tracker products get shop:123:456`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newClient().GetProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), p)
			}
			return printProductDetail(cmd.OutOrStdout(), p)
		},
	}
}
