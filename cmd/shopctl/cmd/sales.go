package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-shop-client/internal/utils"
	"github.com/jrsteele09/go-shop-client/sales"
	"github.com/spf13/cobra"
)

func newSalesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "List, add and delete sales",
	}
	cmd.AddCommand(newSalesListCmd(c), newSalesAddCmd(c), newSalesDeleteCmd(c))
	return cmd
}

func newSalesListCmd(c *cli) *cobra.Command {
	var (
		filter  sales.Filter
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sales, optionally filtered by shop and date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			ctx := cmd.Context()

			result, err := c.sales.ListSalesPage(ctx, filter, page, perPage)
			if err != nil {
				return userError(err)
			}
			shops, err := c.sales.ListShops(ctx)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Could not load shop names")
			}

			out := cmd.OutOrStdout()
			if result.Total == 0 {
				fmt.Fprintln(out, "No sales found")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSHOP\tDATE\tCASH IN\tCASH OUT\tTILL IN\tTILL OUT\tCLOSING")
			for _, s := range result.Items {
				day, ok := s.Day()
				if !ok {
					day = s.Date
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					s.ID, sales.ShopName(shops, s.Shop), day, s.CashIn, s.CashOut, s.TillIn, s.TillOut, utils.Value(s.ClosingBalance))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Page %d of %d (%d sales)\n", result.Number, result.TotalPages, result.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&filter.ShopID, "shop", 0, "only sales of this shop id")
	cmd.Flags().StringVar(&filter.Date, "date", "", "only sales on this day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", sales.DefaultPerPage, "sales per page")
	return cmd
}

func newSalesAddCmd(c *cli) *cobra.Command {
	var (
		in             sales.NewSale
		closingBalance float64
		imagePath      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			if cmd.Flags().Changed("closing-balance") {
				in.ClosingBalance = utils.Ptr(closingBalance)
			}
			if imagePath != "" {
				f, err := os.Open(imagePath)
				if err != nil {
					return fmt.Errorf("open image: %w", err)
				}
				defer f.Close()
				in.Image = &sales.Attachment{Filename: filepath.Base(imagePath), Content: f}
			}

			created, err := c.sales.CreateSale(cmd.Context(), in)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sale %d added\n", created.ID)
			return nil
		},
	}

	cmd.Flags().IntVar(&in.Shop, "shop", 0, "shop id")
	cmd.Flags().StringVar(&in.Date, "date", time.Now().Format(time.DateOnly), "sale day (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&in.CashIn, "cash-in", 0, "cash received")
	cmd.Flags().Float64Var(&in.CashOut, "cash-out", 0, "cash paid out")
	cmd.Flags().Float64Var(&in.TillIn, "till-in", 0, "till opening amount")
	cmd.Flags().Float64Var(&in.TillOut, "till-out", 0, "till closing amount")
	cmd.Flags().Float64Var(&closingBalance, "closing-balance", 0, "closing balance")
	cmd.Flags().StringVar(&imagePath, "image", "", "receipt image to attach")
	_ = cmd.MarkFlagRequired("shop")
	return cmd
}

func newSalesDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid sale id %q", args[0])
			}
			if err := c.sales.DeleteSale(cmd.Context(), id); err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sale %d deleted\n", id)
			return nil
		},
	}
}

func newShopsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "shops",
		Short: "List shops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			shops, err := c.sales.ListShops(cmd.Context())
			if err != nil {
				return userError(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, s := range shops {
				fmt.Fprintf(tw, "%d\t%s\n", s.ID, s.Name)
			}
			return tw.Flush()
		},
	}
}
