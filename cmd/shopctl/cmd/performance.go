package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/go-shop-client/sales"
	"github.com/spf13/cobra"
)

func newPerformanceCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "performance",
		Short: "Show shop KPIs, monthly trends and alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			perf, err := c.sales.Performance(cmd.Context())
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SHOP\tTOTAL CASH\tAVG PER DAY\tTO TARGET\tPROFIT MARGIN")
			for _, p := range perf.ShopData {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f%%\n",
					p.DisplayName(), sales.FormatKSH(p.TotalCash), sales.FormatKSH(p.AverageSalesPerDay), p.TargetPercent(), p.ProfitMargin)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(perf.ChartData.Labels) > 0 {
				fmt.Fprintln(out)
				tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "MONTH\t%s\n", strings.Join(datasetLabels(perf.ChartData), "\t"))
				for i, label := range perf.ChartData.Labels {
					row := make([]string, 0, len(perf.ChartData.Datasets))
					for _, ds := range perf.ChartData.Datasets {
						if i < len(ds.Data) {
							row = append(row, sales.FormatKSH(ds.Data[i]))
						} else {
							row = append(row, "-")
						}
					}
					fmt.Fprintf(tw, "%s\t%s\n", label, strings.Join(row, "\t"))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if len(perf.Alerts) > 0 {
				fmt.Fprintln(out, "\nAlerts:")
				for _, alert := range perf.Alerts {
					fmt.Fprintf(out, "  ! %s\n", alert)
				}
			}
			return nil
		},
	}
}

func datasetLabels(chart sales.ChartData) []string {
	labels := make([]string, len(chart.Datasets))
	for i, ds := range chart.Datasets {
		labels[i] = strings.ToUpper(ds.Label)
	}
	return labels
}
