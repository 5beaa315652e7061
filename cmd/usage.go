package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/d1childress/ccmanager/internal/app"
	"github.com/d1childress/ccmanager/internal/ui"
	"github.com/d1childress/ccmanager/internal/usage"
)

const usageDateLayout = "2006-01-02 15:04"

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show assistant token and cost history",
}

var usageShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List usage samples in a time range",
	RunE:  withApp(runUsageShow),
}

var usageTotalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Sum usage over a time range",
	RunE:  withApp(runUsageTotals),
}

func init() {
	for _, c := range []*cobra.Command{usageShowCmd, usageTotalsCmd} {
		c.Flags().String("range", string(usage.Range7d), "time range: 24h, 7d, 30d or 3mo")
	}
	usageShowCmd.Flags().String("metric", string(usage.MetricTokens), "metric: tokens, claude_tokens, codex_tokens, calls or cost")

	usageCmd.AddCommand(usageShowCmd, usageTotalsCmd)
	rootCmd.AddCommand(usageCmd)
}

func rangeFlag(cmd *cobra.Command) (usage.Range, error) {
	s, _ := cmd.Flags().GetString("range")
	return usage.ParseRange(s)
}

func runUsageShow(cmd *cobra.Command, args []string, a *app.Context) error {
	r, err := rangeFlag(cmd)
	if err != nil {
		return err
	}
	metricName, _ := cmd.Flags().GetString("metric")
	metric, err := usage.ParseMetric(metricName)
	if err != nil {
		return err
	}

	var rows []ui.UsageRow
	for p := range a.Usage.Query(r, metric) {
		value := ui.FormatCount(int(p.Value))
		if metric == usage.MetricCost {
			value = ui.FormatCost(p.Value)
		}
		rows = append(rows, ui.UsageRow{Date: p.Date.Local().Format(usageDateLayout), Value: value})
	}

	if len(rows) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No usage in the last %s\n", r)
		return nil
	}
	ui.UsageTable(cmd.OutOrStdout(), string(metric), rows)
	return nil
}

func runUsageTotals(cmd *cobra.Command, args []string, a *app.Context) error {
	r, err := rangeFlag(cmd)
	if err != nil {
		return err
	}

	t := a.Usage.Totals(r)
	lines := []string{
		fmt.Sprintf("%-14s %s", "Claude tokens:", ui.FormatCount(t.ClaudeTokens)),
		fmt.Sprintf("%-14s %s", "Codex tokens:", ui.FormatCount(t.CodexTokens)),
		fmt.Sprintf("%-14s %d", "API calls:", t.APICalls),
		fmt.Sprintf("%-14s %s", "Cost:", ui.FormatCost(t.Cost)),
	}
	ui.Box(cmd.OutOrStdout(), fmt.Sprintf("Usage over the last %s", r), strings.Join(lines, "\n"))
	return nil
}
