package cmd

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/client"
)

var chartDays int

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Show the XLM price history",
	Long: `Show the daily XLM price for the last days and the change over the period.

Examples:
  stellar-swap chart
  stellar-swap chart --days 7`,
	Args: cobra.NoArgs,
	Run:  runChart,
}

func init() {
	rootCmd.AddCommand(chartCmd)

	chartCmd.Flags().IntVar(&chartDays, "days", 0, "Number of days (default from config)")
}

func runChart(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd, newTerminalPrompter("", false))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	days := a.cfg.Prices.Days
	if chartDays > 0 {
		days = chartDays
	}

	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Fetching price history..."
		s.Start()
	}
	points, err := a.prices.History(ctx, a.cfg.Prices.Asset, a.cfg.Prices.Currency, days)
	if !jsonOutput(cmd) {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	change := client.ChangePercent(points)
	if jsonOutput(cmd) {
		printJSON(map[string]interface{}{"points": points, "change_percent": change})
		return
	}
	displayChart(points, change, strings.ToUpper(a.cfg.Prices.Currency))
}

func displayChart(points []client.PricePoint, change float64, currency string) {
	if len(points) == 0 {
		fmt.Println("\nNo price data.")
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.Price)
		hi = math.Max(hi, p.Price)
	}

	const width = 40
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      XLM PRICE (%s)", currency)
	fmt.Println(strings.Repeat("=", 70) + "\n")
	for _, p := range points {
		n := 1
		if hi > lo {
			n += int((p.Price - lo) / (hi - lo) * (width - 1))
		}
		fmt.Printf("  %s  %-9.5f %s\n", p.Time.Format("Jan 02"), p.Price, color.CyanString(strings.Repeat("█", n)))
	}

	changeStr := fmt.Sprintf("%+.2f%%", change)
	if change >= 0 {
		changeStr = color.GreenString(changeStr)
	} else {
		changeStr = color.RedString(changeStr)
	}
	fmt.Printf("\n  Change over %d days: %s\n", len(points)-1, changeStr)
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
