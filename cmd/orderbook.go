package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/poller"
)

var watchOrderbook bool

var orderbookCmd = &cobra.Command{
	Use:     "orderbook",
	Aliases: []string{"book"},
	Short:   "Show the XLM order book",
	Long: `Show the top bids and asks of the XLM/USDC order book. When the ledger has
no offers, synthesized levels are shown and marked as such.

Examples:
  stellar-swap orderbook
  stellar-swap orderbook --watch`,
	Args: cobra.NoArgs,
	Run:  runOrderbook,
}

func init() {
	rootCmd.AddCommand(orderbookCmd)

	orderbookCmd.Flags().BoolVarP(&watchOrderbook, "watch", "w", false, "Refresh on the configured interval until interrupted")
}

func runOrderbook(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd, newTerminalPrompter("", false))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	book := a.orderbook()

	if !watchOrderbook {
		ctx, cancel := withTimeout(cmd.Context())
		defer cancel()
		snap, info := book.Refresh(ctx)
		if jsonOutput(cmd) {
			printJSON(map[string]interface{}{"bids": snap.Bids, "asks": snap.Asks, "placeholder": info.Placeholder})
			return
		}
		displayOrderbook(a.cfg.Orderbook.CounterCode, snap, info)
		return
	}

	if jsonOutput(cmd) {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}
	fmt.Printf("\nRefreshing every %s. Press Ctrl+C to stop.\n", a.cfg.Pollers.OrderbookInterval)
	book.OnUpdate = func(snap poller.OrderbookSnapshot, placeholder bool) {
		displayOrderbook(a.cfg.Orderbook.CounterCode, snap, poller.Info{Placeholder: placeholder})
	}
	book.Run(cmd.Context())
}

func displayOrderbook(counter string, snap poller.OrderbookSnapshot, info poller.Info) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  ORDER BOOK  XLM/%s", counter)
	fmt.Println(strings.Repeat("=", 60))
	if info.Placeholder {
		color.Yellow("  (simulated levels, no live offers)")
	}

	fmt.Printf("\n  %-14s %14s\n", "PRICE", "AMOUNT (XLM)")
	fmt.Println("  " + strings.Repeat("-", 29))
	for _, l := range snap.Asks {
		fmt.Printf("  %-14s %14s\n", color.RedString("%-14s", l.Price), l.Amount)
	}
	fmt.Println("  " + strings.Repeat("-", 29))
	for _, l := range snap.Bids {
		fmt.Printf("  %-14s %14s\n", color.GreenString("%-14s", l.Price), l.Amount)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
