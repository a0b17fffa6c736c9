package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show the DEX pool reserves and rates",
	Args:  cobra.NoArgs,
	Run:   runPool,
}

func init() {
	rootCmd.AddCommand(poolCmd)
}

func runPool(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd, newTerminalPrompter("", false))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	reserves, info := a.reserves().Refresh(ctx)
	table, ratesInfo := a.rates().Refresh(ctx)

	if jsonOutput(cmd) {
		printJSON(map[string]interface{}{
			"contract":    a.contract.ID(),
			"reserves":    reserves,
			"placeholder": info.Placeholder,
			"rates":       table,
		})
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                   LIQUIDITY POOL")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Contract:  %s\n", color.HiBlackString(a.contract.ID()))
	if info.Placeholder {
		color.Yellow("\n  Reserves unavailable.")
	} else {
		fmt.Printf("\n  XLM:       %s\n", humanize(reserves.XLM))
		fmt.Printf("  USDC:      %s\n", humanize(reserves.USDC))
		fmt.Printf("  ETH:       %s\n", humanize(reserves.ETH))
		fmt.Printf("  TVL:       ~$%s\n", humanize(reserves.TVL))
	}
	if !ratesInfo.Placeholder {
		fmt.Printf("\n  1 USDC = %s XLM\n", humanize(table.Value("USDC")))
		fmt.Printf("  1 ETH  = %s XLM\n", humanize(table.Value("ETH")))
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// humanize abbreviates large amounts as 1.23K / 4.56M
func humanize(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.2fK", v/1_000)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
