package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/tokens"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List the tokens the DEX knows about",
	Long: `List the tokens of the built-in registry.

You can filter tokens by symbol or name.

Examples:
  stellar-swap tokens
  stellar-swap tokens --symbol usd`,
	Args: cobra.NoArgs,
	Run:  runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol or name")
}

func runListTokens(cmd *cobra.Command, args []string) {
	filtered := tokens.Filter(filterSymbol)

	if jsonOutput(cmd) {
		if filtered == nil {
			filtered = []tokens.Token{}
		}
		printJSON(filtered)
		return
	}
	displayTokens(filtered)
}

func displayTokens(list []tokens.Token) {
	if len(list) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90) + "\n")

	for _, t := range list {
		address := t.ContractID
		if len(address) > 40 {
			address = address[:37] + "..."
		}
		fmt.Printf("  %-16s  %-22s  %d decimals  %s\n",
			color.YellowString(t.Symbol),
			t.Name,
			t.Decimals,
			color.HiBlackString(address))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(list))
}
