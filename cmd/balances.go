package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/poller"
	"stellar-swap/pkg/tokens"
)

var balancesWallet string

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show the balances of a wallet",
	Long: `Connect a wallet and show its token balances.

Examples:
  stellar-swap balances
  stellar-swap balances --wallet main --json`,
	Args: cobra.NoArgs,
	Run:  runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)

	balancesCmd.Flags().StringVar(&balancesWallet, "wallet", "", "Wallet id")
}

func runBalances(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd, newTerminalPrompter(balancesWallet, false))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := a.connect(cmd.Context(), jsonOutput(cmd)); err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Loading balances..."
		s.Start()
	}
	balances := a.balances()
	snap, info := balances.Refresh(ctx)
	if !jsonOutput(cmd) {
		s.Stop()
	}

	if jsonOutput(cmd) {
		printJSON(map[string]interface{}{"account": snap.Account, "balances": snap.Balances, "placeholder": info.Placeholder})
		return
	}
	if info.Placeholder {
		color.Yellow("\nBalances unavailable, showing demo placeholder values.")
	}
	printBalances(balances)
}

// printBalances lists registry tokens the account holds. With symbols given,
// only those are listed.
func printBalances(b *poller.Balances, symbols ...string) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	color.Green("                  BALANCES")
	fmt.Println(strings.Repeat("=", 50) + "\n")

	list := tokens.List()
	if len(symbols) > 0 {
		list = list[:0]
		for _, sym := range symbols {
			if t, ok := tokens.Find(sym); ok {
				list = append(list, t)
			}
		}
	}
	shown := 0
	for _, t := range list {
		amount, ok := b.Balance(t.Symbol)
		if !ok {
			continue
		}
		fmt.Printf("  %-16s %s\n", color.YellowString(t.Symbol), amount.StringFixed(int32(t.Decimals)))
		shown++
	}
	if shown == 0 {
		fmt.Println("  No balances.")
	}
	fmt.Println("\n" + strings.Repeat("=", 50) + "\n")
}
