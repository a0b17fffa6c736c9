package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/fee"
	"stellar-swap/pkg/parser"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/tokens"
	"stellar-swap/pkg/types"
)

var quoteInteractive bool

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <pay-token> to <receive-token>",
	Short: "Show what a swap would return, without submitting it",
	Long: `Quote a swap against the contract's current rates.

Examples:
  stellar-swap quote 100 XLM to USDC
  stellar-swap quote 0.5 ETH to XLM --json
  stellar-swap quote --interactive`,
	Args: func(cmd *cobra.Command, args []string) error {
		if quoteInteractive {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	Run: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().BoolVarP(&quoteInteractive, "interactive", "i", false, "Keep quoting amounts typed at the prompt")
}

func runQuote(cmd *cobra.Command, args []string) {
	if quoteInteractive {
		prompter := newTerminalPrompter("", false)
		a, err := newApp(cmd, prompter)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		runInteractiveQuote(cmd, a, prompter)
		return
	}

	req, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err == nil {
		err = parser.ValidateSwapRequest(req)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	pay, receive, err := pair(req.PayToken, req.ReceiveToken)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a, err := newApp(cmd, newTerminalPrompter("", false))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := cmd.Context()
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Fetching contract rates..."
		s.Start()
	}
	_, info := a.rates().Refresh(ctx)
	est := a.fees().Estimate(ctx, fee.Input{Amount: req.Amount, Pay: pay, Receive: receive})
	if !jsonOutput(cmd) {
		s.Stop()
	}

	display := buildQuoteDisplay(a, req, pay, receive, est)
	if jsonOutput(cmd) {
		printJSON(display)
		return
	}
	if info.Placeholder {
		color.Yellow("\nContract rates unavailable, quoting with reference prices.")
	}
	displayQuote(display)
}

func buildQuoteDisplay(a *app, req *types.SwapRequest, pay, receive tokens.Token, est fee.Estimate) types.QuoteDisplay {
	q := a.quotes.Quote(pay, receive, req.Amount)
	d := types.QuoteDisplay{
		PayAmount:     q.PayAmount,
		PayToken:      pay.Symbol,
		ReceiveAmount: q.ReceiveAmount,
		ReceiveToken:  receive.Symbol,
		Rate:          a.quotes.RateString(pay, receive),
		Fee:           est.XLM(),
		FeeSource:     string(est.Source),
	}
	if amount, ok := quote.ParseAmount(q.ReceiveAmount); ok {
		floor := quote.MinimumOutput(receive.ToUnits(amount), a.cfg.Swap.SlippageBps)
		d.MinReceive = quote.Display(receive.FromUnits(floor), receive)
	}
	return d
}

func displayQuote(d types.QuoteDisplay) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  You Pay:           %s %s\n", d.PayAmount, color.YellowString(d.PayToken))
	fmt.Printf("  You Receive:       ~%s %s\n", d.ReceiveAmount, color.YellowString(d.ReceiveToken))
	if d.MinReceive != "" {
		fmt.Printf("  Minimum Received:  %s %s\n", d.MinReceive, d.ReceiveToken)
	}
	fmt.Printf("  Rate:              %s\n", d.Rate)
	fmt.Printf("  Network Fee:       %s\n", d.Fee)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// withTimeout bounds one-shot network calls of the read-only commands
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}
