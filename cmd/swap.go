package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/fee"
	"stellar-swap/pkg/parser"
	"stellar-swap/pkg/swap"
	"stellar-swap/pkg/wallet"
)

var (
	swapWallet string
	noConfirm  bool
	noHistory  bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <pay-token> to <receive-token>",
	Short: "Swap tokens through the DEX contract",
	Long: `Quote, sign and submit a swap, then wait for it to be confirmed.

The transaction is signed by one of the wallets in .stellar-swap.yaml (the
secret seed is read from the environment variable the wallet names). In demo
mode an ephemeral wallet funded with 10000 XLM is used when none is configured.

Examples:
  stellar-swap swap 100 XLM to USDC
  stellar-swap swap 0.01 ETH to XLM --wallet main
  stellar-swap swap 100 XLM to USDC --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&swapWallet, "wallet", "", "Wallet id to sign with")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompts")
	swapCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record a receipt")
}

func runSwap(cmd *cobra.Command, args []string) {
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

	jsonOut := jsonOutput(cmd)
	prompter := newTerminalPrompter(swapWallet, noConfirm || jsonOut)
	a, err := newApp(cmd, prompter)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	ctx := cmd.Context()

	if err := a.connect(ctx, jsonOut); err != nil {
		if errors.Is(err, wallet.ErrWalletNotDetected) && !jsonOut {
			fmt.Println("Add a wallet with: stellar-swap config init")
		}
		if !errors.Is(err, wallet.ErrUserCancelled) {
			printError(err)
		}
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOut {
		s.Suffix = " Fetching balances and rates..."
		s.Start()
	}
	balances := a.balances()
	balances.Refresh(ctx)
	a.rates().Refresh(ctx)
	est := a.fees().Estimate(ctx, fee.Input{Amount: req.Amount, Pay: pay, Receive: receive})
	if !jsonOut {
		s.Stop()
	}

	display := buildQuoteDisplay(a, req, pay, receive, est)
	if !jsonOut {
		displayQuote(display)
		if have, ok := balances.Balance(pay.Symbol); ok {
			fmt.Printf("  Balance: %s %s\n", have.String(), pay.Symbol)
		}
		if !noConfirm && !prompter.confirm("Proceed with swap? (y/N): ") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	var recorder swap.Recorder
	if !noHistory {
		store, err := a.history()
		if err != nil {
			a.log.Warn().Err(err).Msg("history disabled")
		} else {
			recorder = store
		}
	}

	refreshed := make(chan struct{})
	flow := a.flow(balances, recorder, func() {
		balances.Refresh(ctx)
		close(refreshed)
	})

	done := make(chan struct{})
	if !jsonOut {
		go renderEvents(flow.Events(), s, done)
	} else {
		close(done)
	}

	res, err := flow.Start(ctx, swap.Request{Pay: pay, Receive: receive, Amount: req.Amount})
	if err != nil {
		s.Stop()
		printError(err)
		os.Exit(1)
	}
	// the events channel is never closed; wait until the terminal event was drawn
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Stop()
	}

	if jsonOut {
		printJSON(swapResultJSON(res))
	} else {
		displayResult(res)
		if res.Outcome == swap.Success {
			<-refreshed
			printBalances(balances, pay.Symbol, receive.Symbol)
		}
	}
	// the signing key stays loaded only for the duration of the swap
	a.session.Disconnect()
	if res.Outcome != swap.Success {
		os.Exit(1)
	}
}

// renderEvents draws flow events until a terminal one arrives
func renderEvents(events <-chan swap.Event, s *spinner.Spinner, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		if ev.State.Terminal() {
			s.Stop()
			return
		}
		if ev.Message == "" {
			continue
		}
		s.Suffix = " " + ev.Message
		s.Restart()
	}
}

func swapResultJSON(res *swap.Result) map[string]interface{} {
	out := map[string]interface{}{
		"id":             res.ID,
		"outcome":        res.Outcome.String(),
		"pay_amount":     res.PayAmount,
		"receive_amount": res.ReceiveAmount,
		"min_out":        res.MinOut,
		"tx_hash":        res.TxHash,
		"explorer_url":   res.ExplorerURL,
		"polls":          res.Polls,
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	return out
}

func displayResult(res *swap.Result) {
	last := res.Events[len(res.Events)-1]
	switch res.Outcome {
	case swap.Success:
		color.Green("\n✓ %s", last.Message)
		fmt.Printf("  Transaction: %s\n", color.CyanString(res.TxHash))
		if res.ExplorerURL != "" {
			fmt.Printf("  Explorer:    %s\n", res.ExplorerURL)
		}
		fmt.Printf("  Confirmed after %d status checks\n", res.Polls)
	case swap.Cancelled:
		color.Yellow("\n%s", last.Message)
	default:
		color.Red("\n✗ %s", last.Message)
		if res.Err != nil {
			fmt.Printf("  Reason: %v\n", res.Err)
		}
		if res.TxHash != "" {
			fmt.Println("\nYou can check the transaction later with:")
			color.Cyan("  stellar-swap status %s\n", res.TxHash)
		}
	}
	fmt.Println()
}
