package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/config"
	"stellar-swap/pkg/client"
	"stellar-swap/pkg/swap"
	"stellar-swap/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a submitted swap",
	Long: `Check the status of a swap transaction by its hash.

Examples:
  stellar-swap status 3f1c...9a2b
  stellar-swap status 3f1c...9a2b --watch
  stellar-swap status 3f1c...9a2b --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the transaction settles")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	hash := strings.TrimSpace(args[0])

	a, err := newApp(cmd, newTerminalPrompter("", false))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		watchTxStatus(cmd, a, hash)
	} else {
		checkTxStatus(cmd, a, hash)
	}
}

func fetchStatus(cmd *cobra.Command, a *app, hash string) (types.SwapStatus, error) {
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	status := types.SwapStatus{TxHash: hash}
	res, err := a.rpc.GetTransaction(ctx, hash)
	if err != nil {
		return status, err
	}
	status.Status = res.Status
	status.Ledger = res.Ledger
	if res.Status == client.TxSuccess {
		status.ExplorerURL = swap.ExplorerURL(a.cfg.Network.ExplorerURL, hash)
	}

	// the demo ledger forgets transactions between runs, receipts do not
	if res.Status == client.TxNotFound {
		if store, err := a.history(); err == nil {
			if rec, err := store.Get(hash); err == nil {
				status.Status = strings.ToUpper(rec.Outcome)
				status.Message = fmt.Sprintf("from local receipt of %s", rec.Timestamp.Format("2006-01-02 15:04:05"))
				if a.cfg.Mode == config.ModeDemo {
					status.Message += " (demo ledger)"
				}
			}
		}
	}
	return status, nil
}

func checkTxStatus(cmd *cobra.Command, a *app, hash string) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	status, err := fetchStatus(cmd, a, hash)
	if !jsonOutput(cmd) {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput(cmd) {
		printJSON(status)
	} else {
		displayStatus(status)
	}
}

func watchTxStatus(cmd *cobra.Command, a *app, hash string) {
	if jsonOutput(cmd) {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		status, err := fetchStatus(cmd, a, hash)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayStatus(status)
			if status.Status == client.TxSuccess || status.Status == client.TxFailed {
				return
			}
		}

		select {
		case <-cmd.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func displayStatus(status types.SwapStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Hash:            %s\n", color.CyanString(status.TxHash))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	if status.Ledger > 0 {
		fmt.Printf("  Ledger:          %d\n", status.Ledger)
	}
	if status.ExplorerURL != "" {
		fmt.Printf("  Explorer:        %s\n", status.ExplorerURL)
	}
	if status.Message != "" {
		fmt.Printf("  Note:            %s\n", color.HiBlackString(status.Message))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case client.TxSuccess:
		return color.GreenString(status)
	case client.TxNotFound, client.SendPending, "CONFIRMING":
		return color.YellowString(status)
	case client.TxFailed, "CANCELLED":
		return color.RedString(status)
	default:
		return status
	}
}
