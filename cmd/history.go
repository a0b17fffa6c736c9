package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/history"
)

var (
	historyAccount string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List receipts of past swap attempts",
	Long: `List the receipts recorded for swap attempts on this machine, newest first.

Examples:
  stellar-swap history
  stellar-swap history --account G... --limit 5`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyAccount, "account", "", "Only show swaps from this account")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of receipts")
}

func runHistory(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd, newTerminalPrompter("", false))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	store, err := a.history()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var records []history.Record
	if historyAccount != "" {
		records = store.ListByAccount(historyAccount)
	} else {
		records = store.List()
	}
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[:historyLimit]
	}

	if jsonOutput(cmd) {
		if records == nil {
			records = []history.Record{}
		}
		printJSON(records)
		return
	}
	displayHistory(records, store.FilePath())
}

func displayHistory(records []history.Record, path string) {
	if len(records) == 0 {
		fmt.Println("\nNo swaps recorded yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 120))
	color.Green("                                              SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 120))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTIMESTAMP\tPAY\tRECEIVE\tOUTCOME\tPOLLS\tTX HASH")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, r := range records {
		hash := r.TxHash
		if len(hash) > 16 {
			hash = hash[:8] + "..." + hash[len(hash)-8:]
		}
		if hash == "" {
			hash = "-"
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s %s\t%s\t%d\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			r.PayAmount, r.PayToken,
			r.ReceiveAmount, r.ReceiveToken,
			getColoredStatus(r.Outcome),
			r.Polls,
			hash)
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 120))
	fmt.Printf("\n%d receipts in %s\n\n", len(records), color.HiBlackString(path))
}
