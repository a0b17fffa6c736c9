package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "stellar-swap",
	Short: "A terminal front end for a Stellar testnet DEX contract",
	Long: `stellar-swap quotes and submits token swaps against a DEX contract on the
Stellar testnet. It signs with wallets configured on this machine and can run
fully offline against an in-process demo ledger.

Examples:
  stellar-swap swap 100 XLM to USDC
  stellar-swap quote 1 ETH to XLM
  stellar-swap orderbook --watch
  stellar-swap status <tx-hash> --watch
  stellar-swap serve --addr :8080`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Ctrl+C cancels the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("mode", "", "Ledger to use: demo (in-process) or live (testnet)")
	_ = viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode"))
}

func printError(err error) {
	fmt.Printf("\n%s %v\n\n", color.RedString("Error:"), err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", color.GreenString(message))
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
