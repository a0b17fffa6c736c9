package cmd

import (
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/config"
)

var (
	configPath  string
	configForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example .stellar-swap.yaml",
	Long: `Write a configuration file with every setting at its default value and one
example wallet. Secrets never go into the file: each wallet names the
environment variable holding its secret seed.

Examples:
  stellar-swap config init
  stellar-swap config init --path ./.stellar-swap.yaml --force`,
	Args: cobra.NoArgs,
	Run:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&configPath, "path", "", "Destination (default $HOME/.stellar-swap.yaml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		path = filepath.Join(home, ".stellar-swap.yaml")
	}

	if err := config.WriteExample(path, configForce); err != nil {
		printError(err)
		os.Exit(1)
	}
	printSuccess("✓ Wrote " + path)
	color.Cyan("  export STELLAR_SWAP_MAIN_SECRET=S...   # secret seed of the example wallet\n")
}
