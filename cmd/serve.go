package cmd

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/api"
	"stellar-swap/pkg/metrics"
	"stellar-swap/pkg/poller"
	"stellar-swap/pkg/wallet"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve quotes, fees, balances, order book and pool data over HTTP",
	Long: `Run the read side of the front end as a JSON API. Pollers keep the order
book, pool reserves and contract rates fresh in the background.

Examples:
  stellar-swap serve
  stellar-swap serve --addr :9090
  STELLAR_SWAP_METRICS_ADDR=:9100 stellar-swap serve`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd, wallet.StaticPrompter{})
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	book, reserves, rates := a.orderbook(), a.reserves(), a.rates()
	for _, run := range []func(context.Context){book.Run, reserves.Run, rates.Run} {
		go run(ctx)
	}
	deps := api.Deps{
		Quotes:    a.quotes,
		Orderbook: book,
		Reserves:  reserves,
		Prices:    a.prices,
	}

	// fee simulations need a source account; the first configured wallet is used when present
	balances := a.balances()
	go poller.TriggerOn(ctx, a.session.Subscribe(), balances.Trigger)
	if err := a.connect(ctx, true); err != nil {
		a.log.Info().Err(err).Msg("no wallet connected, fee estimates use the fallback value")
	} else {
		go balances.Run(ctx)
		deps.Balances = balances
		defer a.session.Disconnect()
	}

	if a.cfg.MetricsAddr != "" {
		srv := metrics.Serve(a.cfg.MetricsAddr)
		defer srv.Close()
		a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("metrics listening")
	}

	fees := a.fees()
	defer fees.Stop()
	deps.Fees = fees
	server := api.NewServer(api.Config{
		SlippageBps:   a.cfg.Swap.SlippageBps,
		PriceAsset:    a.cfg.Prices.Asset,
		PriceCurrency: a.cfg.Prices.Currency,
		PriceDays:     a.cfg.Prices.Days,
		Metrics:       a.cfg.MetricsAddr == "",
	}, deps, a.log)

	color.Green("\nServing on %s (mode %s). Press Ctrl+C to stop.\n", serveAddr, a.cfg.Mode)
	if err := server.ListenAndServe(ctx, serveAddr); err != nil {
		printError(err)
		os.Exit(1)
	}
}
