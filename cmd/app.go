package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/keypair"

	"stellar-swap/config"
	"stellar-swap/pkg/client"
	"stellar-swap/pkg/fee"
	"stellar-swap/pkg/history"
	"stellar-swap/pkg/logger"
	"stellar-swap/pkg/poller"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/simnet"
	"stellar-swap/pkg/swap"
	"stellar-swap/pkg/tokens"
	"stellar-swap/pkg/wallet"
)

const demoSecretEnv = "STELLAR_SWAP_DEMO_SECRET"

// ledgerAPI is the account and order book side of the network
type ledgerAPI interface {
	poller.AccountSource
	poller.OrderBookSource
}

// rpcAPI is the contract simulate/submit side of the network
type rpcAPI interface {
	client.Simulator
	swap.Submitter
}

// app wires the components for one command invocation. Demo and live mode
// differ only in what sits behind ledger and rpc.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	ledger   ledgerAPI
	rpc      rpcAPI
	contract *client.Contract
	prices   *client.Prices
	quotes   *quote.Engine
	session  *wallet.Session
}

func newApp(cmd *cobra.Command, prompter wallet.Prompter) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.LogJSON).With().Str("mode", cfg.Mode).Logger()

	a := &app{
		cfg:    cfg,
		log:    log,
		quotes: quote.NewEngine(quote.StaticTable()),
		prices: client.NewPrices(cfg.Prices.BaseURL,
			client.WithLogger(log),
			client.WithRetry(client.DefaultRetryConfig()),
			client.WithRateLimit(0.5, 2)),
	}

	accounts := cfg.Wallets
	lookup := os.Getenv
	switch cfg.Mode {
	case config.ModeDemo:
		ledger := simnet.New(simnet.DefaultOptions(cfg.Network.Passphrase, cfg.Contracts.DEX))
		a.ledger, a.rpc = ledger, ledger
		if len(accounts) == 0 {
			accounts, lookup, err = demoWallet()
			if err != nil {
				return nil, err
			}
		}
	default:
		a.ledger = client.NewHorizon(cfg.Network.HorizonURL,
			client.WithLogger(log),
			client.WithRetry(client.DefaultRetryConfig()),
			client.WithRateLimit(10, 5))
		// submissions are not idempotent, so the RPC client does not retry
		a.rpc = client.NewRPC(cfg.Network.RPCURL, client.WithLogger(log))
	}

	a.contract = client.NewContract(a.rpc, cfg.Contracts.DEX, cfg.Contracts.ReserveAccount)
	keystore := wallet.NewKeystore(accounts, prompter).WithLookup(lookup)
	a.session = wallet.NewSession(keystore, cfg.Network.Passphrase)
	return a, nil
}

// demoWallet is an ephemeral keystore entry, unless STELLAR_SWAP_DEMO_SECRET
// pins the key
func demoWallet() ([]wallet.Account, func(string) string, error) {
	kp, err := keypair.Random()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create demo wallet: %w", err)
	}
	accounts := []wallet.Account{{ID: "demo", Name: "Demo Wallet", SecretEnv: demoSecretEnv}}
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if key == demoSecretEnv {
			return kp.Seed()
		}
		return ""
	}
	return accounts, lookup, nil
}

// connect opens the wallet and prints the outcome like the wallet notices of the web UI
func (a *app) connect(ctx context.Context, quiet bool) error {
	notice, err := a.session.Connect(ctx)
	if err != nil {
		if !quiet {
			printNotice(notice)
		}
		return err
	}
	if !quiet {
		printNotice(notice)
		address, _ := a.session.Address()
		fmt.Printf("  Address: %s\n", address)
	}
	return nil
}

func (a *app) balances() *poller.Balances {
	return poller.NewBalances(a.session, a.ledger, a.cfg.Pollers.BalancesInterval, a.log)
}

func (a *app) reserves() *poller.Poller[poller.ReserveSnapshot] {
	return poller.NewReserves(a.contract, a.cfg.Pollers.ReservesInterval, a.log)
}

func (a *app) orderbook() *poller.Poller[poller.OrderbookSnapshot] {
	counter := client.Asset{Code: a.cfg.Orderbook.CounterCode, Issuer: a.cfg.Orderbook.CounterIssuer}
	return poller.NewOrderbook(a.ledger, counter, a.cfg.Pollers.OrderbookInterval, a.log)
}

func (a *app) rates() *poller.Poller[quote.RateTable] {
	return poller.NewRates(a.contract, a.quotes, a.cfg.Pollers.RatesInterval, a.log)
}

func (a *app) fees() *fee.Estimator {
	return fee.NewEstimator(fee.Config{
		Debounce:           a.cfg.Fee.Debounce,
		FallbackStroops:    a.cfg.Fee.FallbackStroops,
		PlaceholderStroops: a.cfg.Fee.PlaceholderStroops,
	}, a.session, a.contract, a.log)
}

func (a *app) history() (*history.Storage, error) {
	return history.NewStorage(a.cfg.HistoryPath)
}

func (a *app) flow(balances swap.Balances, recorder swap.Recorder, onSuccess func()) *swap.Flow {
	opts := []swap.Option{swap.WithLogger(a.log), swap.WithBalances(balances), swap.WithSuccessHook(onSuccess)}
	if recorder != nil {
		opts = append(opts, swap.WithRecorder(recorder))
	}
	return swap.NewFlow(swap.Config{
		NetworkPassphrase: a.cfg.Network.Passphrase,
		Contract:          a.cfg.Contracts.DEX,
		SlippageBps:       a.cfg.Swap.SlippageBps,
		PollInterval:      a.cfg.Swap.PollInterval,
		MaxPolls:          a.cfg.Swap.MaxPolls,
		ExplorerURL:       a.cfg.Network.ExplorerURL,
	}, a.session, a.ledger, a.rpc, a.quotes, opts...)
}

// pair resolves two registry symbols
func pair(pay, receive string) (tokens.Token, tokens.Token, error) {
	p, ok := tokens.Find(pay)
	if !ok {
		return tokens.Token{}, tokens.Token{}, fmt.Errorf("unknown token %s (try: stellar-swap tokens)", pay)
	}
	r, ok := tokens.Find(receive)
	if !ok {
		return tokens.Token{}, tokens.Token{}, fmt.Errorf("unknown token %s (try: stellar-swap tokens)", receive)
	}
	return p, r, nil
}
