package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellar-swap/pkg/wallet"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ModeDemo, cfg.Mode)
	assert.Equal(t, DemoContractID, cfg.Contracts.DEX)
	assert.Equal(t, "Test SDF Network ; September 2015", cfg.Network.Passphrase)
	assert.Equal(t, 100, cfg.Swap.SlippageBps)
	assert.Equal(t, time.Second, cfg.Swap.PollInterval)
	assert.Equal(t, 30, cfg.Swap.MaxPolls)
	assert.Equal(t, 500*time.Millisecond, cfg.Fee.Debounce)
	assert.Equal(t, int64(457_000), cfg.Fee.PlaceholderStroops)
	assert.Equal(t, 5*time.Second, cfg.Pollers.OrderbookInterval)
	assert.Equal(t, time.Minute, cfg.Pollers.ReservesInterval)
	assert.Equal(t, 30*time.Second, cfg.Pollers.BalancesInterval)
	assert.Equal(t, "USDC", cfg.Orderbook.CounterCode)
	assert.Empty(t, cfg.Wallets)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STELLAR_SWAP_SWAP_SLIPPAGE_BPS", "50")
	t.Setenv("STELLAR_SWAP_POLLERS_ORDERBOOK_INTERVAL", "2s")
	t.Setenv("STELLAR_SWAP_MODE", "LIVE")
	t.Setenv("STELLAR_SWAP_CONTRACTS_DEX", "CLIVE")

	cfg, err := LoadFrom(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ModeLive, cfg.Mode)
	assert.Equal(t, "CLIVE", cfg.Contracts.DEX)
	assert.Equal(t, 50, cfg.Swap.SlippageBps)
	assert.Equal(t, 2*time.Second, cfg.Pollers.OrderbookInterval)
}

func TestLoadLiveNeedsContract(t *testing.T) {
	t.Setenv("STELLAR_SWAP_MODE", "live")
	_, err := LoadFrom(viper.New(), t.TempDir())
	assert.ErrorContains(t, err, "DEX contract")
}

func TestWriteExampleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".stellar-swap.yaml")
	require.NoError(t, WriteExample(path, false))
	assert.Error(t, WriteExample(path, false))
	require.NoError(t, WriteExample(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "slippage_bps: 100")
	assert.Contains(t, string(data), "secret_env: STELLAR_SWAP_MAIN_SECRET")

	cfg, err := LoadFrom(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, []wallet.Account{{ID: "main", Name: "Main Wallet", SecretEnv: "STELLAR_SWAP_MAIN_SECRET"}}, cfg.Wallets)
	assert.Equal(t, 500*time.Millisecond, cfg.Fee.Debounce)
}

func TestLoadRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".stellar-swap.yaml"), []byte("mode: [oops"), 0o644))
	_, err := LoadFrom(viper.New(), dir)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadFrom(viper.New(), t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "mainnet" }, "invalid mode"},
		{"slippage too high", func(c *Config) { c.Swap.SlippageBps = 6000 }, "slippage_bps"},
		{"no polls", func(c *Config) { c.Swap.MaxPolls = 0 }, "max_polls"},
		{"zero interval", func(c *Config) { c.Pollers.RatesInterval = 0 }, "rates_interval"},
		{"zero fee", func(c *Config) { c.Fee.FallbackStroops = 0 }, "stroop"},
		{"empty passphrase", func(c *Config) { c.Network.Passphrase = "" }, "passphrase"},
		{"wallet without env", func(c *Config) { c.Wallets = []wallet.Account{{ID: "a"}} }, "secret_env"},
		{"duplicate wallets", func(c *Config) {
			c.Wallets = []wallet.Account{{ID: "a", SecretEnv: "A"}, {ID: "a", SecretEnv: "B"}}
		}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
