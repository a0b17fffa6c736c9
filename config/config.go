package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"stellar-swap/pkg/wallet"
)

const (
	ModeDemo = "demo"
	ModeLive = "live"

	// DemoContractID is the contract address served by the in-process ledger
	DemoContractID = "CCEQMMF5QDJQUPPAM3RQ737VF6MYSN6VNN3W6WVHPOH7VXKSCRIYUHM2"
)

// Config holds the application configuration
type Config struct {
	Mode        string           `mapstructure:"mode"`
	Network     NetworkConfig    `mapstructure:"network"`
	Prices      PricesConfig     `mapstructure:"prices"`
	Contracts   ContractsConfig  `mapstructure:"contracts"`
	Orderbook   OrderbookConfig  `mapstructure:"orderbook"`
	Swap        SwapConfig       `mapstructure:"swap"`
	Fee         FeeConfig        `mapstructure:"fee"`
	Pollers     PollersConfig    `mapstructure:"pollers"`
	Wallets     []wallet.Account `mapstructure:"wallets"`
	HistoryPath string           `mapstructure:"history_path"`
	LogLevel    string           `mapstructure:"log_level"`
	LogJSON     bool             `mapstructure:"log_json"`
	MetricsAddr string           `mapstructure:"metrics_addr"`
}

type NetworkConfig struct {
	Passphrase  string `mapstructure:"passphrase"`
	HorizonURL  string `mapstructure:"horizon_url"`
	RPCURL      string `mapstructure:"rpc_url"`
	ExplorerURL string `mapstructure:"explorer_url"`
}

type PricesConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Asset    string `mapstructure:"asset"`
	Currency string `mapstructure:"currency"`
	Days     int    `mapstructure:"days"`
}

type ContractsConfig struct {
	DEX            string `mapstructure:"dex"`
	ReserveAccount string `mapstructure:"reserve_account"`
}

type OrderbookConfig struct {
	CounterCode   string `mapstructure:"counter_code"`
	CounterIssuer string `mapstructure:"counter_issuer"`
}

type SwapConfig struct {
	SlippageBps  int           `mapstructure:"slippage_bps"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
}

type FeeConfig struct {
	Debounce           time.Duration `mapstructure:"debounce"`
	FallbackStroops    int64         `mapstructure:"fallback_stroops"`
	PlaceholderStroops int64         `mapstructure:"placeholder_stroops"`
}

type PollersConfig struct {
	OrderbookInterval time.Duration `mapstructure:"orderbook_interval"`
	ReservesInterval  time.Duration `mapstructure:"reserves_interval"`
	RatesInterval     time.Duration `mapstructure:"rates_interval"`
	BalancesInterval  time.Duration `mapstructure:"balances_interval"`
}

var defaults = map[string]interface{}{
	"mode":                       ModeDemo,
	"network.passphrase":         "Test SDF Network ; September 2015",
	"network.horizon_url":        "https://horizon-testnet.stellar.org",
	"network.rpc_url":            "https://soroban-testnet.stellar.org",
	"network.explorer_url":       "https://stellar.expert/explorer/testnet/tx",
	"prices.base_url":            "https://api.coingecko.com/api/v3",
	"prices.asset":               "stellar",
	"prices.currency":            "usd",
	"prices.days":                30,
	"contracts.dex":              "",
	"contracts.reserve_account":  "",
	"orderbook.counter_code":     "USDC",
	"orderbook.counter_issuer":   "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN",
	"swap.slippage_bps":          100,
	"swap.poll_interval":         "1s",
	"swap.max_polls":             30,
	"fee.debounce":               "500ms",
	"fee.fallback_stroops":       100_000,
	"fee.placeholder_stroops":    457_000,
	"pollers.orderbook_interval": "5s",
	"pollers.reserves_interval":  "60s",
	"pollers.rates_interval":     "60s",
	"pollers.balances_interval":  "30s",
	"wallets":                    []interface{}{},
	"history_path":               "",
	"log_level":                  "info",
	"log_json":                   false,
	"metrics_addr":               "",
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	cfg, err := LoadFrom(viper.GetViper(), "$HOME", ".")
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// LoadFrom reads configuration into v, looking for .stellar-swap.yaml in paths
func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName(".stellar-swap")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("STELLAR_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == ModeDemo && cfg.Contracts.DEX == "" {
		cfg.Contracts.DEX = DemoContractID
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks modes and numeric bounds
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeDemo:
	case ModeLive:
		if c.Contracts.DEX == "" {
			return fmt.Errorf("live mode needs a DEX contract. Set STELLAR_SWAP_CONTRACTS_DEX or contracts.dex in .stellar-swap.yaml")
		}
		if c.Network.HorizonURL == "" || c.Network.RPCURL == "" {
			return fmt.Errorf("live mode needs network.horizon_url and network.rpc_url")
		}
	default:
		return fmt.Errorf("invalid mode %q (want %s or %s)", c.Mode, ModeDemo, ModeLive)
	}

	if c.Network.Passphrase == "" {
		return fmt.Errorf("network.passphrase must not be empty")
	}
	if c.Swap.SlippageBps < 0 || c.Swap.SlippageBps > 5000 {
		return fmt.Errorf("swap.slippage_bps must be between 0 and 5000, got %d", c.Swap.SlippageBps)
	}
	if c.Swap.MaxPolls <= 0 {
		return fmt.Errorf("swap.max_polls must be positive, got %d", c.Swap.MaxPolls)
	}
	if c.Prices.Days <= 0 {
		return fmt.Errorf("prices.days must be positive, got %d", c.Prices.Days)
	}
	if c.Fee.FallbackStroops <= 0 || c.Fee.PlaceholderStroops <= 0 {
		return fmt.Errorf("fee stroop values must be positive")
	}
	for name, d := range map[string]time.Duration{
		"swap.poll_interval":         c.Swap.PollInterval,
		"pollers.orderbook_interval": c.Pollers.OrderbookInterval,
		"pollers.reserves_interval":  c.Pollers.ReservesInterval,
		"pollers.rates_interval":     c.Pollers.RatesInterval,
		"pollers.balances_interval":  c.Pollers.BalancesInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Fee.Debounce < 0 {
		return fmt.Errorf("fee.debounce must not be negative")
	}

	seen := map[string]bool{}
	for i, w := range c.Wallets {
		if w.ID == "" || w.SecretEnv == "" {
			return fmt.Errorf("wallets[%d] needs an id and a secret_env", i)
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate wallet id %q", w.ID)
		}
		seen[w.ID] = true
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}

// WriteExample writes a config file with every default spelled out
func WriteExample(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	doc := map[string]interface{}{}
	for key, value := range defaults {
		node := doc
		parts := strings.Split(key, ".")
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	doc["wallets"] = []wallet.Account{{ID: "main", Name: "Main Wallet", SecretEnv: "STELLAR_SWAP_MAIN_SECRET"}}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode example config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	header := []byte("# stellar-swap configuration. Every key can be overridden with STELLAR_SWAP_<KEY>,\n# nested keys joined by underscores (STELLAR_SWAP_SWAP_SLIPPAGE_BPS).\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
