package wallet

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/stellar/go-stellar-sdk/keypair"

	"stellar-swap/pkg/txn"
)

// Account is a locally configured wallet whose secret seed lives in an environment variable
type Account struct {
	ID        string `mapstructure:"id" yaml:"id"`
	Name      string `mapstructure:"name" yaml:"name"`
	SecretEnv string `mapstructure:"secret_env" yaml:"secret_env"`
}

// Prompter stands in for the wallet popup: it picks a wallet and approves signatures
type Prompter interface {
	// Choose returns the selected handle, or ok=false when the user dismissed the selection
	Choose(ctx context.Context, options []Handle) (h Handle, ok bool, err error)
	// Approve asks the user to confirm signing the described transaction
	Approve(ctx context.Context, wallet Handle, summary string) (bool, error)
}

// Keystore is a Capability backed by seeds configured on this machine
type Keystore struct {
	accounts []Account
	prompter Prompter
	lookup   func(string) string
}

// NewKeystore creates a keystore over the configured accounts
func NewKeystore(accounts []Account, prompter Prompter) *Keystore {
	return &Keystore{accounts: accounts, prompter: prompter, lookup: os.Getenv}
}

// WithLookup replaces the environment lookup, mainly for tests
func (k *Keystore) WithLookup(lookup func(string) string) *Keystore {
	k.lookup = lookup
	return k
}

// OpenSelection lets the prompter pick one of the configured accounts
func (k *Keystore) OpenSelection(ctx context.Context) (Handle, error) {
	if len(k.accounts) == 0 {
		return Handle{}, fmt.Errorf("%w: no wallets configured", ErrWalletNotDetected)
	}
	options := make([]Handle, len(k.accounts))
	for i, a := range k.accounts {
		options[i] = Handle{ID: a.ID, Name: a.Name}
	}

	h, ok, err := k.prompter.Choose(ctx, options)
	if err != nil {
		return Handle{}, err
	}
	if !ok {
		return Handle{}, ErrUserCancelled
	}

	account, err := k.account(h)
	if err != nil {
		return h, err
	}
	if k.lookup(account.SecretEnv) == "" {
		return h, fmt.Errorf("%w: %s (set %s)", ErrWalletNotDetected, account.Name, account.SecretEnv)
	}
	return h, nil
}

// Address derives the G... address of the selected account
func (k *Keystore) Address(_ context.Context, h Handle) (string, error) {
	kp, err := k.signer(h)
	if err != nil {
		return "", err
	}
	return kp.Address(), nil
}

// Sign approves and signs an encoded envelope
func (k *Keystore) Sign(ctx context.Context, h Handle, encodedTx, networkPassphrase string) (string, error) {
	kp, err := k.signer(h)
	if err != nil {
		return "", err
	}
	env, err := txn.Decode(encodedTx)
	if err != nil {
		return "", err
	}
	if env.Source != kp.Address() {
		return "", fmt.Errorf("transaction source %s does not belong to wallet %s", env.Source, h.Name)
	}

	approved, err := k.prompter.Approve(ctx, h, env.Summary())
	if err != nil {
		return "", err
	}
	if !approved {
		return "", ErrSignatureRejected
	}

	if err := env.Sign(kp, networkPassphrase); err != nil {
		return "", err
	}
	return env.Encode()
}

func (k *Keystore) account(h Handle) (Account, error) {
	for _, a := range k.accounts {
		if a.ID == h.ID {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("%w: unknown wallet %q", ErrWalletNotDetected, h.ID)
}

func (k *Keystore) signer(h Handle) (*keypair.Full, error) {
	account, err := k.account(h)
	if err != nil {
		return nil, err
	}
	seed := k.lookup(account.SecretEnv)
	if seed == "" {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotDetected, account.Name)
	}
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid secret seed in %s: %w", account.SecretEnv, err)
	}
	return kp, nil
}

// StaticPrompter answers without user interaction: it picks WalletID (or the
// only configured wallet) and approves when AutoApprove is set
type StaticPrompter struct {
	WalletID    string
	AutoApprove bool
}

// Choose implements Prompter
func (p StaticPrompter) Choose(_ context.Context, options []Handle) (Handle, bool, error) {
	if p.WalletID == "" {
		if len(options) == 1 {
			return options[0], true, nil
		}
		return Handle{}, false, errors.New("several wallets configured, choose one with --wallet")
	}
	for _, o := range options {
		if o.ID == p.WalletID {
			return o, true, nil
		}
	}
	return Handle{}, false, fmt.Errorf("%w: unknown wallet %q", ErrWalletNotDetected, p.WalletID)
}

// Approve implements Prompter
func (p StaticPrompter) Approve(context.Context, Handle, string) (bool, error) {
	return p.AutoApprove, nil
}
