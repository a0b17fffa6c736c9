package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stellar-swap/pkg/client"
	"stellar-swap/pkg/history"
	"stellar-swap/pkg/metrics"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/tokens"
	"stellar-swap/pkg/txn"
	"stellar-swap/pkg/wallet"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 30
)

// Signer is the wallet session
type Signer interface {
	Address() (string, bool)
	Sign(ctx context.Context, encodedTx string) (string, error)
}

// Accounts loads the source account for its sequence number
type Accounts interface {
	Account(ctx context.Context, address string) (*client.Account, error)
}

// Submitter simulates and sends transactions and reports their status
type Submitter interface {
	client.Simulator
	Send(ctx context.Context, encodedTx string) (*client.SendResult, error)
	GetTransaction(ctx context.Context, hash string) (*client.TransactionResult, error)
}

// Balances is the last known balance snapshot
type Balances interface {
	Balance(symbol string) (decimal.Decimal, bool)
}

// Recorder stores receipts of finished attempts
type Recorder interface {
	Append(r history.Record) error
}

// Config of a Flow
type Config struct {
	NetworkPassphrase string
	Contract          string
	SlippageBps       int
	PollInterval      time.Duration
	MaxPolls          int
	ExplorerURL       string
}

// Request is the user's swap action
type Request struct {
	Pay     tokens.Token
	Receive tokens.Token
	Amount  string
}

// Flow runs swap attempts, one at a time
type Flow struct {
	cfg      Config
	signer   Signer
	accounts Accounts
	rpc      Submitter
	quotes   *quote.Engine
	log      zerolog.Logger

	balances  Balances
	recorder  Recorder
	onSuccess func()

	mu     sync.Mutex
	state  State
	events chan Event
}

// Option configures optional collaborators of a Flow
type Option func(*Flow)

// WithBalances enables the insufficient-balance check
func WithBalances(b Balances) Option {
	return func(f *Flow) { f.balances = b }
}

// WithRecorder stores a receipt for every terminal outcome
func WithRecorder(r Recorder) Option {
	return func(f *Flow) { f.recorder = r }
}

// WithSuccessHook runs after a confirmed swap, typically a balance refresh
func WithSuccessHook(fn func()) Option {
	return func(f *Flow) { f.onSuccess = fn }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(f *Flow) { f.log = log }
}

// NewFlow creates an idle flow
func NewFlow(cfg Config, signer Signer, accounts Accounts, rpc Submitter, quotes *quote.Engine, opts ...Option) *Flow {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	f := &Flow{
		cfg:      cfg,
		signer:   signer,
		accounts: accounts,
		rpc:      rpc,
		quotes:   quotes,
		log:      zerolog.Nop(),
		events:   make(chan Event, 16),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the state of the current or last attempt
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Events streams events as they happen. Events are dropped when the reader
// falls behind; Result.Events always has the full list.
func (f *Flow) Events() <-chan Event {
	return f.events
}

// attempt carries the working data of one Start call
type attempt struct {
	f      *Flow
	result *Result
	req    Request
	source string
}

// Start runs a swap attempt to completion. While another attempt is active it
// returns ErrAttemptInProgress without touching any state. A failed local
// check returns a *ValidationError and leaves the flow Idle.
func (f *Flow) Start(ctx context.Context, req Request) (*Result, error) {
	f.mu.Lock()
	if f.state.Active() {
		f.mu.Unlock()
		return nil, ErrAttemptInProgress
	}
	f.state = Validating
	f.mu.Unlock()

	a := &attempt{f: f, req: req, result: &Result{ID: uuid.NewString(), PayAmount: strings.TrimSpace(req.Amount)}}
	a.emit(Event{Kind: EventTransition, State: Validating})

	amountIn, err := f.validate(req)
	if err != nil {
		f.setState(Idle)
		a.emit(Event{Kind: EventTransition, State: Idle, Message: err.Error()})
		return nil, err
	}
	a.source, _ = f.signer.Address()

	a.run(ctx, amountIn)
	f.finish(a)
	return a.result, nil
}

func (f *Flow) validate(req Request) (int64, error) {
	if _, ok := f.signer.Address(); !ok {
		return 0, &ValidationError{Reason: ErrNoWallet}
	}
	for _, t := range []tokens.Token{req.Pay, req.Receive} {
		if _, ok := tokens.Find(t.Symbol); !ok {
			return 0, &ValidationError{Reason: ErrUnknownToken, Detail: t.Symbol}
		}
	}
	if req.Pay.Symbol == req.Receive.Symbol {
		return 0, &ValidationError{Reason: ErrSameToken}
	}
	for _, t := range []tokens.Token{req.Pay, req.Receive} {
		if !f.quotes.Supports(t.Symbol) {
			return 0, &ValidationError{Reason: ErrUnsupportedToken, Detail: t.Symbol}
		}
	}

	amount, ok := quote.ParseAmount(req.Amount)
	if !ok {
		return 0, &ValidationError{Reason: ErrNonPositiveAmount}
	}
	units := req.Pay.ToUnits(amount)
	if units <= 0 {
		return 0, &ValidationError{Reason: ErrNonPositiveAmount, Detail: "amount is below the smallest unit"}
	}

	if f.balances != nil {
		if balance, known := f.balances.Balance(req.Pay.Symbol); known && amount.GreaterThan(balance) {
			return 0, &ValidationError{
				Reason: ErrInsufficientBalance,
				Detail: fmt.Sprintf("have %s %s, need %s", balance.String(), req.Pay.Symbol, amount.String()),
			}
		}
	}
	return units, nil
}

func (a *attempt) run(ctx context.Context, amountIn int64) {
	f := a.f
	a.result.ReceiveAmount = f.quotes.ComputeReceiveAmount(a.req.Amount, a.req.Pay, a.req.Receive)

	account, err := f.accounts.Account(ctx, a.source)
	if err != nil {
		a.fail(fmt.Errorf("failed to load source account: %w", err), "Could not load your account.")
		return
	}
	sequence, err := account.SequenceNumber()
	if err != nil {
		a.fail(err, "Could not load your account.")
		return
	}

	params := txn.SwapParams{
		Source:   a.source,
		Sequence: sequence,
		Contract: f.cfg.Contract,
		Pay:      a.req.Pay,
		Receive:  a.req.Receive,
		AmountIn: amountIn,
	}

	// price the swap against the pool as it is now, without a floor
	priced, ok := a.simulate(ctx, params)
	if !ok {
		return
	}
	ret, err := priced.ReturnValue()
	if err != nil {
		a.fail(fmt.Errorf("%w: %v", ErrSimulationFailed, err), "Could not price the swap.")
		return
	}
	vals, err := txn.DecodeInts(ret)
	if err != nil || len(vals) != 1 {
		a.fail(fmt.Errorf("%w: unexpected return value", ErrSimulationFailed), "Could not price the swap.")
		return
	}
	if vals[0] <= 0 {
		a.fail(fmt.Errorf("%w: pool returns nothing for %s %s", ErrSimulationFailed, a.result.PayAmount, a.req.Pay.Symbol), "Amount is too small to swap.")
		return
	}
	a.result.ReceiveAmount = quote.Display(a.req.Receive.FromUnits(vals[0]), a.req.Receive)
	a.result.MinOut = quote.MinimumOutput(vals[0], f.cfg.SlippageBps)

	// the floored call needs its own footprint and authorization
	params.MinOut = a.result.MinOut
	prepared, ok := a.simulate(ctx, params)
	if !ok {
		return
	}
	env, err := txn.BuildSwap(params)
	if err != nil {
		a.fail(err, "Could not build the swap transaction.")
		return
	}
	env, err = env.Assemble(prepared.TransactionData, prepared.AuthEntries())
	if err != nil {
		a.fail(err, "Could not build the swap transaction.")
		return
	}
	encoded, err := env.Encode()
	if err != nil {
		a.fail(err, "Could not build the swap transaction.")
		return
	}

	a.transition(AwaitingSignature, "Waiting for wallet signature...")
	signed, err := f.signer.Sign(ctx, encoded)
	if err != nil {
		if errors.Is(err, wallet.ErrSignatureRejected) {
			a.end(Cancelled, EventCancelled, err, "Transaction cancelled.")
			return
		}
		a.fail(err, "Could not sign the transaction.")
		return
	}

	a.transition(Submitting, "Submitting transaction...")
	sent, err := f.rpc.Send(ctx, signed)
	if err != nil {
		a.fail(fmt.Errorf("failed to submit transaction: %w", err), "Network error while submitting.")
		return
	}
	a.result.TxHash = sent.Hash
	if a.result.TxHash == "" {
		a.result.TxHash, _ = env.Hash(f.cfg.NetworkPassphrase)
	}

	switch sent.Status {
	case client.SendPending, client.SendDuplicate:
	case client.SendTryAgainLater:
		a.fail(fmt.Errorf("%w: %s", ErrSubmissionRejected, sent.Status), "Network is busy, try again later.")
		return
	default:
		a.fail(fmt.Errorf("%w: %s", ErrSubmissionRejected, sent.Status), "Transaction rejected by the network.")
		return
	}

	a.transition(Confirming, "Waiting for confirmation...")
	a.confirm(ctx)
}

// simulate dry-runs the swap described by p. It fails the attempt and returns
// false when the network or the contract rejects it.
func (a *attempt) simulate(ctx context.Context, p txn.SwapParams) (*client.SimulateResult, bool) {
	env, err := txn.BuildSwap(p)
	if err != nil {
		a.fail(err, "Could not build the swap transaction.")
		return nil, false
	}
	encoded, err := env.Encode()
	if err != nil {
		a.fail(err, "Could not build the swap transaction.")
		return nil, false
	}
	res, err := a.f.rpc.Simulate(ctx, encoded)
	if err != nil {
		a.fail(fmt.Errorf("failed to simulate swap: %w", err), "Network error while preparing the swap.")
		return nil, false
	}
	if res.Error != "" {
		a.fail(fmt.Errorf("%w: %s", ErrSimulationFailed, res.Error), "The swap would fail on chain.")
		return nil, false
	}
	return res, true
}

func (a *attempt) confirm(ctx context.Context) {
	f := a.f
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for a.result.Polls < f.cfg.MaxPolls {
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
		if err := ctx.Err(); err != nil {
			a.fail(err, "Swap aborted before confirmation.")
			return
		}

		a.result.Polls++
		tx, err := f.rpc.GetTransaction(ctx, a.result.TxHash)
		if err != nil {
			f.log.Debug().Err(err).Int("poll", a.result.Polls).Str("hash", a.result.TxHash).Msg("status poll failed")
			continue
		}
		switch tx.Status {
		case client.TxSuccess:
			a.succeed()
			return
		case client.TxFailed:
			a.fail(ErrTransactionFailed, "Swap failed on chain.")
			return
		}
	}
	a.fail(ErrConfirmationTimeout, fmt.Sprintf("Transaction not confirmed after %d attempts.", f.cfg.MaxPolls))
}

func (a *attempt) succeed() {
	url := ExplorerURL(a.f.cfg.ExplorerURL, a.result.TxHash)
	a.result.Outcome = Success
	a.result.ExplorerURL = url
	a.enter(Event{
		Kind:         EventSuccess,
		State:        Success,
		Message:      fmt.Sprintf("Swapped %s %s for ~%s %s", a.result.PayAmount, a.req.Pay.Symbol, a.result.ReceiveAmount, a.req.Receive.Symbol),
		TxHash:       a.result.TxHash,
		ExplorerURL:  url,
		ClearAmounts: true,
	})
}

func (a *attempt) fail(err error, message string) {
	a.end(Failed, EventFailed, err, message)
}

func (a *attempt) end(state State, kind EventKind, err error, message string) {
	a.result.Outcome = state
	a.result.Err = err
	a.enter(Event{Kind: kind, State: state, Message: message, TxHash: a.result.TxHash})
}

func (a *attempt) transition(state State, message string) {
	a.enter(Event{Kind: EventTransition, State: state, Message: message})
}

// enter sets the flow state and emits ev
func (a *attempt) enter(ev Event) {
	a.f.setState(ev.State)
	a.emit(ev)
}

func (a *attempt) emit(ev Event) {
	ev.StateName = ev.State.String()
	a.result.Events = append(a.result.Events, ev)
	select {
	case a.f.events <- ev:
	default:
		a.f.log.Debug().Str("event", string(ev.Kind)).Msg("event dropped, no reader")
	}
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) finish(a *attempt) {
	res := a.result
	metrics.SwapAttempts.WithLabelValues(res.Outcome.String()).Inc()
	if res.Polls > 0 {
		metrics.ConfirmationPolls.Observe(float64(res.Polls))
	}

	logEvent := f.log.Info()
	if res.Err != nil && res.Outcome == Failed {
		logEvent = f.log.Warn().Err(res.Err)
	}
	logEvent.Str("id", res.ID).Str("outcome", res.Outcome.String()).Str("hash", res.TxHash).Int("polls", res.Polls).Msg("swap attempt finished")

	if f.recorder != nil {
		rec := history.Record{
			ID:            res.ID,
			Account:       a.source,
			PayToken:      a.req.Pay.Symbol,
			ReceiveToken:  a.req.Receive.Symbol,
			PayAmount:     res.PayAmount,
			ReceiveAmount: res.ReceiveAmount,
			TxHash:        res.TxHash,
			Outcome:       res.Outcome.String(),
			Polls:         res.Polls,
		}
		if res.Err != nil {
			rec.Message = res.Err.Error()
		}
		if err := f.recorder.Append(rec); err != nil {
			f.log.Warn().Err(err).Msg("failed to record swap receipt")
		}
	}

	if res.Outcome == Success && f.onSuccess != nil {
		f.onSuccess()
	}
}

// ExplorerURL links a transaction hash on the block explorer
func ExplorerURL(base, hash string) string {
	if base == "" || hash == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + hash
}
