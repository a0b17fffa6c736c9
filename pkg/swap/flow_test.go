package swap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stellar-swap/pkg/client"
	"stellar-swap/pkg/history"
	"stellar-swap/pkg/poller"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/tokens"
	"stellar-swap/pkg/txn"
	"stellar-swap/pkg/wallet"
)

type fakeSigner struct {
	address string
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *fakeSigner) Address() (string, bool) { return s.address, s.address != "" }

func (s *fakeSigner) Sign(ctx context.Context, encodedTx string) (string, error) {
	if s.entered != nil {
		close(s.entered)
		<-s.release
	}
	if s.err != nil {
		return "", s.err
	}
	return encodedTx, nil
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Account(ctx context.Context, address string) (*client.Account, error) {
	args := m.Called(ctx, address)
	acc, _ := args.Get(0).(*client.Account)
	return acc, args.Error(1)
}

func (m *MockLedger) Simulate(ctx context.Context, encodedTx string) (*client.SimulateResult, error) {
	args := m.Called(ctx, encodedTx)
	res, _ := args.Get(0).(*client.SimulateResult)
	return res, args.Error(1)
}

func (m *MockLedger) Send(ctx context.Context, encodedTx string) (*client.SendResult, error) {
	args := m.Called(ctx, encodedTx)
	res, _ := args.Get(0).(*client.SendResult)
	return res, args.Error(1)
}

func (m *MockLedger) GetTransaction(ctx context.Context, hash string) (*client.TransactionResult, error) {
	args := m.Called(ctx, hash)
	res, _ := args.Get(0).(*client.TransactionResult)
	return res, args.Error(1)
}

type memRecorder struct {
	mu      sync.Mutex
	records []history.Record
}

func (r *memRecorder) Append(rec history.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

type staticBalances map[string]string

func (b staticBalances) Balance(symbol string) (decimal.Decimal, bool) {
	v, ok := b[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.RequireFromString(v), true
}

const (
	testUser     = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
	testContract = "CCEQMMF5QDJQUPPAM3RQ737VF6MYSN6VNN3W6WVHPOH7VXKSCRIYUHM2"
	resourceFee  = 456_900
	// 100 XLM at 6 XLM per USDC
	pooledOut = 166_666_666
)

var (
	xlm  = tokens.MustFind("XLM")
	usdc = tokens.MustFind("USDC")
	sol  = tokens.MustFind("SOL")
)

// simulated is a successful swap simulation returning out
func simulated(t *testing.T, out int64) *client.SimulateResult {
	t.Helper()
	ret, err := txn.EncodeInts(out)
	require.NoError(t, err)
	data, err := txn.EncodeTransactionData(resourceFee, 1_000_000)
	require.NoError(t, err)
	call, err := txn.BuildCall(testUser, testContract, "swap_xlm_for_usdc")
	require.NoError(t, err)
	auth, err := call.SourceAuth()
	require.NoError(t, err)
	return &client.SimulateResult{
		MinResourceFee:  "456900",
		TransactionData: data,
		Results:         []client.SimulateReturn{{XDR: ret, Auth: []string{auth}}},
	}
}

type harness struct {
	cfg       Config
	engine    *quote.Engine
	flow      *Flow
	signer    *fakeSigner
	ledger    *MockLedger
	simulate  *mock.Call
	recorder  *memRecorder
	refreshes int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	table, err := quote.FromContractRates(6, 20000)
	require.NoError(t, err)
	engine := quote.NewEngine(quote.StaticTable())
	engine.SetPoolTable(table)

	h := &harness{
		cfg: Config{
			NetworkPassphrase: "Test SDF Network ; September 2015",
			Contract:          testContract,
			SlippageBps:       100,
			PollInterval:      time.Millisecond,
			MaxPolls:          DefaultMaxPolls,
			ExplorerURL:       "https://stellar.expert/explorer/testnet/tx/",
		},
		engine:   engine,
		signer:   &fakeSigner{address: testUser},
		ledger:   new(MockLedger),
		recorder: &memRecorder{},
	}
	h.ledger.On("Account", mock.Anything, testUser).Return(&client.Account{ID: testUser, Sequence: "100"}, nil).Maybe()
	h.simulate = h.ledger.On("Simulate", mock.Anything, mock.Anything).Return(simulated(t, pooledOut), nil).Maybe()
	h.flow = NewFlow(h.cfg, h.signer, h.ledger, h.ledger, engine,
		WithBalances(staticBalances{"XLM": "10000"}),
		WithRecorder(h.recorder),
		WithSuccessHook(func() { h.refreshes++ }),
	)
	return h
}

func request(amount string) Request {
	return Request{Pay: xlm, Receive: usdc, Amount: amount}
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func TestFlow_Success(t *testing.T) {
	h := newHarness(t)
	var sent string
	h.ledger.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.String(1)
	}).Return(&client.SendResult{Hash: "abc123", Status: client.SendPending}, nil).Once()
	h.ledger.On("GetTransaction", mock.Anything, "abc123").Return(&client.TransactionResult{Status: client.TxNotFound}, nil).Twice()
	h.ledger.On("GetTransaction", mock.Anything, "abc123").Return(&client.TransactionResult{Status: client.TxSuccess}, nil).Once()

	res, err := h.flow.Start(context.Background(), request("100"))
	require.NoError(t, err)

	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, Success, h.flow.State())
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, "16.666667", res.ReceiveAmount)
	assert.Equal(t, "https://stellar.expert/explorer/testnet/tx/abc123", res.ExplorerURL)
	assert.Equal(t, 1, h.refreshes)

	env, err := txn.Decode(sent)
	require.NoError(t, err)
	assert.Equal(t, "swap_xlm_for_usdc", env.Function)
	assert.Equal(t, int64(101), env.Sequence)
	assert.Equal(t, int64(resourceFee), env.ResourceFee)
	assert.Len(t, env.Auth, 1)
	minOut, err := txn.ArgInt(env.Args[2])
	require.NoError(t, err)
	// 1% below the simulated output
	assert.Equal(t, int64(164_999_999), minOut)
	assert.Equal(t, minOut, res.MinOut)

	// one pricing run without a floor, one for the final call
	h.ledger.AssertNumberOfCalls(t, "Simulate", 2)

	last := res.Events[len(res.Events)-1]
	assert.Equal(t, EventSuccess, last.Kind)
	assert.True(t, last.ClearAmounts)
	assert.Equal(t, "abc123", last.TxHash)

	var states []State
	for _, ev := range res.Events {
		states = append(states, ev.State)
	}
	assert.Equal(t, []State{Validating, AwaitingSignature, Submitting, Confirming, Success}, states)

	require.Len(t, h.recorder.records, 1)
	assert.Equal(t, "success", h.recorder.records[0].Outcome)
	assert.Equal(t, testUser, h.recorder.records[0].Account)
	h.ledger.AssertExpectations(t)
}

func TestFlow_SignatureRejectedCancels(t *testing.T) {
	h := newHarness(t)
	h.signer.err = wallet.ErrSignatureRejected

	res, err := h.flow.Start(context.Background(), request("100"))
	require.NoError(t, err)

	assert.Equal(t, Cancelled, res.Outcome)
	assert.ErrorIs(t, res.Err, wallet.ErrSignatureRejected)
	assert.Zero(t, h.refreshes)
	assert.NotContains(t, eventKinds(res.Events), EventSuccess)
	assert.Equal(t, EventCancelled, res.Events[len(res.Events)-1].Kind)
	h.ledger.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestFlow_SigningFailureFails(t *testing.T) {
	h := newHarness(t)
	h.signer.err = errors.New("wallet crashed")

	res, err := h.flow.Start(context.Background(), request("1"))
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	h.ledger.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestFlow_SubmissionErrorFailsWithoutPolling(t *testing.T) {
	h := newHarness(t)
	h.ledger.On("Send", mock.Anything, mock.Anything).Return(&client.SendResult{Hash: "bad", Status: client.SendError}, nil).Once()

	res, err := h.flow.Start(context.Background(), request("100"))
	require.NoError(t, err)

	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrSubmissionRejected)
	assert.Zero(t, res.Polls)
	h.ledger.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything)
}

func TestFlow_SendNetworkError(t *testing.T) {
	h := newHarness(t)
	h.ledger.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	res, err := h.flow.Start(context.Background(), request("100"))
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorContains(t, res.Err, "connection reset")
}

func TestFlow_ConfirmationTimeout(t *testing.T) {
	h := newHarness(t)
	h.ledger.On("Send", mock.Anything, mock.Anything).Return(&client.SendResult{Hash: "slow", Status: client.SendPending}, nil).Once()
	h.ledger.On("GetTransaction", mock.Anything, "slow").Return(&client.TransactionResult{Status: client.TxNotFound}, nil)

	res, err := h.flow.Start(context.Background(), request("100"))
	require.NoError(t, err)

	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrConfirmationTimeout)
	assert.Equal(t, DefaultMaxPolls, res.Polls)
	h.ledger.AssertNumberOfCalls(t, "GetTransaction", DefaultMaxPolls)
}

func TestFlow_PollErrorsConsumeAttempts(t *testing.T) {
	h := newHarness(t)
	h.ledger.On("Send", mock.Anything, mock.Anything).Return(&client.SendResult{Hash: "h", Status: client.SendPending}, nil).Once()
	h.ledger.On("GetTransaction", mock.Anything, "h").Return(nil, errors.New("503")).Times(4)
	h.ledger.On("GetTransaction", mock.Anything, "h").Return(&client.TransactionResult{Status: client.TxFailed}, nil).Once()

	res, err := h.flow.Start(context.Background(), request("100"))
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrTransactionFailed)
	assert.Equal(t, 5, res.Polls)
}

func TestFlow_SecondStartWhileActiveIsNoop(t *testing.T) {
	h := newHarness(t)
	h.signer.entered = make(chan struct{})
	h.signer.release = make(chan struct{})
	h.ledger.On("Send", mock.Anything, mock.Anything).Return(&client.SendResult{Hash: "h", Status: client.SendPending}, nil).Once()
	h.ledger.On("GetTransaction", mock.Anything, "h").Return(&client.TransactionResult{Status: client.TxSuccess}, nil).Once()

	done := make(chan *Result, 1)
	go func() {
		res, _ := h.flow.Start(context.Background(), request("100"))
		done <- res
	}()
	<-h.signer.entered

	assert.Equal(t, AwaitingSignature, h.flow.State())
	res, err := h.flow.Start(context.Background(), request("5"))
	assert.ErrorIs(t, err, ErrAttemptInProgress)
	assert.Nil(t, res)
	assert.Equal(t, AwaitingSignature, h.flow.State())

	close(h.signer.release)
	first := <-done
	require.NotNil(t, first)
	assert.Equal(t, Success, first.Outcome)
	h.ledger.AssertNumberOfCalls(t, "Send", 1)

	// a finished attempt no longer blocks
	h.signer.entered = nil
	h.ledger.On("Send", mock.Anything, mock.Anything).Return(&client.SendResult{Hash: "h2", Status: client.SendError}, nil).Once()
	second, err := h.flow.Start(context.Background(), request("5"))
	require.NoError(t, err)
	assert.Equal(t, Failed, second.Outcome)
}

func TestFlow_Validation(t *testing.T) {
	tests := []struct {
		name    string
		address string
		req     Request
		want    error
	}{
		{"no wallet", "", request("1"), ErrNoWallet},
		{"zero amount", testUser, request("0"), ErrNonPositiveAmount},
		{"empty amount", testUser, request(""), ErrNonPositiveAmount},
		{"dust amount", testUser, request("0.00000001"), ErrNonPositiveAmount},
		{"over balance", testUser, request("10000.5"), ErrInsufficientBalance},
		{"same token", testUser, Request{Pay: xlm, Receive: xlm, Amount: "1"}, ErrSameToken},
		{"unknown token", testUser, Request{Pay: tokens.Token{Symbol: "DOGE", Decimals: 7}, Receive: usdc, Amount: "1"}, ErrUnknownToken},
		{"unpooled token", testUser, Request{Pay: sol, Receive: xlm, Amount: "1"}, ErrUnsupportedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.signer.address = tt.address

			res, err := h.flow.Start(context.Background(), tt.req)
			assert.Nil(t, res)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, Idle, h.flow.State())
			h.ledger.AssertNotCalled(t, "Simulate", mock.Anything, mock.Anything)
			h.ledger.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			assert.Empty(t, h.recorder.records)
		})
	}
}

type fundedAccount map[string]string

func (f fundedAccount) Account(_ context.Context, address string) (*client.Account, error) {
	acc := &client.Account{ID: address, Sequence: "100"}
	for symbol, amount := range f {
		b := client.Balance{Balance: amount, AssetType: "native"}
		if symbol != "XLM" {
			b = client.Balance{Balance: amount, AssetType: "credit_alphanum4", AssetCode: symbol}
		}
		acc.Balances = append(acc.Balances, b)
	}
	return acc, nil
}

func TestFlow_MissingTrustlineIsInsufficient(t *testing.T) {
	h := newHarness(t)
	balances := poller.NewBalances(h.signer, fundedAccount{"XLM": "5.0000000"}, 0, zerolog.Nop())
	_, info := balances.Refresh(context.Background())
	require.False(t, info.Placeholder)

	flow := NewFlow(h.cfg, h.signer, h.ledger, h.ledger, h.engine, WithBalances(balances))
	res, err := flow.Start(context.Background(), Request{Pay: usdc, Receive: xlm, Amount: "5000"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	h.ledger.AssertNotCalled(t, "Simulate", mock.Anything, mock.Anything)

	_, err = flow.Start(context.Background(), Request{Pay: xlm, Receive: usdc, Amount: "6"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestFlow_FloorComesFromSimulation(t *testing.T) {
	h := newHarness(t)
	// a static price table would put the floor near 11.88 USDC
	h.engine.SetTable(quote.StaticTable())
	var sent string
	h.ledger.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.String(1)
	}).Return(&client.SendResult{Hash: "h", Status: client.SendPending}, nil).Once()
	h.ledger.On("GetTransaction", mock.Anything, "h").Return(&client.TransactionResult{Status: client.TxSuccess}, nil).Once()

	res, err := h.flow.Start(context.Background(), request("100"))
	require.NoError(t, err)
	require.Equal(t, Success, res.Outcome)
	assert.Equal(t, "16.666667", res.ReceiveAmount)
	assert.Equal(t, int64(164_999_999), res.MinOut)

	env, err := txn.Decode(sent)
	require.NoError(t, err)
	minOut, err := txn.ArgInt(env.Args[2])
	require.NoError(t, err)
	assert.Equal(t, res.MinOut, minOut)
}

func TestFlow_SimulationFailures(t *testing.T) {
	tests := []struct {
		name   string
		result *client.SimulateResult
		err    error
		want   error
	}{
		{"contract error", &client.SimulateResult{Error: "HostError: Error(Contract, #4)"}, nil, ErrSimulationFailed},
		{"network error", nil, errors.New("rpc unavailable"), nil},
		{"no return value", &client.SimulateResult{}, nil, ErrSimulationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.simulate.Unset()
			h.ledger.On("Simulate", mock.Anything, mock.Anything).Return(tt.result, tt.err).Once()

			res, err := h.flow.Start(context.Background(), request("100"))
			require.NoError(t, err)
			assert.Equal(t, Failed, res.Outcome)
			if tt.want != nil {
				assert.ErrorIs(t, res.Err, tt.want)
			} else {
				assert.ErrorIs(t, res.Err, tt.err)
			}
			assert.NotContains(t, eventKinds(res.Events), EventSuccess)
			for _, ev := range res.Events {
				assert.NotEqual(t, AwaitingSignature, ev.State)
			}
			h.ledger.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			require.Len(t, h.recorder.records, 1)
		})
	}
}

func TestFlow_NothingToReceive(t *testing.T) {
	h := newHarness(t)
	h.simulate.Unset()
	h.ledger.On("Simulate", mock.Anything, mock.Anything).Return(simulated(t, 0), nil).Once()

	res, err := h.flow.Start(context.Background(), request("0.0000001"))
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrSimulationFailed)
	h.ledger.AssertNumberOfCalls(t, "Simulate", 1)
}

func TestFlow_AbortedWhileConfirming(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.ledger.On("Send", mock.Anything, mock.Anything).Return(&client.SendResult{Hash: "h", Status: client.SendPending}, nil).Once()
	h.ledger.On("GetTransaction", mock.Anything, "h").Run(func(mock.Arguments) { cancel() }).
		Return(&client.TransactionResult{Status: client.TxNotFound}, nil)

	res, err := h.flow.Start(ctx, request("1"))
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Polls)
}

func TestExplorerURL(t *testing.T) {
	assert.Equal(t, "https://x/tx/h", ExplorerURL("https://x/tx", "h"))
	assert.Empty(t, ExplorerURL("", "h"))
	assert.Empty(t, ExplorerURL("https://x/tx", ""))
}
