package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
)

// Submission statuses returned by sendTransaction
const (
	SendPending       = "PENDING"
	SendDuplicate     = "DUPLICATE"
	SendTryAgainLater = "TRY_AGAIN_LATER"
	SendError         = "ERROR"
)

// Transaction statuses returned by getTransaction
const (
	TxNotFound = "NOT_FOUND"
	TxSuccess  = "SUCCESS"
	TxFailed   = "FAILED"
)

// RPCError is a JSON-RPC error object
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// SimulateReturn is the return value of one simulated host function
type SimulateReturn struct {
	XDR  string   `json:"xdr"`
	Auth []string `json:"auth,omitempty"`
}

// SimulateResult is the outcome of a dry run
type SimulateResult struct {
	MinResourceFee  string           `json:"minResourceFee"`
	TransactionData string           `json:"transactionData"`
	Results         []SimulateReturn `json:"results"`
	Error           string           `json:"error,omitempty"`
	LatestLedger    int64            `json:"latestLedger"`
}

// Fee returns the minimum resource fee in stroops
func (r *SimulateResult) Fee() (int64, error) {
	if r.MinResourceFee == "" {
		return 0, fmt.Errorf("simulation returned no resource fee")
	}
	n, err := strconv.ParseInt(r.MinResourceFee, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid resource fee %q: %w", r.MinResourceFee, err)
	}
	return n, nil
}

// ReturnValue returns the encoded return value of the simulated call
func (r *SimulateResult) ReturnValue() (string, error) {
	if r.Error != "" {
		return "", fmt.Errorf("simulation failed: %s", r.Error)
	}
	if len(r.Results) == 0 || r.Results[0].XDR == "" {
		return "", fmt.Errorf("simulation returned no result")
	}
	return r.Results[0].XDR, nil
}

// AuthEntries returns the authorization entries the invocation requires
func (r *SimulateResult) AuthEntries() []string {
	if len(r.Results) == 0 {
		return nil
	}
	return r.Results[0].Auth
}

// SendResult is the immediate answer to a submission
type SendResult struct {
	Hash           string `json:"hash"`
	Status         string `json:"status"`
	ErrorResultXDR string `json:"errorResultXdr,omitempty"`
	LatestLedger   int64  `json:"latestLedger"`
}

// TransactionResult is the status of a submitted transaction
type TransactionResult struct {
	Status       string `json:"status"`
	Ledger       int64  `json:"ledger,omitempty"`
	LatestLedger int64  `json:"latestLedger"`
	ResultXDR    string `json:"resultXdr,omitempty"`
}

// RPC is a client for the contract simulate/submit API
type RPC struct {
	http *HTTPClient
	id   atomic.Int64
}

// NewRPC creates a JSON-RPC client. Submissions are not idempotent from the
// caller's view, so retries should stay off unless the caller knows better.
func NewRPC(endpoint string, opts ...Option) *RPC {
	return &RPC{http: NewHTTPClient(endpoint, opts...)}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *RPC) call(ctx context.Context, method string, params, out interface{}) error {
	req := rpcRequest{JSONRPC: "2.0", ID: c.id.Add(1), Method: method, Params: params}
	var resp rpcResponse
	if err := c.http.PostJSON(ctx, "", req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}

// Simulate dry-runs an encoded transaction
func (c *RPC) Simulate(ctx context.Context, encodedTx string) (*SimulateResult, error) {
	var res SimulateResult
	if err := c.call(ctx, "simulateTransaction", map[string]string{"transaction": encodedTx}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Send submits a signed transaction
func (c *RPC) Send(ctx context.Context, encodedTx string) (*SendResult, error) {
	var res SendResult
	if err := c.call(ctx, "sendTransaction", map[string]string{"transaction": encodedTx}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetTransaction returns the status of a submitted transaction
func (c *RPC) GetTransaction(ctx context.Context, hash string) (*TransactionResult, error) {
	var res TransactionResult
	if err := c.call(ctx, "getTransaction", map[string]string{"hash": hash}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
