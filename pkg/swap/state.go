// Package swap runs one swap attempt from validation to a final outcome and
// reports every step as an event for the boundary layer to render.
package swap

import (
	"errors"
	"fmt"
)

// State of a swap attempt
type State int

const (
	Idle State = iota
	Validating
	AwaitingSignature
	Submitting
	Confirming
	Success
	Failed
	Cancelled
)

var stateNames = map[State]string{
	Idle:              "idle",
	Validating:        "validating",
	AwaitingSignature: "awaiting_signature",
	Submitting:        "submitting",
	Confirming:        "confirming",
	Success:           "success",
	Failed:            "failed",
	Cancelled:         "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s ends an attempt
func (s State) Terminal() bool {
	return s == Success || s == Failed || s == Cancelled
}

// Active reports whether an attempt in state s blocks a new one
func (s State) Active() bool {
	return s != Idle && !s.Terminal()
}

var (
	ErrAttemptInProgress   = errors.New("a swap is already in progress")
	ErrNoWallet            = errors.New("connect a wallet first")
	ErrNonPositiveAmount   = errors.New("enter an amount greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSameToken           = errors.New("pay and receive tokens must differ")
	ErrUnknownToken        = errors.New("unknown token")
	ErrUnsupportedToken    = errors.New("token is not traded by the pool")
	ErrSimulationFailed    = errors.New("swap simulation failed")
	ErrConfirmationTimeout = errors.New("transaction not confirmed in time")
	ErrSubmissionRejected  = errors.New("transaction rejected by the network")
	ErrTransactionFailed   = errors.New("transaction failed on chain")
)

// ValidationError is a local precondition failure. It is never retried and
// never reaches the network.
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// EventKind classifies an Event
type EventKind string

const (
	EventTransition EventKind = "transition"
	EventSuccess    EventKind = "success"
	EventFailed     EventKind = "failed"
	EventCancelled  EventKind = "cancelled"
)

// Event is one step of an attempt. Terminal kinds map to user notifications.
type Event struct {
	Kind        EventKind `json:"kind"`
	State       State     `json:"-"`
	StateName   string    `json:"state"`
	Message     string    `json:"message,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	// ClearAmounts tells the caller to reset the pay and receive inputs
	ClearAmounts bool `json:"clear_amounts,omitempty"`
}

// Result is the terminal outcome of an attempt
type Result struct {
	ID            string  `json:"id"`
	Outcome       State   `json:"-"`
	TxHash        string  `json:"tx_hash,omitempty"`
	ExplorerURL   string  `json:"explorer_url,omitempty"`
	PayAmount     string  `json:"pay_amount"`
	ReceiveAmount string  `json:"receive_amount"`
	MinOut        int64   `json:"min_out"`
	Polls         int     `json:"polls"`
	Err           error   `json:"-"`
	Events        []Event `json:"events"`
}
