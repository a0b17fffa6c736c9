// Package wallet tracks the connected wallet for the running process and
// routes signing requests to the external wallet capability.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNotConnected      = errors.New("wallet not connected")
	ErrAlreadyConnected  = errors.New("wallet already connected")
	ErrBusy              = errors.New("wallet connection already in progress")
	ErrWalletNotDetected = errors.New("wallet not detected")
	ErrUserCancelled     = errors.New("wallet selection cancelled")
	ErrConnectFailed     = errors.New("failed to connect wallet")
	ErrSignatureRejected = errors.New("transaction rejected by user")
	ErrSigningFailed     = errors.New("failed to sign transaction")
)

// Handle identifies the wallet the user picked
type Handle struct {
	ID   string
	Name string
}

// Capability is the external wallet: a selection popup, an address lookup and a signer
type Capability interface {
	OpenSelection(ctx context.Context) (Handle, error)
	Address(ctx context.Context, h Handle) (string, error)
	Sign(ctx context.Context, h Handle, encodedTx, networkPassphrase string) (string, error)
}

// State of a Session
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// NoticeKind classifies the notification produced by a session operation
type NoticeKind string

const (
	NoticeConnected     NoticeKind = "connected"
	NoticeDisconnected  NoticeKind = "disconnected"
	NoticeNotDetected   NoticeKind = "not_detected"
	NoticeCancelled     NoticeKind = "cancelled"
	NoticeConnectFailed NoticeKind = "connect_failed"
)

// Notice is the single user-visible outcome of connect or disconnect
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Session is the process-wide wallet session. It is passed explicitly to
// the components that need an identity.
type Session struct {
	capability Capability
	passphrase string

	mu          sync.RWMutex
	state       State
	handle      Handle
	address     string
	subscribers []chan string
}

// NewSession creates a disconnected session bound to a network passphrase
func NewSession(capability Capability, networkPassphrase string) *Session {
	return &Session{capability: capability, passphrase: networkPassphrase}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Address returns the connected address
func (s *Session) Address() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address, s.state == Connected
}

// Wallet returns the handle of the connected wallet
func (s *Session) Wallet() (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle, s.state == Connected
}

// Subscribe returns a channel receiving the address after every connect and ""
// after every disconnect. Only the latest change is kept for slow readers.
func (s *Session) Subscribe() <-chan string {
	ch := make(chan string, 1)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// Connect opens the wallet selection and records the chosen wallet's address
func (s *Session) Connect(ctx context.Context) (Notice, error) {
	s.mu.Lock()
	switch s.state {
	case Connecting:
		s.mu.Unlock()
		return Notice{}, ErrBusy
	case Connected:
		s.mu.Unlock()
		return Notice{}, ErrAlreadyConnected
	}
	s.state = Connecting
	s.mu.Unlock()

	handle, address, err := s.open(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = Disconnected
		s.mu.Unlock()
		return classifyConnectError(handle, err)
	}

	s.mu.Lock()
	s.state = Connected
	s.handle = handle
	s.address = address
	s.publishLocked(address)
	s.mu.Unlock()

	return Notice{Kind: NoticeConnected, Message: "Wallet connected!"}, nil
}

func (s *Session) open(ctx context.Context) (Handle, string, error) {
	handle, err := s.capability.OpenSelection(ctx)
	if err != nil {
		return handle, "", err
	}
	address, err := s.capability.Address(ctx, handle)
	if err != nil {
		return handle, "", err
	}
	if address == "" {
		return handle, "", fmt.Errorf("%s returned an empty address", handle.Name)
	}
	return handle, address, nil
}

// Disconnect clears the session. Calling it while disconnected is a no-op.
func (s *Session) Disconnect() Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return Notice{Kind: NoticeDisconnected, Message: "Wallet disconnected"}
	}
	s.state = Disconnected
	s.handle = Handle{}
	s.address = ""
	s.publishLocked("")
	return Notice{Kind: NoticeDisconnected, Message: "Wallet disconnected"}
}

// Sign asks the connected wallet to sign encodedTx. A user refusal is reported
// as ErrSignatureRejected; every other failure wraps ErrSigningFailed.
func (s *Session) Sign(ctx context.Context, encodedTx string) (string, error) {
	s.mu.RLock()
	state, handle := s.state, s.handle
	s.mu.RUnlock()
	if state != Connected {
		return "", ErrNotConnected
	}

	signed, err := s.capability.Sign(ctx, handle, encodedTx, s.passphrase)
	switch {
	case err == nil && signed == "":
		return "", ErrSignatureRejected
	case err == nil:
		return signed, nil
	case errors.Is(err, ErrSignatureRejected) || looksRejected(err):
		return "", ErrSignatureRejected
	default:
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
}

func (s *Session) publishLocked(address string) {
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- address
	}
}

func classifyConnectError(h Handle, err error) (Notice, error) {
	name := h.Name
	if name == "" {
		name = "Wallet"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, ErrUserCancelled) || errors.Is(err, context.Canceled):
		return Notice{Kind: NoticeCancelled, Message: "Wallet selection cancelled."}, fmt.Errorf("%w: %v", ErrUserCancelled, err)
	case errors.Is(err, ErrWalletNotDetected) || strings.Contains(msg, "not detected") || strings.Contains(msg, "extension"):
		return Notice{Kind: NoticeNotDetected, Message: fmt.Sprintf("%s not detected. Please install the extension.", name)},
			fmt.Errorf("%w: %v", ErrWalletNotDetected, err)
	default:
		return Notice{Kind: NoticeConnectFailed, Message: "Failed to connect wallet."}, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
}

func looksRejected(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "reject") || strings.Contains(msg, "declined")
}
