package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPassphrase = "Test SDF Network ; September 2015"

type MockCapability struct {
	mock.Mock
}

func (m *MockCapability) OpenSelection(ctx context.Context) (Handle, error) {
	args := m.Called(ctx)
	return args.Get(0).(Handle), args.Error(1)
}

func (m *MockCapability) Address(ctx context.Context, h Handle) (string, error) {
	args := m.Called(ctx, h)
	return args.String(0), args.Error(1)
}

func (m *MockCapability) Sign(ctx context.Context, h Handle, encodedTx, networkPassphrase string) (string, error) {
	args := m.Called(ctx, h, encodedTx, networkPassphrase)
	return args.String(0), args.Error(1)
}

var freighter = Handle{ID: "freighter", Name: "Freighter"}

func connectedSession(t *testing.T) (*Session, *MockCapability) {
	t.Helper()
	capability := new(MockCapability)
	capability.On("OpenSelection", mock.Anything).Return(freighter, nil).Once()
	capability.On("Address", mock.Anything, freighter).Return("GADDR", nil).Once()

	s := NewSession(capability, testPassphrase)
	notice, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NoticeConnected, notice.Kind)
	return s, capability
}

func TestSession_Connect(t *testing.T) {
	s, capability := connectedSession(t)

	assert.Equal(t, Connected, s.State())
	addr, ok := s.Address()
	assert.True(t, ok)
	assert.Equal(t, "GADDR", addr)
	h, ok := s.Wallet()
	assert.True(t, ok)
	assert.Equal(t, freighter, h)

	_, err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	capability.AssertExpectations(t)
}

func TestSession_ConnectFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind NoticeKind
		wantErr  error
	}{
		{"cancelled", ErrUserCancelled, NoticeCancelled, ErrUserCancelled},
		{"context cancelled", context.Canceled, NoticeCancelled, ErrUserCancelled},
		{"not detected sentinel", ErrWalletNotDetected, NoticeNotDetected, ErrWalletNotDetected},
		{"extension message", errors.New("Freighter extension missing"), NoticeNotDetected, ErrWalletNotDetected},
		{"other", errors.New("boom"), NoticeConnectFailed, ErrConnectFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capability := new(MockCapability)
			capability.On("OpenSelection", mock.Anything).Return(freighter, tt.err)

			s := NewSession(capability, testPassphrase)
			notice, err := s.Connect(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantKind, notice.Kind)
			assert.NotEmpty(t, notice.Message)
			assert.Equal(t, Disconnected, s.State())
		})
	}
}

func TestSession_ConnectEmptyAddress(t *testing.T) {
	capability := new(MockCapability)
	capability.On("OpenSelection", mock.Anything).Return(freighter, nil)
	capability.On("Address", mock.Anything, freighter).Return("", nil)

	s := NewSession(capability, testPassphrase)
	notice, err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.Equal(t, NoticeConnectFailed, notice.Kind)
	assert.Equal(t, Disconnected, s.State())
}

func TestSession_ConnectWhileConnecting(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	capability := new(MockCapability)
	capability.On("OpenSelection", mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(freighter, nil).Once()
	capability.On("Address", mock.Anything, freighter).Return("GADDR", nil).Once()

	s := NewSession(capability, testPassphrase)
	done := make(chan error, 1)
	go func() {
		_, err := s.Connect(context.Background())
		done <- err
	}()

	<-entered
	assert.Equal(t, Connecting, s.State())
	_, err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Connected, s.State())
	capability.AssertExpectations(t)
}

func TestSession_Disconnect(t *testing.T) {
	s, _ := connectedSession(t)
	changes := s.Subscribe()

	notice := s.Disconnect()
	assert.Equal(t, NoticeDisconnected, notice.Kind)
	assert.Equal(t, Disconnected, s.State())
	_, ok := s.Address()
	assert.False(t, ok)
	assert.Equal(t, "", <-changes)

	// idempotent
	notice = s.Disconnect()
	assert.Equal(t, NoticeDisconnected, notice.Kind)
	select {
	case <-changes:
		t.Fatal("unexpected change on repeated disconnect")
	default:
	}
}

func TestSession_SubscribeKeepsLatest(t *testing.T) {
	capability := new(MockCapability)
	capability.On("OpenSelection", mock.Anything).Return(freighter, nil)
	capability.On("Address", mock.Anything, freighter).Return("GADDR", nil)

	s := NewSession(capability, testPassphrase)
	changes := s.Subscribe()

	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	s.Disconnect()
	_, err = s.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "GADDR", <-changes)
	select {
	case v := <-changes:
		t.Fatalf("expected a single pending change, got extra %q", v)
	default:
	}
}

func TestSession_Sign(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		s := NewSession(new(MockCapability), testPassphrase)
		_, err := s.Sign(context.Background(), "tx")
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	tests := []struct {
		name    string
		signed  string
		err     error
		wantErr error
	}{
		{"signed", "signed-tx", nil, nil},
		{"empty result", "", nil, ErrSignatureRejected},
		{"sentinel", "", ErrSignatureRejected, ErrSignatureRejected},
		{"declined text", "", errors.New("User declined access"), ErrSignatureRejected},
		{"rejected text", "", errors.New("request rejected"), ErrSignatureRejected},
		{"other", "", errors.New("internal wallet error"), ErrSigningFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, capability := connectedSession(t)
			capability.On("Sign", mock.Anything, freighter, "tx", testPassphrase).Return(tt.signed, tt.err)

			signed, err := s.Sign(context.Background(), "tx")
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.signed, signed)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, signed)
		})
	}
}
