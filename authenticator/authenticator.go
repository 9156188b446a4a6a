package authenticator

import (
	"context"
	"errors"

	"github.com/foretell-app/foretell/utils"
	"github.com/go-webauthn/webauthn/protocol"
)

// platform error classes, as reported by navigator.credentials
const (
	ErrCancelled      = utils.Error("NotAllowedError: ceremony cancelled or not allowed")
	ErrNoCredential   = utils.Error("NotAllowedError: no matching credential")
	ErrNotSupported   = utils.Error("NotSupportedError: authenticator cannot satisfy the request")
	ErrInvalidRequest = utils.Error("SyntaxError: invalid ceremony request")
	ErrInvalidState   = utils.Error("InvalidStateError: credential already registered")
	ErrSecurity       = utils.Error("SecurityError: relying party id does not match")
	ErrTimeout        = utils.Error("TimeoutError: ceremony timed out")
)

// Authenticator is a platform authenticator able to run registration and assertion ceremonies
type Authenticator interface {
	// Available reports whether a user-verifying platform authenticator is present
	Available(ctx context.Context) (bool, error)
	Create(ctx context.Context, options *protocol.PublicKeyCredentialCreationOptions) (*Attestation, error)
	Get(ctx context.Context, options *protocol.PublicKeyCredentialRequestOptions) (*Assertion, error)
}

// Attestation is the result of a successful registration ceremony
type Attestation struct {
	RawID      []byte
	UserHandle []byte
	Extensions ExtensionResults
}

// Assertion is the result of a successful authentication ceremony
type Assertion struct {
	RawID      []byte
	UserHandle []byte
	Extensions ExtensionResults
}

type ExtensionResults struct {
	LargeBlob *LargeBlobOutputs `json:"largeBlob,omitempty"`
}

// IsCancellation returns true if err is a user-level cancellation of the ceremony
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled)
}

// CeremonyContext bounds ctx by the ceremony timeout, in milliseconds; a timeout <= 0 keeps ctx as is
func CeremonyContext(ctx context.Context, timeoutMs int) (context.Context, context.CancelFunc) {
	if timeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, msToDuration(timeoutMs))
}

// ContextError maps a done context to the matching platform error
func ContextError(ctx context.Context) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case ctx.Err() != nil:
		return ErrCancelled
	}
	return nil
}
