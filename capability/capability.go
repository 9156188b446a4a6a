package capability

import (
	"context"
	"strings"

	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/utils"
)

const (
	ErrUnsupportedPlatform = utils.Error("platform does not support passkeys")
)

type Tristate int

const (
	Unknown Tristate = iota
	Supported
	Unsupported
)

func (t Tristate) String() string {
	switch t {
	case Supported:
		return "supported"
	case Unsupported:
		return "unsupported"
	}
	return "unknown"
}

func fromBool(v bool) Tristate {
	if v {
		return Supported
	}
	return Unsupported
}

// Platform is the host environment as seen by the probe
type Platform interface {
	// Supported reports whether the credential API exposes the user-verifying platform authenticator check
	Supported() bool
	UserAgent() string
	// Available reports whether a user-verifying platform authenticator is present
	Available(ctx context.Context) (bool, error)
}

// Capabilities is computed once at startup and passed to every component that makes a storage decision
type Capabilities struct {
	WebAuthn  Tristate
	LargeBlob Tristate
}

// SecureStorage returns true if predictions can be stored in the authenticator
func (c Capabilities) SecureStorage() bool {
	return c.WebAuthn == Supported && c.LargeBlob == Supported
}

// RequireWebAuthn returns ErrUnsupportedPlatform unless passkeys are known to be supported
func (c Capabilities) RequireWebAuthn() error {
	if c.WebAuthn != Supported {
		return ErrUnsupportedPlatform
	}
	return nil
}

// ProbeWebAuthn returns true if the platform exposes a user-verifying platform authenticator API
func ProbeWebAuthn(p Platform) bool {
	return p != nil && p.Supported()
}

// ProbeLargeBlob returns true if the large-blob extension is usable. User agents that never report the
// capability are assumed supported; probe failures mean not supported
func ProbeLargeBlob(ctx context.Context, p Platform) bool {
	if !ProbeWebAuthn(p) {
		return false
	}
	if IsSafari(p.UserAgent()) {
		return true
	}
	available, err := p.Available(ctx)
	if err != nil {
		log.FromContextOr(ctx, log.New("capability")).Warn("large blob probe failed", log.KV{"error": err.Error()})
		return false
	}
	return available
}

// Probe computes the capability flags
func Probe(ctx context.Context, p Platform) Capabilities {
	result := Capabilities{
		WebAuthn:  fromBool(ProbeWebAuthn(p)),
		LargeBlob: fromBool(ProbeLargeBlob(ctx, p)),
	}
	log.FromContextOr(ctx, log.New("capability")).Info("platform probed", log.KV{
		"webAuthn":  result.WebAuthn.String(),
		"largeBlob": result.LargeBlob.String(),
	})
	return result
}

// IsSafari matches user agents containing "safari" with no "chrome" or "android" before it
func IsSafari(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	idx := strings.Index(ua, "safari")
	if idx < 0 {
		return false
	}
	prefix := ua[:idx]
	return !strings.Contains(prefix, "chrome") && !strings.Contains(prefix, "android")
}
