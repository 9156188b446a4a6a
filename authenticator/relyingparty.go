package authenticator

import (
	"strings"
	"time"

	"github.com/foretell-app/foretell/utils"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
)

const (
	ErrMissingRPID     = utils.Error("missing relying party id")
	ErrMissingRPName   = utils.Error("missing relying party name")
	ErrInvalidTimeout  = utils.Error("invalid ceremony timeout")
	ErrMissingUserID   = utils.Error("missing user handle")
	ErrEmptyCredential = utils.Error("empty credential id")

	DefaultTimeoutMs = 60000
)

type RPConfig struct {
	RPID      string   `json:"rpId"`
	RPName    string   `json:"rpName"`
	Origins   []string `json:"origins"`
	TimeoutMs int      `json:"ceremonyTimeoutMs"`
}

func NewRPConfig() *RPConfig {
	return &RPConfig{
		RPID:      "localhost",
		RPName:    "Prediction - Farcaster",
		TimeoutMs: DefaultTimeoutMs,
	}
}

func (c *RPConfig) Validate() error {
	if strings.TrimSpace(c.RPID) == "" {
		return ErrMissingRPID
	}
	if strings.TrimSpace(c.RPName) == "" {
		return ErrMissingRPName
	}
	if c.TimeoutMs <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// User is the account a credential is registered for
type User struct {
	ID          []byte
	Name        string
	DisplayName string
	Credentials [][]byte
}

func (u *User) WebAuthnID() []byte {
	return u.ID
}

func (u *User) WebAuthnName() string {
	return u.Name
}

func (u *User) WebAuthnDisplayName() string {
	return u.DisplayName
}

func (u *User) WebAuthnIcon() string {
	return ""
}

// WebAuthnCredentials exposes the known credential ids as internal (platform) credentials
func (u *User) WebAuthnCredentials() []webauthn.Credential {
	result := make([]webauthn.Credential, 0, len(u.Credentials))
	for _, id := range u.Credentials {
		result = append(result, webauthn.Credential{
			ID:        id,
			Transport: []protocol.AuthenticatorTransport{protocol.Internal},
		})
	}
	return result
}

// RelyingParty builds ceremony options for platform passkeys
type RelyingParty struct {
	webAuthn  *webauthn.WebAuthn
	timeoutMs int
}

func NewRelyingParty(cfg *RPConfig) (*RelyingParty, error) {
	if cfg == nil {
		cfg = NewRPConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	origins := cfg.Origins
	if len(origins) == 0 {
		origins = []string{"https://" + cfg.RPID}
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	timeouts := webauthn.TimeoutConfig{Timeout: timeout, TimeoutUVD: timeout}
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPName,
		RPOrigins:     origins,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        timeouts,
			Registration: timeouts,
		},
	})
	if err != nil {
		return nil, err
	}
	return &RelyingParty{webAuthn: wa, timeoutMs: cfg.TimeoutMs}, nil
}

// ID returns the relying party id
func (r *RelyingParty) ID() string {
	return r.webAuthn.Config.RPID
}

// RegistrationOptions builds a resident-key, user-verifying, platform-attached creation request
func (r *RelyingParty) RegistrationOptions(user *User, extensions protocol.AuthenticationExtensions) (*protocol.PublicKeyCredentialCreationOptions, error) {
	if user == nil || len(user.ID) == 0 {
		return nil, ErrMissingUserID
	}
	creation, _, err := r.webAuthn.BeginRegistration(user,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			RequireResidentKey:      protocol.ResidentKeyRequired(),
			ResidentKey:             protocol.ResidentKeyRequirementRequired,
			UserVerification:        protocol.VerificationRequired,
		}),
		webauthn.WithCredentialParameters([]protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithExtensions(extensions),
	)
	if err != nil {
		return nil, err
	}
	options := creation.Response
	options.Timeout = r.timeoutMs
	return &options, nil
}

// DiscoverableOptions builds an account-picker assertion request
func (r *RelyingParty) DiscoverableOptions(extensions protocol.AuthenticationExtensions) (*protocol.PublicKeyCredentialRequestOptions, error) {
	assertion, _, err := r.webAuthn.BeginDiscoverableLogin(
		webauthn.WithUserVerification(protocol.VerificationRequired),
		webauthn.WithAssertionExtensions(extensions),
	)
	if err != nil {
		return nil, err
	}
	return r.requestOptions(assertion), nil
}

// CredentialOptions builds an assertion request scoped to a single credential
func (r *RelyingParty) CredentialOptions(credentialID []byte, extensions protocol.AuthenticationExtensions) (*protocol.PublicKeyCredentialRequestOptions, error) {
	if len(credentialID) == 0 {
		return nil, ErrEmptyCredential
	}
	user := &User{ID: credentialID, Credentials: [][]byte{credentialID}}
	assertion, _, err := r.webAuthn.BeginLogin(user,
		webauthn.WithUserVerification(protocol.VerificationRequired),
		webauthn.WithAssertionExtensions(extensions),
	)
	if err != nil {
		return nil, err
	}
	return r.requestOptions(assertion), nil
}

func (r *RelyingParty) requestOptions(assertion *protocol.CredentialAssertion) *protocol.PublicKeyCredentialRequestOptions {
	options := assertion.Response
	options.Timeout = r.timeoutMs
	options.RelyingPartyID = r.ID()
	return &options
}
