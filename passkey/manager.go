package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/foretell-app/foretell/authenticator"
	"github.com/foretell-app/foretell/blob"
	"github.com/foretell-app/foretell/capability"
	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/metrics"
	"github.com/foretell-app/foretell/prediction"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/foretell-app/foretell/utils"
	"github.com/google/uuid"
)

const (
	ErrRegistration         = utils.Error("passkey registration failed")
	ErrAuthentication       = utils.Error("passkey authentication failed")
	ErrLargeBlobUnavailable = utils.Error("authenticator does not support large blobs")
	ErrCeremonyInProgress   = utils.Error("another ceremony is in progress")
	ErrCorruptState         = utils.Error("corrupt auth state")
)

// LoginResult is returned by a successful login
type LoginResult struct {
	CredentialID string
	// HasData true if the credential returned a payload, even if it could not be decoded
	HasData     bool
	Predictions []prediction.Prediction
}

type Option func(m *Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// Manager owns the credential lifecycle and the auth record
type Manager struct {
	cfg     *Config
	caps    capability.Capabilities
	auth    authenticator.Authenticator
	rp      *authenticator.RelyingParty
	blobs   *blob.Store
	db      kv.KV
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending State
}

func NewManager(cfg *Config, caps capability.Capabilities, auth authenticator.Authenticator, rp *authenticator.RelyingParty, blobs *blob.Store, db kv.KV, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	result := &Manager{
		cfg:    cfg,
		caps:   caps,
		auth:   auth,
		rp:     rp,
		blobs:  blobs,
		db:     db,
		logger: log.New("passkey"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(result)
	}
	return result, nil
}

// begin marks a ceremony as in flight; only one runs at a time
func (m *Manager) begin(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != NoCredential {
		return ErrCeremonyInProgress
	}
	m.pending = state
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = NoCredential
}

// State returns the lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	if pending != NoCredential {
		return pending
	}
	if m.GetAuthState() != nil {
		return Authenticated
	}
	return NoCredential
}

func (m *Manager) ceremonyOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case authenticator.IsCancellation(err):
		return metrics.OutcomeCancelled
	}
	return metrics.OutcomeFailure
}

// Register creates a new credential with a large blob, and stores a fresh auth record with an empty cache.
// An existing auth record is replaced
func (m *Manager) Register(ctx context.Context) (string, error) {
	if err := m.caps.RequireWebAuthn(); err != nil {
		return "", err
	}
	if err := m.begin(Registering); err != nil {
		return "", err
	}
	defer m.end()

	logger := log.FromContextOr(ctx, m.logger)
	userID := uuid.New()
	user := &authenticator.User{
		ID:          userID[:],
		Name:        m.cfg.UserName,
		DisplayName: m.cfg.UserDisplayName,
	}
	options, err := m.rp.RegistrationOptions(user, authenticator.LargeBlobSupport(authenticator.LargeBlobRequired))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	attestation, err := m.auth.Create(ctx, options)
	m.metrics.Ceremony(metrics.CeremonyRegister, m.ceremonyOutcome(err))
	if err != nil {
		logger.Error(err, "passkey creation failed")
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	lb := attestation.Extensions.LargeBlob
	if lb == nil || lb.Supported == nil || !*lb.Supported {
		logger.Warn("credential created without large blob support")
		return "", fmt.Errorf("%w: %w", ErrRegistration, ErrLargeBlobUnavailable)
	}

	credentialID := encodeCredentialID(attestation.RawID)

	// the empty blob is written before the auth record exists, so no vault write can race with it;
	// a failure here is recovered by the first write
	if err = m.blobs.Write(ctx, attestation.RawID, []prediction.Prediction{}); err != nil {
		logger.Warn("initial large blob write failed", log.KV{"credentialId": credentialID, "error": err.Error()})
	}
	if err = m.save(credentialID, userID.String(), []prediction.Prediction{}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	logger.Info("passkey registered", log.KV{"credentialId": credentialID, "userId": userID.String()})
	return credentialID, nil
}

// Login runs a discoverable assertion reading the large blob, and caches the returned list
func (m *Manager) Login(ctx context.Context) (*LoginResult, error) {
	if err := m.caps.RequireWebAuthn(); err != nil {
		return nil, err
	}
	if err := m.begin(Authenticating); err != nil {
		return nil, err
	}
	defer m.end()

	logger := log.FromContextOr(ctx, m.logger)
	options, err := m.rp.DiscoverableOptions(authenticator.LargeBlobRead())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	assertion, err := m.auth.Get(ctx, options)
	m.metrics.Ceremony(metrics.CeremonyLogin, m.ceremonyOutcome(err))
	if err != nil {
		logger.Error(err, "passkey login failed")
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	out := assertion.Extensions.LargeBlob
	read := blob.Decode(out)
	predictions := read.Predictions
	if read.Outcome == blob.Failed {
		logger.Error(read.Err, "cannot decode large blob on login")
		predictions = []prediction.Prediction{}
	}

	credentialID := encodeCredentialID(assertion.RawID)
	userID := userIDFromHandle(assertion.UserHandle, m.now())
	if err = m.save(credentialID, userID, predictions); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	logger.Info("passkey login", log.KV{"credentialId": credentialID, "count": len(predictions)})

	return &LoginResult{
		CredentialID: credentialID,
		HasData:      out != nil && len(out.Blob) > 0,
		Predictions:  predictions,
	}, nil
}

// userIDFromHandle recovers the user id from the returned user handle
func userIDFromHandle(handle []byte, now time.Time) string {
	switch {
	case len(handle) == 16:
		if id, err := uuid.FromBytes(handle); err == nil {
			return id.String()
		}
	case len(handle) > 0 && utf8.Valid(handle):
		return string(handle)
	case len(handle) > 0:
		return base64.RawURLEncoding.EncodeToString(handle)
	}
	return "user-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Logout removes the auth record; the credential and its blob are left untouched
func (m *Manager) Logout() error {
	if err := m.db.Delete(m.cfg.AuthKey); err != nil {
		m.logger.Error(err, "cannot remove auth state")
		return err
	}
	m.logger.Info("logged out")
	return nil
}

// GetAuthState reads the auth record; a missing or unreadable record is reported as nil
func (m *Manager) GetAuthState() *AuthState {
	data, err := m.db.Get(m.cfg.AuthKey)
	if err != nil {
		m.logger.Error(err, "cannot read auth state")
		return nil
	}
	if data == nil {
		return nil
	}
	state := &AuthState{}
	if err = json.Unmarshal(data, state); err != nil || state.CredentialID == "" {
		if err == nil {
			err = ErrCorruptState
		}
		m.logger.Warn("ignoring corrupt auth state", log.KV{"error": err.Error()})
		return nil
	}
	return state
}

// UpdateCachedPredictions replaces the cached list and extends its expiry; without an auth record it does nothing
func (m *Manager) UpdateCachedPredictions(list []prediction.Prediction) error {
	state := m.GetAuthState()
	if state == nil {
		return nil
	}
	if list == nil {
		list = []prediction.Prediction{}
	}
	return m.save(state.CredentialID, state.UserID, list)
}

// CacheDuration returns the lifetime of the cached list
func (m *Manager) CacheDuration() time.Duration {
	return m.cfg.CacheDuration()
}

func (m *Manager) save(credentialID, userID string, list []prediction.Prediction) error {
	now := m.now()
	state := &AuthState{
		CredentialID:      credentialID,
		LastUsed:          now.UnixMilli(),
		UserID:            userID,
		CachedPredictions: list,
		CacheExpiry:       now.Add(m.cfg.CacheDuration()).UnixMilli(),
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err = m.db.Set(m.cfg.AuthKey, data); err != nil {
		m.logger.Error(err, "cannot persist auth state")
		return err
	}
	return nil
}
