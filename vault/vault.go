package vault

import (
	"context"
	"sync"
	"time"

	"github.com/foretell-app/foretell/blob"
	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/metrics"
	"github.com/foretell-app/foretell/passkey"
	"github.com/foretell-app/foretell/prediction"
	"github.com/foretell-app/foretell/utils"
)

const (
	ErrNotAuthenticated = utils.Error("no credential: login or register first")
)

// Session exposes the auth record owned by the credential lifecycle manager
type Session interface {
	GetAuthState() *passkey.AuthState
	UpdateCachedPredictions(list []prediction.Prediction) error
}

// Secure is the large blob store of a known credential
type Secure interface {
	Read(ctx context.Context, credentialID []byte) blob.ReadResult
	Write(ctx context.Context, credentialID []byte, list []prediction.Prediction) error
}

type Option func(v *Vault)

func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		v.now = now
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(v *Vault) {
		v.metrics = mt
	}
}

// Vault is the authenticated prediction list: a cache in the auth record in front of the large blob
type Vault struct {
	session Session
	secure  Secure
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time
	mu      sync.Mutex
}

func New(session Session, secure Secure, opts ...Option) *Vault {
	result := &Vault{
		session: session,
		secure:  secure,
		logger:  log.New("vault"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(result)
	}
	return result
}

// GetAllPredictions returns the cached list while fresh, otherwise reads the blob and refreshes the cache.
// A failed read returns an empty list and leaves the cache untouched
func (v *Vault) GetAllPredictions(ctx context.Context) ([]prediction.Prediction, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	state := v.session.GetAuthState()
	if state == nil {
		return nil, ErrNotAuthenticated
	}
	list, ok := v.load(ctx, state)
	if !ok {
		return []prediction.Prediction{}, nil
	}
	return list, nil
}

// AddPrediction appends p to the secure list. false means the item was not stored and the caller
// must fall back to the plaintext store; the cache is updated only after a confirmed write
func (v *Vault) AddPrediction(ctx context.Context, p prediction.Prediction) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	state := v.session.GetAuthState()
	if state == nil {
		return false, ErrNotAuthenticated
	}
	logger := log.FromContextOr(ctx, v.logger)
	current, ok := v.load(ctx, state)
	if !ok {
		// writing without the current list would drop the stored items
		logger.Warn("secure list unavailable, not writing")
		return false, nil
	}

	credentialID, err := state.CredentialIDBytes()
	if err != nil {
		logger.Error(err, "invalid credential id in auth state")
		return false, nil
	}
	next := prediction.Append(current, p)
	if err = v.secure.Write(ctx, credentialID, next); err != nil {
		return false, nil
	}
	if err = v.session.UpdateCachedPredictions(next); err != nil {
		// the blob holds the item; a stale cache expires on its own
		logger.Error(err, "cannot update cached predictions")
	}
	v.metrics.PredictionStored(metrics.StoreSecure)
	logger.Info("prediction stored in secure storage", log.KV{"count": len(next)})
	return true, nil
}

// load applies the cache-or-fetch rule; false if the blob could not be read
func (v *Vault) load(ctx context.Context, state *passkey.AuthState) ([]prediction.Prediction, bool) {
	if state.CacheValid(v.now()) {
		v.metrics.CacheHit()
		return prediction.Clone(state.CachedPredictions), true
	}
	v.metrics.CacheMiss()

	logger := log.FromContextOr(ctx, v.logger)
	credentialID, err := state.CredentialIDBytes()
	if err != nil {
		logger.Error(err, "invalid credential id in auth state")
		return nil, false
	}
	result := v.secure.Read(ctx, credentialID)
	if result.Outcome == blob.Failed {
		return nil, false
	}
	if err = v.session.UpdateCachedPredictions(result.Predictions); err != nil {
		logger.Error(err, "cannot update cached predictions")
	}
	return result.Predictions, true
}
