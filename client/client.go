// Package client is the storage subsystem API used by the user interface
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/foretell-app/foretell/authenticator"
	"github.com/foretell-app/foretell/blob"
	"github.com/foretell-app/foretell/capability"
	"github.com/foretell-app/foretell/commitment"
	"github.com/foretell-app/foretell/ledger"
	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/metrics"
	"github.com/foretell-app/foretell/passkey"
	"github.com/foretell-app/foretell/prediction"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/foretell-app/foretell/utils"
	"github.com/foretell-app/foretell/vault"
)

const (
	ErrWalletNotConnected = utils.Error("wallet not connected")
	ErrStorePrediction    = utils.Error("cannot store prediction")
)

// Location of a stored prediction
type Location string

const (
	Secure    Location = metrics.StoreSecure
	Plaintext Location = metrics.StorePlaintext
)

// Stored is the outcome of CreatePrediction
type Stored struct {
	Prediction prediction.Prediction
	Location   Location
}

// Observer is notified after a prediction is stored
type Observer func(s Stored)

// Listing holds both stores side by side; they are never merged
type Listing struct {
	Authenticated bool
	Secure        []prediction.Prediction
	Plaintext     []prediction.Prediction
}

type Option func(c *Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func WithBuilder(b *commitment.Builder) Option {
	return func(c *Client) {
		c.builder = b
	}
}

type Client struct {
	caps      capability.Capabilities
	manager   *passkey.Manager
	vault     *vault.Vault
	plaintext *vault.Plaintext
	builder   *commitment.Builder
	ledger    ledger.Ledger
	wallet    ledger.Wallet
	metrics   *metrics.Metrics
	share     *prediction.ShareConfig
	logger    *log.Logger
	now       func() time.Time

	mu        sync.Mutex
	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// New wires the storage subsystem over the given platform authenticator and durable store
func New(cfg *Config, caps capability.Capabilities, auth authenticator.Authenticator, db kv.KV, l ledger.Ledger, w ledger.Wallet, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	result := &Client{
		caps:      caps,
		builder:   commitment.NewBuilder(),
		ledger:    l,
		wallet:    w,
		metrics:   metrics.New(cfg.Metrics),
		share:     cfg.Share,
		logger:    log.New("client"),
		now:       time.Now,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(result)
	}

	rp, err := authenticator.NewRelyingParty(&cfg.Passkey.RPConfig)
	if err != nil {
		return nil, err
	}
	blobs := blob.NewStore(auth, rp, result.metrics)
	if result.manager, err = passkey.NewManager(cfg.Passkey, caps, auth, rp, blobs, db,
		passkey.WithClock(result.now),
		passkey.WithMetrics(result.metrics),
	); err != nil {
		return nil, err
	}
	result.vault = vault.New(result.manager, blobs,
		vault.WithClock(result.now),
		vault.WithMetrics(result.metrics),
	)
	if result.plaintext, err = vault.NewPlaintext(cfg.Vault, db, result.metrics); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Capabilities() capability.Capabilities {
	return c.caps
}

func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// ProbeWebAuthn returns the cached passkey capability
func (c *Client) ProbeWebAuthn() bool {
	return c.caps.WebAuthn == capability.Supported
}

// ProbeLargeBlob returns the cached large blob capability
func (c *Client) ProbeLargeBlob() bool {
	return c.caps.SecureStorage()
}

func (c *Client) Register(ctx context.Context) (string, error) {
	return c.manager.Register(ctx)
}

func (c *Client) Login(ctx context.Context) (*passkey.LoginResult, error) {
	return c.manager.Login(ctx)
}

func (c *Client) Logout() error {
	return c.manager.Logout()
}

func (c *Client) GetAuthState() *passkey.AuthState {
	return c.manager.GetAuthState()
}

func (c *Client) State() passkey.State {
	return c.manager.State()
}

func (c *Client) GetAllPredictions(ctx context.Context) ([]prediction.Prediction, error) {
	return c.vault.GetAllPredictions(ctx)
}

func (c *Client) AddPrediction(ctx context.Context, p prediction.Prediction) (bool, error) {
	return c.vault.AddPrediction(ctx, p)
}

func (c *Client) StoreInLocalStorage(list []prediction.Prediction) error {
	return c.plaintext.StoreInLocalStorage(list)
}

func (c *Client) GetFromLocalStorage() []prediction.Prediction {
	return c.plaintext.GetFromLocalStorage()
}

func (c *Client) BuildCommitment(text string) (*commitment.Commitment, error) {
	return c.builder.Build(text)
}

// CreatePrediction commits text to the ledger and stores the prediction, in secure storage when possible and
// in the plaintext store otherwise. Calls are serialised
func (c *Client) CreatePrediction(ctx context.Context, text string) (*Stored, error) {
	c.mu.Lock()
	result, err := c.create(ctx, text)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.notify(*result)
	return result, nil
}

func (c *Client) create(ctx context.Context, text string) (*Stored, error) {
	if c.wallet == nil || !c.wallet.Connected() {
		return nil, ErrWalletNotConnected
	}
	logger := log.FromContextOr(ctx, c.logger)
	commit, err := c.builder.Build(text)
	if err != nil {
		return nil, err
	}
	txHash, err := c.ledger.SubmitCommitment(ctx, commit.Hash)
	if err != nil {
		err = ledger.Classify(err)
		logger.Error(err, "commitment submission failed", log.KV{"hash": commit.Hash})
		return nil, err
	}

	p := prediction.Prediction{
		Content:   commit.SaltedContent,
		Timestamp: c.now().UnixMilli(),
		Hash:      commit.Hash,
		TxHash:    txHash,
	}
	if c.caps.SecureStorage() && c.manager.GetAuthState() != nil {
		ok, err := c.vault.AddPrediction(ctx, p)
		switch {
		case ok:
			return &Stored{Prediction: p, Location: Secure}, nil
		case err != nil && !errors.Is(err, vault.ErrNotAuthenticated):
			return nil, fmt.Errorf("%w: %w", ErrStorePrediction, err)
		}
		c.metrics.Fallback()
		logger.Warn("secure storage unavailable, using plaintext storage", log.KV{"hash": p.Hash})
	}
	if err = c.plaintext.Append(p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorePrediction, err)
	}
	return &Stored{Prediction: p, Location: Plaintext}, nil
}

// Shared is a reveal message for a prediction, with its share intent link
type Shared struct {
	Message string
	Link    string
	TxLink  string
}

// Share builds the public reveal message of p
func (c *Client) Share(p prediction.Prediction) Shared {
	msg := c.share.Message(p, c.now())
	return Shared{
		Message: msg,
		Link:    c.share.IntentLink(msg),
		TxLink:  c.share.TxLink(p),
	}
}

// ListPredictions returns the secure list when authenticated, and the plaintext list
func (c *Client) ListPredictions(ctx context.Context) (*Listing, error) {
	result := &Listing{
		Secure:    []prediction.Prediction{},
		Plaintext: c.plaintext.GetFromLocalStorage(),
	}
	if !c.caps.SecureStorage() || c.manager.GetAuthState() == nil {
		return result, nil
	}
	list, err := c.vault.GetAllPredictions(ctx)
	if err != nil {
		if errors.Is(err, vault.ErrNotAuthenticated) {
			return result, nil
		}
		return nil, err
	}
	result.Authenticated = true
	result.Secure = list
	return result, nil
}

// Subscribe registers fn for stored prediction events; the returned func removes it
func (c *Client) Subscribe(fn Observer) func() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Client) notify(s Stored) {
	c.obsMu.Lock()
	observers := make([]Observer, 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.obsMu.Unlock()
	for _, fn := range observers {
		fn(s)
	}
}
