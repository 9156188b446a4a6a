package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foretell-app/foretell/authenticator/authtest"
	"github.com/foretell-app/foretell/capability"
	"github.com/foretell-app/foretell/commitment"
	"github.com/foretell-app/foretell/config/provider"
	"github.com/foretell-app/foretell/ledger"
	"github.com/foretell-app/foretell/passkey"
	"github.com/foretell-app/foretell/prediction"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/foretell-app/foretell/vault"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var supported = capability.Capabilities{WebAuthn: capability.Supported, LargeBlob: capability.Supported}

type fakeLedger struct {
	mu     sync.Mutex
	hashes []string
	err    error
}

func (l *fakeLedger) SubmitCommitment(_ context.Context, hash string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	l.hashes = append(l.hashes, hash)
	return "0xdead", nil
}

type fixture struct {
	client *Client
	rec    *authtest.Recorder
	ledger *fakeLedger
	db     kv.KV
	now    time.Time
}

func newFixture(t *testing.T, caps capability.Capabilities, wallet ledger.Wallet) *fixture {
	f := &fixture{
		rec:    authtest.NewSoft(t),
		ledger: &fakeLedger{},
		db:     kv.NewMemoryKV(),
		now:    time.UnixMilli(1_700_000_000_000),
	}
	var err error
	f.client, err = New(nil, caps, f.rec, f.db, f.ledger, wallet, WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	return f
}

func connected() ledger.Wallet {
	return ledger.StaticWallet{Address: "0x0000000000000000000000000000000000000001"}
}

func TestLoadConfig(t *testing.T) {
	src := []byte(`{
		"passkey": {"rpId": "foretell.example", "rpName": "Foretell", "cacheDurationSeconds": 60},
		"vault": {"plaintextKey": "fallback"},
		"ledger": {"delayMs": 0}
	}`)
	p, err := provider.NewJsonProvider(src)
	require.NoError(t, err)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "foretell.example", cfg.Passkey.RPID)
	assert.Equal(t, "Foretell", cfg.Passkey.RPName)
	assert.Equal(t, time.Minute, cfg.Passkey.CacheDuration())
	assert.Equal(t, passkey.DefaultAuthKey, cfg.Passkey.AuthKey)
	assert.Equal(t, "fallback", cfg.Vault.PlaintextKey)
	assert.Equal(t, 0, cfg.Ledger.DelayMs)
	assert.Empty(t, cfg.Metrics.TextfilePath)

	p, err = provider.NewJsonProvider([]byte(`{"ledger": {"delayMs": -5}}`))
	require.NoError(t, err)
	_, err = LoadConfig(p)
	assert.ErrorIs(t, err, ledger.ErrInvalidDelay)

	cfg, err = LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, vault.DefaultPlaintextKey, cfg.Vault.PlaintextKey)
}

func TestConfigValidateMissingSection(t *testing.T) {
	cfg := &Config{Vault: vault.NewConfig()}
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingSection)
	assert.Contains(t, err.Error(), KeyPasskey)

	cfg = NewConfig()
	cfg.Metrics = nil
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingSection)
	assert.Contains(t, err.Error(), KeyMetrics)

	_, err = New(&Config{}, supported, nil, kv.NewMemoryKV(), nil, nil)
	assert.ErrorIs(t, err, ErrMissingSection)
}

func TestProbe(t *testing.T) {
	f := newFixture(t, supported, connected())
	assert.True(t, f.client.ProbeWebAuthn())
	assert.True(t, f.client.ProbeLargeBlob())

	f = newFixture(t, capability.Capabilities{WebAuthn: capability.Supported, LargeBlob: capability.Unsupported}, connected())
	assert.True(t, f.client.ProbeWebAuthn())
	assert.False(t, f.client.ProbeLargeBlob())
}

func TestCreatePredictionSecure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, supported, connected())
	_, err := f.client.Register(ctx)
	require.NoError(t, err)

	stored, err := f.client.CreatePrediction(ctx, "  ETH flips BTC  ")
	require.NoError(t, err)
	assert.Equal(t, Secure, stored.Location)

	p := stored.Prediction
	text, _, ok := commitment.SplitSalt(p.Content)
	require.True(t, ok)
	assert.Equal(t, "  ETH flips BTC  ", text)
	assert.True(t, commitment.Verify(p.Content, p.Hash))
	assert.Equal(t, f.now.UnixMilli(), p.Timestamp)
	assert.Equal(t, "0xdead", p.TxHash)
	assert.Equal(t, []string{p.Hash}, f.ledger.hashes)

	listing, err := f.client.ListPredictions(ctx)
	require.NoError(t, err)
	assert.True(t, listing.Authenticated)
	assert.Equal(t, []prediction.Prediction{p}, listing.Secure)
	assert.Empty(t, listing.Plaintext)
}

func TestCreatePredictionPlaintext(t *testing.T) {
	ctx := context.Background()

	// no credential
	f := newFixture(t, supported, connected())
	stored, err := f.client.CreatePrediction(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, Plaintext, stored.Location)
	assert.Equal(t, []prediction.Prediction{stored.Prediction}, f.client.GetFromLocalStorage())
	assert.Equal(t, 0, f.rec.Creates)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.client.Metrics().FallbackCounter()))

	listing, err := f.client.ListPredictions(ctx)
	require.NoError(t, err)
	assert.False(t, listing.Authenticated)
	assert.Empty(t, listing.Secure)
	assert.Len(t, listing.Plaintext, 1)

	// unsupported platform
	f = newFixture(t, capability.Capabilities{WebAuthn: capability.Unsupported, LargeBlob: capability.Unsupported}, connected())
	_, err = f.client.Register(ctx)
	assert.ErrorIs(t, err, capability.ErrUnsupportedPlatform)
	_, err = f.client.Login(ctx)
	assert.ErrorIs(t, err, capability.ErrUnsupportedPlatform)
	stored, err = f.client.CreatePrediction(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, Plaintext, stored.Location)
}

func TestCreatePredictionFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, supported, connected())
	_, err := f.client.Register(ctx)
	require.NoError(t, err)
	before := f.client.GetAuthState()

	f.rec.DeclineWrites = true
	stored, err := f.client.CreatePrediction(ctx, "declined")
	require.NoError(t, err)
	assert.Equal(t, Plaintext, stored.Location)

	// the cache is unchanged and the item is in the plaintext store
	after := f.client.GetAuthState()
	assert.Equal(t, before.CachedPredictions, after.CachedPredictions)
	assert.Equal(t, before.CacheExpiry, after.CacheExpiry)
	assert.Equal(t, []prediction.Prediction{stored.Prediction}, f.client.GetFromLocalStorage())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.client.Metrics().FallbackCounter()))

	// stores are not merged
	f.rec.DeclineWrites = false
	second, err := f.client.CreatePrediction(ctx, "accepted")
	require.NoError(t, err)
	assert.Equal(t, Secure, second.Location)
	listing, err := f.client.ListPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []prediction.Prediction{second.Prediction}, listing.Secure)
	assert.Equal(t, []prediction.Prediction{stored.Prediction}, listing.Plaintext)
}

func TestCreatePredictionErrors(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, supported, ledger.StaticWallet{})
	_, err := f.client.CreatePrediction(ctx, "text")
	assert.ErrorIs(t, err, ErrWalletNotConnected)
	assert.Empty(t, f.ledger.hashes)

	f = newFixture(t, supported, nil)
	_, err = f.client.CreatePrediction(ctx, "text")
	assert.ErrorIs(t, err, ErrWalletNotConnected)

	f = newFixture(t, supported, connected())
	_, err = f.client.CreatePrediction(ctx, "   ")
	assert.ErrorIs(t, err, commitment.ErrEmptyPrediction)
	assert.Empty(t, f.ledger.hashes)

	f.ledger.err = errors.New("User rejected the request")
	_, err = f.client.CreatePrediction(ctx, "text")
	assert.ErrorIs(t, err, ledger.ErrSubmission)
	assert.ErrorIs(t, err, ledger.ErrRejected)
	assert.Empty(t, f.client.GetFromLocalStorage())
}

func TestAddPredictionWithinCacheWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, supported, connected())
	_, err := f.client.Register(ctx)
	require.NoError(t, err)
	f.rec.Reset()

	p := prediction.Prediction{Content: "X (salt: 42)", Timestamp: 1000, Hash: "abc", TxHash: "0xdead"}
	ok, err := f.client.AddPrediction(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := f.client.GetAllPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []prediction.Prediction{p}, list)
	reads, writes, _ := f.rec.Counts()
	assert.Equal(t, 0, reads)
	assert.Equal(t, 1, writes)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, supported, connected())
	_, err := f.client.Register(ctx)
	require.NoError(t, err)
	assert.Equal(t, passkey.Authenticated, f.client.State())

	require.NoError(t, f.client.Logout())
	assert.Nil(t, f.client.GetAuthState())
	assert.Equal(t, passkey.NoCredential, f.client.State())
	_, err = f.client.GetAllPredictions(ctx)
	assert.ErrorIs(t, err, vault.ErrNotAuthenticated)

	// login restores the secure list
	result, err := f.client.Login(ctx)
	require.NoError(t, err)
	assert.True(t, result.HasData)
	assert.Empty(t, result.Predictions)
}

func TestLocalStorage(t *testing.T) {
	f := newFixture(t, supported, connected())
	list := []prediction.Prediction{{Content: "a", Timestamp: 1, Hash: "h"}}
	require.NoError(t, f.client.StoreInLocalStorage(list))
	assert.Equal(t, list, f.client.GetFromLocalStorage())

	c, err := f.client.BuildCommitment("b")
	require.NoError(t, err)
	assert.Len(t, c.Hash, 64)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, supported, connected())

	var events []Stored
	unsubscribe := f.client.Subscribe(func(s Stored) {
		events = append(events, s)
		// observers may call back into the client
		_ = f.client.GetFromLocalStorage()
	})

	stored, err := f.client.CreatePrediction(ctx, "first")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, *stored, events[0])

	_, err = f.client.CreatePrediction(ctx, "   ")
	require.Error(t, err)
	assert.Len(t, events, 1)

	unsubscribe()
	_, err = f.client.CreatePrediction(ctx, "second")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestShare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, supported, connected())
	stored, err := f.client.CreatePrediction(ctx, "ETH flips BTC")
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	shared := f.client.Share(stored.Prediction)
	assert.Equal(t, "https://basescan.org/tx/0xdead", shared.TxLink)
	assert.Equal(t, `I predicted "`+stored.Prediction.Content+`" 2 hours ago. Verified on Base blockchain: https://basescan.org/tx/0xdead`,
		shared.Message)
	assert.True(t, strings.HasPrefix(shared.Link, prediction.DefaultIntentURL))
}
