package soft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foretell-app/foretell/authenticator"
	"github.com/foretell-app/foretell/crypt/secure"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, secure.KeyLength)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func newTestAuthenticator(t *testing.T, db kv.KV, opts ...Option) *Authenticator {
	if db == nil {
		db = kv.NewMemoryKV()
	}
	a, err := New(NewConfig(), db, append([]Option{WithMasterKey(testKey())}, opts...)...)
	require.NoError(t, err)
	return a
}

func creationOptions(ext protocol.AuthenticationExtensions) *protocol.PublicKeyCredentialCreationOptions {
	return &protocol.PublicKeyCredentialCreationOptions{
		Challenge:    protocol.URLEncodedBase64("challenge-challenge-challenge-32"),
		RelyingParty: protocol.RelyingPartyEntity{ID: "localhost", CredentialEntity: protocol.CredentialEntity{Name: "test"}},
		User: protocol.UserEntity{
			ID:               protocol.URLEncodedBase64("user-handle-0001"),
			DisplayName:      "Predictor",
			CredentialEntity: protocol.CredentialEntity{Name: "Predictor"},
		},
		Parameters: []protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
		},
		Timeout:    60000,
		Extensions: ext,
	}
}

func requestOptions(ext protocol.AuthenticationExtensions, allowed ...[]byte) *protocol.PublicKeyCredentialRequestOptions {
	result := &protocol.PublicKeyCredentialRequestOptions{
		Challenge:      protocol.URLEncodedBase64("challenge-challenge-challenge-32"),
		RelyingPartyID: "localhost",
		Timeout:        60000,
		Extensions:     ext,
	}
	for _, id := range allowed {
		result.AllowedCredentials = append(result.AllowedCredentials, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: id,
		})
	}
	return result
}

func register(t *testing.T, a *Authenticator) *authenticator.Attestation {
	att, err := a.Create(context.Background(), creationOptions(authenticator.LargeBlobSupport(authenticator.LargeBlobRequired)))
	require.NoError(t, err)
	return att
}

func TestNewValidation(t *testing.T) {
	cfg := NewConfig()
	cfg.RPID = ""
	_, err := New(cfg, kv.NewMemoryKV())
	assert.ErrorIs(t, err, ErrMissingRPID)

	cfg = NewConfig()
	cfg.MaxBlobBytes = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidBlobLimit)

	_, err = New(NewConfig(), kv.NewMemoryKV())
	assert.ErrorIs(t, err, secure.ErrEmptyKey)

	_, err = New(NewConfig(), kv.NewMemoryKV(), WithMasterKey([]byte("short")))
	assert.ErrorIs(t, err, secure.ErrInvalidKeyLength)
}

func TestPlatform(t *testing.T) {
	a := newTestAuthenticator(t, nil)
	assert.True(t, a.Supported())
	assert.Equal(t, DefaultUserAgent, a.UserAgent())
	ok, err := a.Available(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestCreate(t *testing.T) {
	a := newTestAuthenticator(t, nil)
	att := register(t, a)

	assert.Len(t, att.RawID, credentialSize)
	assert.Equal(t, []byte("user-handle-0001"), att.UserHandle)
	require.NotNil(t, att.Extensions.LargeBlob)
	require.NotNil(t, att.Extensions.LargeBlob.Supported)
	assert.True(t, *att.Extensions.LargeBlob.Supported)

	// without the extension no output is reported
	att, err := a.Create(context.Background(), creationOptions(nil))
	require.NoError(t, err)
	assert.Nil(t, att.Extensions.LargeBlob)
}

func TestCreateErrors(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t, nil)

	opts := creationOptions(nil)
	opts.RelyingParty.ID = "evil.example"
	_, err := a.Create(ctx, opts)
	assert.ErrorIs(t, err, authenticator.ErrSecurity)

	opts = creationOptions(nil)
	opts.User.ID = nil
	_, err = a.Create(ctx, opts)
	assert.ErrorIs(t, err, authenticator.ErrInvalidRequest)

	opts = creationOptions(nil)
	opts.Parameters = []protocol.CredentialParameter{{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgEdDSA}}
	_, err = a.Create(ctx, opts)
	assert.ErrorIs(t, err, authenticator.ErrNotSupported)

	opts = creationOptions(nil)
	opts.AuthenticatorSelection.AuthenticatorAttachment = protocol.CrossPlatform
	_, err = a.Create(ctx, opts)
	assert.ErrorIs(t, err, authenticator.ErrNotSupported)

	_, err = a.Create(ctx, creationOptions(authenticator.LargeBlobRead()))
	assert.ErrorIs(t, err, authenticator.ErrInvalidRequest)

	att := register(t, a)
	opts = creationOptions(nil)
	opts.CredentialExcludeList = []protocol.CredentialDescriptor{{Type: protocol.PublicKeyCredentialType, CredentialID: att.RawID}}
	_, err = a.Create(ctx, opts)
	assert.ErrorIs(t, err, authenticator.ErrInvalidState)
}

func TestCreateWithoutLargeBlob(t *testing.T) {
	cfg := NewConfig()
	cfg.LargeBlob = false
	a, err := New(cfg, kv.NewMemoryKV(), WithMasterKey(testKey()))
	require.NoError(t, err)

	ok, err := a.Available(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = a.Create(context.Background(), creationOptions(authenticator.LargeBlobSupport(authenticator.LargeBlobRequired)))
	assert.ErrorIs(t, err, authenticator.ErrNotSupported)

	att, err := a.Create(context.Background(), creationOptions(authenticator.LargeBlobSupport(authenticator.LargeBlobPreferred)))
	require.NoError(t, err)
	require.NotNil(t, att.Extensions.LargeBlob.Supported)
	assert.False(t, *att.Extensions.LargeBlob.Supported)

	asr, err := a.Get(context.Background(), requestOptions(authenticator.LargeBlobWrite([]byte("[]")), att.RawID))
	require.NoError(t, err)
	assert.False(t, *asr.Extensions.LargeBlob.Written)
}

func TestLargeBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := kv.NewMemoryKV()
	a := newTestAuthenticator(t, db)
	att := register(t, a)

	// nothing stored yet
	asr, err := a.Get(ctx, requestOptions(authenticator.LargeBlobRead(), att.RawID))
	require.NoError(t, err)
	assert.Nil(t, asr.Extensions.LargeBlob.Blob)

	payload := []byte(`[{"content":"X (salt: 42)","timestamp":1000,"hash":"abc"}]`)
	asr, err = a.Get(ctx, requestOptions(authenticator.LargeBlobWrite(payload), att.RawID))
	require.NoError(t, err)
	assert.Equal(t, att.RawID, asr.RawID)
	require.NotNil(t, asr.Extensions.LargeBlob.Written)
	assert.True(t, *asr.Extensions.LargeBlob.Written)

	asr, err = a.Get(ctx, requestOptions(authenticator.LargeBlobRead(), att.RawID))
	require.NoError(t, err)
	assert.Equal(t, payload, asr.Extensions.LargeBlob.Blob)
	assert.Equal(t, []byte("user-handle-0001"), asr.UserHandle)

	// blobs are sealed at rest
	raw, err := db.Get(a.store.blobKey(att.RawID))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "salt: 42")

	// another instance with the same key and storage reads it back
	b := newTestAuthenticator(t, db)
	asr, err = b.Get(ctx, requestOptions(authenticator.LargeBlobRead(), att.RawID))
	require.NoError(t, err)
	assert.Equal(t, payload, asr.Extensions.LargeBlob.Blob)

	// a different key cannot open it
	other := make([]byte, secure.KeyLength)
	c, err := New(NewConfig(), db, WithMasterKey(other))
	require.NoError(t, err)
	asr, err = c.Get(ctx, requestOptions(authenticator.LargeBlobRead(), att.RawID))
	require.NoError(t, err)
	assert.Nil(t, asr.Extensions.LargeBlob.Blob)
}

func TestLargeBlobLimits(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig()
	cfg.MaxBlobBytes = 8
	a, err := New(cfg, kv.NewMemoryKV(), WithMasterKey(testKey()))
	require.NoError(t, err)
	att := register(t, a)

	asr, err := a.Get(ctx, requestOptions(authenticator.LargeBlobWrite([]byte("0123456789")), att.RawID))
	require.NoError(t, err)
	assert.False(t, *asr.Extensions.LargeBlob.Written)
}

func TestGetErrors(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t, nil)

	_, err := a.Get(ctx, requestOptions(authenticator.LargeBlobRead()))
	assert.ErrorIs(t, err, authenticator.ErrNoCredential)

	att := register(t, a)

	_, err = a.Get(ctx, requestOptions(nil, []byte("unknown")))
	assert.ErrorIs(t, err, authenticator.ErrNoCredential)

	opts := requestOptions(nil, att.RawID)
	opts.RelyingPartyID = "evil.example"
	_, err = a.Get(ctx, opts)
	assert.ErrorIs(t, err, authenticator.ErrSecurity)

	both := protocol.AuthenticationExtensions{"largeBlob": authenticator.LargeBlobInputs{Read: true, Write: []byte("x")}}
	_, err = a.Get(ctx, requestOptions(both, att.RawID))
	assert.ErrorIs(t, err, authenticator.ErrInvalidRequest)

	_, err = a.Get(ctx, requestOptions(authenticator.LargeBlobSupport(authenticator.LargeBlobRequired), att.RawID))
	assert.ErrorIs(t, err, authenticator.ErrInvalidRequest)

	// writes need an explicit credential
	_, err = a.Get(ctx, requestOptions(authenticator.LargeBlobWrite([]byte("[]"))))
	assert.ErrorIs(t, err, authenticator.ErrNotSupported)

	_, err = a.Get(ctx, &protocol.PublicKeyCredentialRequestOptions{})
	assert.ErrorIs(t, err, authenticator.ErrInvalidRequest)
}

func TestDiscoverableChooser(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1000)
	var offered []Candidate
	a := newTestAuthenticator(t, nil,
		WithClock(func() time.Time { return now }),
	)
	first := register(t, a)
	now = now.Add(time.Second)
	second := register(t, a)

	// default picks the most recent one
	asr, err := a.Get(ctx, requestOptions(nil))
	require.NoError(t, err)
	assert.Equal(t, second.RawID, asr.RawID)

	a.chooser = func(_ context.Context, candidates []Candidate) (int, error) {
		offered = candidates
		return 0, nil
	}
	asr, err = a.Get(ctx, requestOptions(nil))
	require.NoError(t, err)
	assert.Equal(t, first.RawID, asr.RawID)
	assert.Len(t, offered, 2)

	a.chooser = func(context.Context, []Candidate) (int, error) {
		return 0, errors.New("dismissed")
	}
	_, err = a.Get(ctx, requestOptions(nil))
	assert.ErrorIs(t, err, authenticator.ErrCancelled)
}

func TestPresence(t *testing.T) {
	ctx := context.Background()
	var prompts []Prompt
	deny := false
	a := newTestAuthenticator(t, nil, WithPresence(func(_ context.Context, p Prompt) error {
		prompts = append(prompts, p)
		if deny {
			return errors.New("user said no")
		}
		return nil
	}))
	att := register(t, a)
	require.Len(t, prompts, 1)
	assert.Equal(t, CeremonyCreate, prompts[0].Ceremony)
	assert.Equal(t, "Predictor", prompts[0].UserName)

	deny = true
	_, err := a.Get(ctx, requestOptions(authenticator.LargeBlobRead(), att.RawID))
	assert.ErrorIs(t, err, authenticator.ErrCancelled)
	assert.True(t, authenticator.IsCancellation(err))

	_, err = a.Create(ctx, creationOptions(nil))
	assert.ErrorIs(t, err, authenticator.ErrCancelled)
}

func TestPresenceTimeout(t *testing.T) {
	a := newTestAuthenticator(t, nil, WithPresence(func(ctx context.Context, _ Prompt) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	opts := creationOptions(nil)
	opts.Timeout = 20
	_, err := a.Create(context.Background(), opts)
	assert.ErrorIs(t, err, authenticator.ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Create(ctx, creationOptions(nil))
	assert.ErrorIs(t, err, authenticator.ErrCancelled)
}

func TestSignCount(t *testing.T) {
	a := newTestAuthenticator(t, nil)
	att := register(t, a)
	for i := 0; i < 3; i++ {
		_, err := a.Get(context.Background(), requestOptions(nil, att.RawID))
		require.NoError(t, err)
	}
	rec, err := a.store.credential(att.RawID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), rec.SignCount)
}
