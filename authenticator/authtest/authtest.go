// Package authtest provides authenticator wrappers for tests
package authtest

import (
	"context"
	"sync"
	"testing"

	"github.com/foretell-app/foretell/authenticator"
	"github.com/foretell-app/foretell/authenticator/soft"
	"github.com/foretell-app/foretell/crypt/secure"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/require"
)

// Recorder wraps an Authenticator, counting ceremonies and injecting failures
type Recorder struct {
	authenticator.Authenticator
	mu sync.Mutex

	Creates int
	Reads   int
	Writes  int
	Logins  int

	// FailGet when set is returned by every Get
	FailGet error
	// FailCreate when set is returned by every Create
	FailCreate error
	// DeclineWrites reports writes as not written
	DeclineWrites bool
	// CorruptReads replaces returned blobs with garbage
	CorruptReads bool
}

func NewRecorder(auth authenticator.Authenticator) *Recorder {
	return &Recorder{Authenticator: auth}
}

func (r *Recorder) Create(ctx context.Context, options *protocol.PublicKeyCredentialCreationOptions) (*authenticator.Attestation, error) {
	r.mu.Lock()
	r.Creates++
	fail := r.FailCreate
	r.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return r.Authenticator.Create(ctx, options)
}

func (r *Recorder) Get(ctx context.Context, options *protocol.PublicKeyCredentialRequestOptions) (*authenticator.Assertion, error) {
	in, _ := authenticator.ParseLargeBlobInputs(options.Extensions)
	r.mu.Lock()
	switch {
	case in != nil && in.Write != nil:
		r.Writes++
	case len(options.AllowedCredentials) == 0:
		r.Logins++
	case in != nil && in.Read:
		r.Reads++
	}
	fail, decline, corrupt := r.FailGet, r.DeclineWrites, r.CorruptReads
	r.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	if decline && in != nil && in.Write != nil {
		result, err := r.Authenticator.Get(ctx, withoutExtensions(options))
		if err != nil {
			return nil, err
		}
		result.Extensions.LargeBlob = &authenticator.LargeBlobOutputs{Written: authenticator.Bool(false)}
		return result, nil
	}
	result, err := r.Authenticator.Get(ctx, options)
	if err == nil && corrupt && result.Extensions.LargeBlob != nil && result.Extensions.LargeBlob.Blob != nil {
		result.Extensions.LargeBlob.Blob = []byte("{corrupt")
	}
	return result, err
}

func withoutExtensions(options *protocol.PublicKeyCredentialRequestOptions) *protocol.PublicKeyCredentialRequestOptions {
	result := *options
	result.Extensions = nil
	return &result
}

// Counts returns reads, writes and logins
func (r *Recorder) Counts() (reads, writes, logins int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Reads, r.Writes, r.Logins
}

// Reset clears counters and injected failures
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Creates, r.Reads, r.Writes, r.Logins = 0, 0, 0, 0
	r.FailGet, r.FailCreate = nil, nil
	r.DeclineWrites, r.CorruptReads = false, false
}

// NewSoft returns a software authenticator over an in-memory KV, wrapped in a Recorder
func NewSoft(t testing.TB, opts ...soft.Option) *Recorder {
	key := make([]byte, secure.KeyLength)
	for i := range key {
		key[i] = byte(0xa0 + i)
	}
	auth, err := soft.New(soft.NewConfig(), kv.NewMemoryKV(), append([]soft.Option{soft.WithMasterKey(key)}, opts...)...)
	require.NoError(t, err)
	return NewRecorder(auth)
}
