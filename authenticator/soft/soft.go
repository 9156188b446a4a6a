package soft

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/foretell-app/foretell/authenticator"
	"github.com/foretell-app/foretell/crypt/secure"
	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/foretell-app/foretell/utils"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

const (
	CeremonyCreate = "create"
	CeremonyGet    = "get"

	blobKeyContext = "foretell large-blob v1"
	credentialSize = 32
	saltSize       = 16
)

// Prompt describes the ceremony the user is asked to approve
type Prompt struct {
	Ceremony string
	RPID     string
	UserName string
}

// PresenceFunc asks the user to approve a ceremony; returning an error cancels it
type PresenceFunc func(ctx context.Context, prompt Prompt) error

// Candidate is a credential offered in the account picker
type Candidate struct {
	ID          []byte
	UserName    string
	DisplayName string
	Created     time.Time
}

// ChooserFunc picks one of the candidates, returning its index
type ChooserFunc func(ctx context.Context, candidates []Candidate) (int, error)

type Option func(a *Authenticator)

// WithPresence sets the user presence check; the default approves every ceremony
func WithPresence(fn PresenceFunc) Option {
	return func(a *Authenticator) {
		a.presence = fn
	}
}

// WithChooser sets the account picker; the default picks the most recent credential
func WithChooser(fn ChooserFunc) Option {
	return func(a *Authenticator) {
		a.chooser = fn
	}
}

// WithMasterKey sets the blob sealing key, overriding the configured key source
func WithMasterKey(key []byte) Option {
	return func(a *Authenticator) {
		a.masterKey = key
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// Authenticator emulates a platform authenticator with resident credentials and the large-blob extension
type Authenticator struct {
	cfg       *Config
	store     *store
	masterKey []byte
	presence  PresenceFunc
	chooser   ChooserFunc
	now       func() time.Time
	logger    *log.Logger
	mu        sync.Mutex
}

func approve(context.Context, Prompt) error {
	return nil
}

func mostRecent(_ context.Context, candidates []Candidate) (int, error) {
	idx := 0
	for i, c := range candidates {
		if !c.Created.Before(candidates[idx].Created) {
			idx = i
		}
	}
	return idx, nil
}

func New(cfg *Config, db kv.KV, opts ...Option) (*Authenticator, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	result := &Authenticator{
		cfg:      cfg,
		store:    &store{db: db, prefix: cfg.KeyPrefix},
		presence: approve,
		chooser:  mostRecent,
		now:      time.Now,
		logger:   log.NewWithComponent("authenticator", "soft"),
	}
	for _, opt := range opts {
		opt(result)
	}
	if result.masterKey == nil {
		key, err := cfg.KeyConfig.Bytes()
		if err != nil {
			return nil, err
		}
		result.masterKey = key
	}
	if len(result.masterKey) != secure.KeyLength {
		return nil, secure.ErrInvalidKeyLength
	}
	return result, nil
}

// Supported is always true; the emulator always exposes the platform authenticator check
func (a *Authenticator) Supported() bool {
	return true
}

func (a *Authenticator) UserAgent() string {
	return a.cfg.UserAgent
}

func (a *Authenticator) Available(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return a.cfg.LargeBlob, nil
}

func (a *Authenticator) checkRPID(rpID string) error {
	if rpID != "" && rpID != a.cfg.RPID {
		return authenticator.ErrSecurity
	}
	return nil
}

// userPresence runs the presence check bounded by the ceremony timeout
func (a *Authenticator) userPresence(ctx context.Context, timeoutMs int, prompt Prompt) error {
	ctx, cancel := authenticator.CeremonyContext(ctx, timeoutMs)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.presence(ctx, prompt)
	}()
	select {
	case err := <-done:
		if err != nil {
			if cerr := authenticator.ContextError(ctx); cerr != nil {
				return cerr
			}
			return fmt.Errorf("%w: %w", authenticator.ErrCancelled, err)
		}
		return authenticator.ContextError(ctx)
	case <-ctx.Done():
		return authenticator.ContextError(ctx)
	}
}

func supportsAlgorithm(params []protocol.CredentialParameter) bool {
	if len(params) == 0 {
		return true
	}
	for _, p := range params {
		if p.Type == protocol.PublicKeyCredentialType &&
			(p.Algorithm == webauthncose.AlgES256 || p.Algorithm == webauthncose.AlgRS256) {
			return true
		}
	}
	return false
}

// Create registers a new resident credential
func (a *Authenticator) Create(ctx context.Context, options *protocol.PublicKeyCredentialCreationOptions) (*authenticator.Attestation, error) {
	if options == nil || len(options.Challenge) == 0 {
		return nil, authenticator.ErrInvalidRequest
	}
	if err := a.checkRPID(options.RelyingParty.ID); err != nil {
		return nil, err
	}
	userHandle, err := userHandleBytes(options.User.ID)
	if err != nil {
		return nil, err
	}
	if options.AuthenticatorSelection.AuthenticatorAttachment == protocol.CrossPlatform {
		return nil, authenticator.ErrNotSupported
	}
	if !supportsAlgorithm(options.Parameters) {
		return nil, authenticator.ErrNotSupported
	}
	blobIn, err := authenticator.ParseLargeBlobInputs(options.Extensions)
	if err != nil {
		return nil, err
	}
	if blobIn != nil {
		if blobIn.Read || blobIn.Write != nil {
			return nil, authenticator.ErrInvalidRequest
		}
		if blobIn.Support == authenticator.LargeBlobRequired && !a.cfg.LargeBlob {
			return nil, authenticator.ErrNotSupported
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, excluded := range options.CredentialExcludeList {
		rec, err := a.store.credential(excluded.CredentialID)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.RPID == a.cfg.RPID {
			return nil, authenticator.ErrInvalidState
		}
	}

	prompt := Prompt{Ceremony: CeremonyCreate, RPID: a.cfg.RPID, UserName: options.User.Name}
	if err = a.userPresence(ctx, options.Timeout, prompt); err != nil {
		return nil, err
	}

	id, err := utils.GenerateRandomBytes(credentialSize)
	if err != nil {
		return nil, err
	}
	rec := &credentialRecord{
		ID:          id,
		RPID:        a.cfg.RPID,
		UserHandle:  userHandle,
		UserName:    options.User.Name,
		DisplayName: options.User.DisplayName,
		LargeBlob:   a.cfg.LargeBlob && blobIn != nil && blobIn.Support != "",
		Created:     a.now().UnixMilli(),
	}
	if err = a.store.addCredential(rec); err != nil {
		return nil, err
	}
	a.logger.Info("credential created", log.KV{"credentialId": encodeID(id), "largeBlob": rec.LargeBlob})

	result := &authenticator.Attestation{RawID: id, UserHandle: userHandle}
	if blobIn != nil && blobIn.Support != "" {
		result.Extensions.LargeBlob = &authenticator.LargeBlobOutputs{Supported: authenticator.Bool(rec.LargeBlob)}
	}
	return result, nil
}

func userHandleBytes(id any) ([]byte, error) {
	switch v := id.(type) {
	case []byte:
		if len(v) > 0 {
			return v, nil
		}
	case protocol.URLEncodedBase64:
		if len(v) > 0 {
			return v, nil
		}
	case string:
		if v != "" {
			return []byte(v), nil
		}
	}
	return nil, authenticator.ErrInvalidRequest
}

// candidates returns the credentials matching the allow list, or every resident credential for the rp
func (a *Authenticator) candidates(allowed []protocol.CredentialDescriptor) ([]*credentialRecord, error) {
	all, err := a.store.credentials()
	if err != nil {
		return nil, err
	}
	result := make([]*credentialRecord, 0, len(all))
	for _, rec := range all {
		if rec.RPID != a.cfg.RPID {
			continue
		}
		if len(allowed) == 0 {
			result = append(result, rec)
			continue
		}
		for _, desc := range allowed {
			if bytes.Equal(desc.CredentialID, rec.ID) {
				result = append(result, rec)
				break
			}
		}
	}
	return result, nil
}

// Get runs an assertion ceremony, reading or writing the large blob when requested
func (a *Authenticator) Get(ctx context.Context, options *protocol.PublicKeyCredentialRequestOptions) (*authenticator.Assertion, error) {
	if options == nil || len(options.Challenge) == 0 {
		return nil, authenticator.ErrInvalidRequest
	}
	if err := a.checkRPID(options.RelyingPartyID); err != nil {
		return nil, err
	}
	blobIn, err := authenticator.ParseLargeBlobInputs(options.Extensions)
	if err != nil {
		return nil, err
	}
	if blobIn != nil {
		if blobIn.Support != "" || (blobIn.Read && blobIn.Write != nil) {
			return nil, authenticator.ErrInvalidRequest
		}
		if blobIn.Write != nil && len(options.AllowedCredentials) == 0 {
			return nil, authenticator.ErrNotSupported
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	candidates, err := a.candidates(options.AllowedCredentials)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, authenticator.ErrNoCredential
	}
	rec := candidates[0]
	if len(candidates) > 1 {
		picker := make([]Candidate, len(candidates))
		for i, c := range candidates {
			picker[i] = Candidate{ID: c.ID, UserName: c.UserName, DisplayName: c.DisplayName, Created: time.UnixMilli(c.Created)}
		}
		idx, err := a.chooser(ctx, picker)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", authenticator.ErrCancelled, err)
		}
		if idx < 0 || idx >= len(candidates) {
			return nil, authenticator.ErrCancelled
		}
		rec = candidates[idx]
	}

	prompt := Prompt{Ceremony: CeremonyGet, RPID: a.cfg.RPID, UserName: rec.UserName}
	if err = a.userPresence(ctx, options.Timeout, prompt); err != nil {
		return nil, err
	}

	rec.SignCount++
	if err = a.store.updateCredential(rec); err != nil {
		return nil, err
	}

	result := &authenticator.Assertion{RawID: rec.ID, UserHandle: rec.UserHandle}
	if blobIn == nil {
		return result, nil
	}
	switch {
	case blobIn.Read:
		result.Extensions.LargeBlob = &authenticator.LargeBlobOutputs{Blob: a.readBlob(rec)}
	case blobIn.Write != nil:
		result.Extensions.LargeBlob = &authenticator.LargeBlobOutputs{Written: authenticator.Bool(a.writeBlob(rec, blobIn.Write))}
	default:
		result.Extensions.LargeBlob = &authenticator.LargeBlobOutputs{}
	}
	return result, nil
}

func (a *Authenticator) sealer(salt []byte, id []byte) (secure.Sealer, error) {
	key, err := secure.DeriveKey(a.masterKey, salt, blobKeyContext+":"+encodeID(id))
	if err != nil {
		return nil, err
	}
	return secure.NewAES256GCM(key)
}

// readBlob returns the stored blob, or nil when there is none or it cannot be opened
func (a *Authenticator) readBlob(rec *credentialRecord) []byte {
	if !rec.LargeBlob {
		return nil
	}
	sealed, err := a.store.blob(rec.ID)
	if err != nil || sealed == nil {
		if err != nil {
			a.logger.Error(err, "cannot load large blob", log.KV{"credentialId": encodeID(rec.ID)})
		}
		return nil
	}
	s, err := a.sealer(sealed.Salt, rec.ID)
	if err != nil {
		a.logger.Error(err, "cannot derive large blob key")
		return nil
	}
	defer s.Clear()
	data, err := s.Open(sealed.Data, rec.ID)
	if err != nil {
		a.logger.Error(err, "cannot open large blob", log.KV{"credentialId": encodeID(rec.ID)})
		return nil
	}
	return data
}

// writeBlob replaces the stored blob, returning true if it was durably written
func (a *Authenticator) writeBlob(rec *credentialRecord, data []byte) bool {
	if !rec.LargeBlob || len(data) > a.cfg.MaxBlobBytes {
		return false
	}
	salt, err := utils.GenerateRandomBytes(saltSize)
	if err != nil {
		return false
	}
	s, err := a.sealer(salt, rec.ID)
	if err != nil {
		a.logger.Error(err, "cannot derive large blob key")
		return false
	}
	defer s.Clear()
	sealed, err := s.Seal(data, rec.ID)
	if err != nil {
		a.logger.Error(err, "cannot seal large blob")
		return false
	}
	if err = a.store.setBlob(rec.ID, &sealedBlob{Salt: salt, Data: sealed}); err != nil {
		a.logger.Error(err, "cannot store large blob", log.KV{"credentialId": encodeID(rec.ID)})
		return false
	}
	return true
}
