package blob

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/foretell-app/foretell/authenticator"
	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/metrics"
	"github.com/foretell-app/foretell/prediction"
	"github.com/foretell-app/foretell/utils"
)

const (
	ErrStorageWrite = utils.Error("secure storage write failed")
	ErrStorageRead  = utils.Error("secure storage read failed")
)

// Outcome of a secure read
type Outcome int

const (
	// Failed the ceremony or the payload decoding failed
	Failed Outcome = iota
	// Empty the credential holds no payload
	Empty
	// Found the payload was decoded
	Found
)

// ReadResult is the decoded outcome of a read ceremony; Predictions is never nil unless Outcome is Failed
type ReadResult struct {
	Outcome     Outcome
	Predictions []prediction.Prediction
	Err         error
}

// Store reads and writes the prediction list in the large blob of a known credential.
// Every call is one user-presence ceremony
type Store struct {
	auth    authenticator.Authenticator
	rp      *authenticator.RelyingParty
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewStore(auth authenticator.Authenticator, rp *authenticator.RelyingParty, m *metrics.Metrics) *Store {
	return &Store{
		auth:    auth,
		rp:      rp,
		metrics: m,
		logger:  log.New("blob"),
	}
}

func credentialField(credentialID []byte) log.KV {
	return log.KV{"credentialId": base64.StdEncoding.EncodeToString(credentialID)}
}

func outcome(err error) string {
	if authenticator.IsCancellation(err) {
		return metrics.OutcomeCancelled
	}
	return metrics.OutcomeFailure
}

// Write replaces the whole list; the error wraps ErrStorageWrite
func (s *Store) Write(ctx context.Context, credentialID []byte, list []prediction.Prediction) error {
	logger := log.FromContextOr(ctx, s.logger)
	data, err := prediction.Encode(list)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	options, err := s.rp.CredentialOptions(credentialID, authenticator.LargeBlobWrite(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	assertion, err := s.auth.Get(ctx, options)
	if err != nil {
		s.metrics.Ceremony(metrics.CeremonyWrite, outcome(err))
		logger.Error(err, "large blob write ceremony failed", credentialField(credentialID))
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	out := assertion.Extensions.LargeBlob
	if out == nil || out.Written == nil || !*out.Written {
		s.metrics.Ceremony(metrics.CeremonyWrite, metrics.OutcomeFailure)
		logger.Warn("platform declined large blob write", credentialField(credentialID))
		return ErrStorageWrite
	}
	s.metrics.Ceremony(metrics.CeremonyWrite, metrics.OutcomeSuccess)
	logger.Debug("large blob written", credentialField(credentialID), log.KV{"count": len(list)})
	return nil
}

// WriteBlob replaces the whole list; any failure is reported as false
func (s *Store) WriteBlob(ctx context.Context, credentialID []byte, list []prediction.Prediction) bool {
	return s.Write(ctx, credentialID, list) == nil
}

// Read fetches and decodes the list
func (s *Store) Read(ctx context.Context, credentialID []byte) ReadResult {
	logger := log.FromContextOr(ctx, s.logger)
	options, err := s.rp.CredentialOptions(credentialID, authenticator.LargeBlobRead())
	if err != nil {
		return ReadResult{Outcome: Failed, Err: fmt.Errorf("%w: %w", ErrStorageRead, err)}
	}
	assertion, err := s.auth.Get(ctx, options)
	if err != nil {
		s.metrics.Ceremony(metrics.CeremonyRead, outcome(err))
		logger.Error(err, "large blob read ceremony failed", credentialField(credentialID))
		return ReadResult{Outcome: Failed, Err: fmt.Errorf("%w: %w", ErrStorageRead, err)}
	}
	s.metrics.Ceremony(metrics.CeremonyRead, metrics.OutcomeSuccess)
	result := Decode(assertion.Extensions.LargeBlob)
	if result.Outcome == Failed {
		logger.Error(result.Err, "cannot decode large blob", credentialField(credentialID))
	}
	return result
}

// Decode maps the extension outputs of a read ceremony to a ReadResult
func Decode(out *authenticator.LargeBlobOutputs) ReadResult {
	if out == nil || len(out.Blob) == 0 {
		return ReadResult{Outcome: Empty, Predictions: []prediction.Prediction{}}
	}
	list, err := prediction.Decode(out.Blob)
	if err != nil {
		return ReadResult{Outcome: Failed, Err: fmt.Errorf("%w: %w", ErrStorageRead, err)}
	}
	return ReadResult{Outcome: Found, Predictions: list}
}

// ReadBlob returns the stored list, or false if there is no payload or the read failed
func (s *Store) ReadBlob(ctx context.Context, credentialID []byte) ([]prediction.Prediction, bool) {
	result := s.Read(ctx, credentialID)
	if result.Outcome != Found {
		return nil, false
	}
	return result.Predictions, true
}
