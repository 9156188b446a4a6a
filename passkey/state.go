package passkey

import (
	"encoding/base64"
	"time"

	"github.com/foretell-app/foretell/prediction"
)

// AuthState is the local session record of the current credential
type AuthState struct {
	CredentialID      string                  `json:"credentialId"`
	LastUsed          int64                   `json:"lastUsed"`
	UserID            string                  `json:"userId"`
	CachedPredictions []prediction.Prediction `json:"cachedPredictions"`
	CacheExpiry       int64                   `json:"cacheExpiry"`
}

// CredentialIDBytes decodes the credential id
func (a *AuthState) CredentialIDBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.CredentialID)
}

// CacheValid returns true if a cached list is present and now has not passed the expiry
func (a *AuthState) CacheValid(now time.Time) bool {
	return a.CachedPredictions != nil && now.UnixMilli() <= a.CacheExpiry
}

func encodeCredentialID(id []byte) string {
	return base64.StdEncoding.EncodeToString(id)
}

// State of the credential lifecycle
type State int

const (
	NoCredential State = iota
	Registering
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Registering:
		return "registering"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return "no credential"
}
