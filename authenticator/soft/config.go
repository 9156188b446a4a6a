package soft

import (
	"strings"

	"github.com/foretell-app/foretell/crypt/secure"
	"github.com/foretell-app/foretell/utils"
)

const (
	ErrMissingRPID      = utils.Error("soft authenticator: missing rpId")
	ErrInvalidBlobLimit = utils.Error("soft authenticator: invalid maxBlobBytes")

	DefaultMaxBlobBytes = 64 * 1024
	DefaultKeyPrefix    = "soft:"
	DefaultUserAgent    = "foretell-soft-authenticator/1.0"
)

type Config struct {
	RPID         string `json:"rpId"`
	UserAgent    string `json:"userAgent"`
	LargeBlob    bool   `json:"largeBlob"`    // LargeBlob false emulates an authenticator without the extension
	MaxBlobBytes int    `json:"maxBlobBytes"` // MaxBlobBytes larger writes are declined
	KeyPrefix    string `json:"keyPrefix"`    // KeyPrefix namespace for credential records in the KV
	secure.KeyConfig
}

func NewConfig() *Config {
	return &Config{
		RPID:         "localhost",
		UserAgent:    DefaultUserAgent,
		LargeBlob:    true,
		MaxBlobBytes: DefaultMaxBlobBytes,
		KeyPrefix:    DefaultKeyPrefix,
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPID) == "" {
		return ErrMissingRPID
	}
	if c.MaxBlobBytes <= 0 {
		return ErrInvalidBlobLimit
	}
	return nil
}
