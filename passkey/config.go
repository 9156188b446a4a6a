package passkey

import (
	"strings"
	"time"

	"github.com/foretell-app/foretell/authenticator"
	"github.com/foretell-app/foretell/utils"
)

const (
	ErrMissingAuthKey       = utils.Error("missing auth state key")
	ErrMissingUserName      = utils.Error("missing user name")
	ErrInvalidCacheDuration = utils.Error("invalid cache duration")

	DefaultAuthKey              = "prediction_auth"
	DefaultUserName             = "Predictor"
	DefaultCacheDurationSeconds = 3 * 60 * 60
)

type Config struct {
	authenticator.RPConfig
	UserName             string `json:"userName"`
	UserDisplayName      string `json:"userDisplayName"`
	AuthKey              string `json:"authKey"`              // AuthKey durable storage key of the auth record
	CacheDurationSeconds int    `json:"cacheDurationSeconds"` // CacheDurationSeconds lifetime of the cached prediction list
}

func NewConfig() *Config {
	return &Config{
		RPConfig:             *authenticator.NewRPConfig(),
		UserName:             DefaultUserName,
		UserDisplayName:      DefaultUserName,
		AuthKey:              DefaultAuthKey,
		CacheDurationSeconds: DefaultCacheDurationSeconds,
	}
}

func (c *Config) Validate() error {
	if err := c.RPConfig.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.UserName) == "" {
		return ErrMissingUserName
	}
	if strings.TrimSpace(c.AuthKey) == "" {
		return ErrMissingAuthKey
	}
	if c.CacheDurationSeconds <= 0 {
		return ErrInvalidCacheDuration
	}
	return nil
}

func (c *Config) CacheDuration() time.Duration {
	return time.Duration(c.CacheDurationSeconds) * time.Second
}
