package vault

import (
	"strings"

	"github.com/foretell-app/foretell/utils"
)

const (
	ErrMissingPlaintextKey = utils.Error("missing plaintext store key")

	DefaultPlaintextKey = "predictions"
)

type Config struct {
	PlaintextKey string `json:"plaintextKey"`
}

func NewConfig() *Config {
	return &Config{
		PlaintextKey: DefaultPlaintextKey,
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.PlaintextKey) == "" {
		return ErrMissingPlaintextKey
	}
	return nil
}
