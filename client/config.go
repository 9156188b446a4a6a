package client

import (
	"fmt"

	"github.com/foretell-app/foretell/config"
	"github.com/foretell-app/foretell/ledger"
	"github.com/foretell-app/foretell/metrics"
	"github.com/foretell-app/foretell/passkey"
	"github.com/foretell-app/foretell/prediction"
	"github.com/foretell-app/foretell/utils"
	"github.com/foretell-app/foretell/vault"
)

const ErrMissingSection = utils.Error("missing config section")

const (
	KeyPasskey = "passkey"
	KeyVault   = "vault"
	KeyLedger  = "ledger"
	KeyMetrics = "metrics"
	KeyShare   = "share"
)

type Config struct {
	Passkey *passkey.Config         `json:"passkey"`
	Vault   *vault.Config           `json:"vault"`
	Ledger  *ledger.MockConfig      `json:"ledger"`
	Metrics *metrics.Config         `json:"metrics"`
	Share   *prediction.ShareConfig `json:"share"`
}

func NewConfig() *Config {
	return &Config{
		Passkey: passkey.NewConfig(),
		Vault:   vault.NewConfig(),
		Ledger:  ledger.NewMockConfig(),
		Metrics: metrics.NewConfig(),
		Share:   prediction.NewShareConfig(),
	}
}

func (c *Config) Validate() error {
	sections := []struct {
		key     string
		missing bool
		v       config.Validator
	}{
		{KeyPasskey, c.Passkey == nil, c.Passkey},
		{KeyVault, c.Vault == nil, c.Vault},
		{KeyLedger, c.Ledger == nil, c.Ledger},
		{KeyMetrics, c.Metrics == nil, c.Metrics},
		{KeyShare, c.Share == nil, c.Share},
	}
	for _, s := range sections {
		if s.missing {
			return fmt.Errorf("%w: %s", ErrMissingSection, s.key)
		}
		if err := s.v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig reads each component section from provider; missing sections keep their defaults
func LoadConfig(provider config.ConfigProvider) (*Config, error) {
	cfg := NewConfig()
	sections := []struct {
		key  string
		dest config.Validator
	}{
		{KeyPasskey, cfg.Passkey},
		{KeyVault, cfg.Vault},
		{KeyLedger, cfg.Ledger},
		{KeyMetrics, cfg.Metrics},
		{KeyShare, cfg.Share},
	}
	for _, s := range sections {
		if err := config.Load(provider, s.key, s.dest); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
