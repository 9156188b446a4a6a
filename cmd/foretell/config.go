package main

import (
	"strings"

	"github.com/foretell-app/foretell/authenticator/soft"
	"github.com/foretell-app/foretell/client"
	"github.com/foretell-app/foretell/config"
	"github.com/foretell-app/foretell/config/provider"
	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/provider/redis"
	"github.com/foretell-app/foretell/provider/sqlite"
	"github.com/foretell-app/foretell/utils"
	"github.com/foretell-app/foretell/utils/fs"
)

const (
	ErrInvalidBackend = utils.Error("invalid store backend")
	ErrDeclined       = utils.Error("declined by user")
	ErrUsage          = utils.Error("invalid arguments")

	ErrPredictionNotFound = utils.Error("no prediction with that hash")
	ErrAmbiguousHash      = utils.Error("hash prefix matches several predictions")

	EnvPrefix = "FORETELL"

	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"

	DefaultKeyFile = "foretell.key"
)

type StoreConfig struct {
	Backend string `json:"backend"` // Backend one of sqlite, redis or memory
}

func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
		return nil
	}
	return ErrInvalidBackend
}

type WalletConfig struct {
	Address string `json:"address"` // Address of the connected signing account; empty means disconnected
}

func (c *WalletConfig) Validate() error {
	c.Address = strings.TrimSpace(c.Address)
	return nil
}

// Config is the full CLI configuration
type Config struct {
	Client        *client.Config
	Log           *log.Config
	Store         *StoreConfig
	SQLite        *sqlite.Config
	Redis         *redis.Config
	Authenticator *soft.Config
	Wallet        *WalletConfig
}

// NewConfigProvider layers the json file, when it exists, under FORETELL_* env vars
func NewConfigProvider(file string) (config.ConfigProvider, error) {
	var layers []config.ConfigProvider
	if file != "" && fs.FileExists(file) {
		jsonProvider, err := provider.NewJsonProvider(file)
		if err != nil {
			return nil, err
		}
		layers = append(layers, jsonProvider)
	}
	layers = append(layers, provider.NewEnvProvider(EnvPrefix))
	return provider.NewLayeredProvider(layers...), nil
}

func LoadConfig(p config.ConfigProvider) (*Config, error) {
	clientCfg, err := client.LoadConfig(p)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Client:        clientCfg,
		Log:           log.NewDefaultConfig(),
		Store:         &StoreConfig{Backend: BackendSQLite},
		SQLite:        sqlite.NewConfig(),
		Redis:         redis.NewConfig(),
		Authenticator: soft.NewConfig(),
		Wallet:        &WalletConfig{},
	}
	sections := []struct {
		key  string
		dest config.Validator
	}{
		{"log", cfg.Log},
		{"store", cfg.Store},
		{"sqlite", cfg.SQLite},
		{"redis", cfg.Redis},
		{"authenticator", cfg.Authenticator},
		{"wallet", cfg.Wallet},
	}
	for _, s := range sections {
		if err = config.Load(p, s.key, s.dest); err != nil {
			return nil, err
		}
	}
	// the emulated authenticator serves the configured relying party
	cfg.Authenticator.RPID = cfg.Client.Passkey.RPID
	if cfg.Authenticator.KeyConfig.IsEmpty() {
		cfg.Authenticator.KeyFile = DefaultKeyFile
	}
	return cfg, nil
}
