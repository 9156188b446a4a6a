package sqlite

import (
	"strings"

	"github.com/foretell-app/foretell/utils"
)

const (
	ErrEmptyPath      = utils.Error("sqlite: empty database path")
	ErrInvalidTable   = utils.Error("sqlite: invalid table name")
	ErrInvalidTimeout = utils.Error("sqlite: invalid timeout")

	DefaultTable     = "kv_store"
	DefaultTimeoutMs = 5000
	MemoryPath       = ":memory:"
)

type Config struct {
	Path      string `json:"path"`
	Table     string `json:"table"`
	TimeoutMs int    `json:"timeoutMs"`
}

func NewConfig() *Config {
	return &Config{
		Path:      "foretell.db",
		Table:     DefaultTable,
		TimeoutMs: DefaultTimeoutMs,
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return ErrEmptyPath
	}
	if c.Table == "" {
		return ErrInvalidTable
	}
	for _, r := range c.Table {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return ErrInvalidTable
		}
	}
	if c.TimeoutMs <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
