package redis

import (
	"context"
	"errors"
	"time"

	"github.com/foretell-app/foretell/crypt/secure"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/foretell-app/foretell/provider/tls"
	"github.com/foretell-app/foretell/utils"
	"github.com/redis/go-redis/v9"
)

const (
	ErrMissingAddress = utils.Error("Missing address")
	ErrInvalidTimeout = utils.Error("Invalid timeout")
)

// Config
type Config struct {
	Address        string `json:"address"`        // Address of the redis server
	DB             int    `json:"db"`             // DB is the redis database to use
	KeyPrefix      string `json:"keyPrefix"`      // KeyPrefix is prepended to every key, to share a database between devices
	TimeoutSeconds uint   `json:"timeoutSeconds"` // TimeoutSeconds seconds to wait for operation
	secure.DefaultCredentialConfig
	tls.ClientConfig
}

type Client struct {
	Client  *redis.Client
	config  *Config
	timeout time.Duration
}

// NewConfig returns a default Client configuration
func NewConfig() *Config {
	return &Config{
		Address:        "localhost:6379",
		KeyPrefix:      "foretell:",
		TimeoutSeconds: 10,
	}
}

// Validate Config
func (c *Config) Validate() error {
	if len(c.Address) == 0 {
		return ErrMissingAddress
	}
	if c.TimeoutSeconds == 0 {
		return ErrInvalidTimeout
	}
	return c.ClientConfig.Validate()
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = NewConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	pwd, err := config.DefaultCredentialConfig.Fetch()
	if err != nil {
		return nil, err
	}
	tlsConfig, err := config.TLSConfig()
	if err != nil {
		return nil, err
	}
	return &Client{
		config:  config,
		timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		Client: redis.NewClient(&redis.Options{
			Addr:      config.Address,
			Password:  pwd,
			DB:        config.DB,
			TLSConfig: tlsConfig,
		}),
	}, nil
}

func (c *Client) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// Connect checks the server is reachable
func (c *Client) Connect() error {
	ctx, cancel := c.context()
	defer cancel()
	return c.Client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// Key assemble key
func (c *Client) Key(key string) string {
	return c.config.KeyPrefix + key
}

// Prune is a no-op; redis expires keys on its own
func (c *Client) Prune() error {
	return nil
}

// Get fetch a key
func (c *Client) Get(key string) ([]byte, error) {
	ctx, cancel := c.context()
	defer cancel()

	data, err := c.Client.Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// Set sets a value without expiration
func (c *Client) Set(key string, value []byte) error {
	return c.SetTTL(key, value, 0)
}

// SetTTL sets a value with custom TTL; a ttl <= 0 never expires
func (c *Client) SetTTL(key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return kv.ErrEmptyKey
	}
	if ttl < 0 {
		ttl = 0
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.Client.Set(ctx, c.Key(key), value, ttl).Err()
}

// Delete removes a key
func (c *Client) Delete(key string) error {
	ctx, cancel := c.context()
	defer cancel()
	return c.Client.Del(ctx, c.Key(key)).Err()
}
