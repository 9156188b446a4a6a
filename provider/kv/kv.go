package kv

import (
	"time"

	"github.com/foretell-app/foretell/utils"
)

const (
	ErrEmptyKey = utils.Error("empty key")
)

// KV is the durable local storage used for the auth record, the plaintext store and soft credentials.
// Get returns nil, nil when the key does not exist
type KV interface {
	SetTTL(k string, v []byte, ttl time.Duration) error
	Set(k string, v []byte) error
	Get(k string) ([]byte, error)
	Delete(k string) error
	Prune() error
}
