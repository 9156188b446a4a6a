package secure

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/foretell-app/foretell/utils"
	"github.com/foretell-app/foretell/utils/fs"
	"golang.org/x/crypto/hkdf"
)

const (
	ErrEmptyKey       = utils.Error("empty key")
	ErrInvalidKeyData = utils.Error("key must be 32 bytes, hex or base64 encoded")
)

// DefaultCredentialConfig misc options for credentials
type DefaultCredentialConfig struct {
	Password       string `json:"password"`       // Password plaintext password; if set, is used instead of the rest
	PasswordEnvVar string `json:"passwordEnvVar"` // PasswordEnvVar name of env var with secret
	PasswordFile   string `json:"passwordFile"`   // PasswordFile name of secrets file
}

type KeyConfig struct {
	Key       string `json:"key"`
	KeyEnvVar string `json:"keyEnvVar"`
	KeyFile   string `json:"keyFile"`
}

// fetchSecret resolves a secret from a plaintext value, an env var (cleared after reading) or a file
func fetchSecret(plainText, envVar, file string) (string, error) {
	if plainText = strings.TrimSpace(plainText); plainText != "" {
		return plainText, nil
	}
	if envVar = strings.TrimSpace(envVar); envVar != "" {
		value := os.Getenv(envVar)
		_ = os.Unsetenv(envVar)
		return value, nil
	}
	if file = strings.TrimSpace(file); file != "" {
		return fs.ReadString(file)
	}
	return "", nil
}

func (c DefaultCredentialConfig) IsEmpty() bool {
	return strings.TrimSpace(c.Password) == "" &&
		strings.TrimSpace(c.PasswordEnvVar) == "" &&
		strings.TrimSpace(c.PasswordFile) == ""
}

// Fetch retrieve the contents of the credential
func (c DefaultCredentialConfig) Fetch() (string, error) {
	return fetchSecret(c.Password, c.PasswordEnvVar, c.PasswordFile)
}

func (c KeyConfig) IsEmpty() bool {
	return strings.TrimSpace(c.Key) == "" &&
		strings.TrimSpace(c.KeyEnvVar) == "" &&
		strings.TrimSpace(c.KeyFile) == ""
}

// Fetch retrieve the encoded key
func (c KeyConfig) Fetch() (string, error) {
	return fetchSecret(c.Key, c.KeyEnvVar, c.KeyFile)
}

// Bytes fetches and decodes the key; accepts 64 hex chars or base64 (std or url) of 32 bytes
func (c KeyConfig) Bytes() ([]byte, error) {
	encoded, err := c.Fetch()
	if err != nil {
		return nil, err
	}
	if encoded == "" {
		return nil, ErrEmptyKey
	}
	if key, err := hex.DecodeString(encoded); err == nil && len(key) == KeyLength {
		return key, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil && len(key) == KeyLength {
			return key, nil
		}
	}
	return nil, ErrInvalidKeyData
}

// DeriveKey derives a 32 byte subkey from master, bound to the given context
func DeriveKey(master, salt []byte, context string) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrEmptyKey
	}
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, []byte(context)), key); err != nil {
		return nil, err
	}
	return key, nil
}
