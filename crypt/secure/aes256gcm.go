package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/foretell-app/foretell/utils"
)

const (
	KeyLength = 32

	ErrInvalidKeyLength     = utils.Error("key length must be 32 bytes")
	ErrDataTooShort         = utils.Error("data too short")
	ErrNonceExhausted       = utils.Error("nonce counter exhausted, key rotation required")
	ErrAuthenticationFailed = utils.Error("authentication failed")
)

type aes256Gcm struct {
	key     []byte
	gcm     cipher.AEAD
	counter uint64
	mu      sync.Mutex
}

// NewAES256GCM creates an AES256-GCM Sealer; nonces are a 4 byte random prefix and an 8 byte counter
func NewAES256GCM(key []byte) (Sealer, error) {
	if subtle.ConstantTimeEq(int32(len(key)), KeyLength) != 1 {
		return nil, ErrInvalidKeyLength
	}
	result := &aes256Gcm{
		key: make([]byte, len(key)),
	}
	copy(result.key, key)
	block, err := aes.NewCipher(result.key)
	if err != nil {
		return nil, err
	}
	if result.gcm, err = cipher.NewGCM(block); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear zeroes the key material; the Sealer is unusable afterwards
func (a *aes256Gcm) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.key != nil {
		subtle.ConstantTimeCopy(1, a.key, make([]byte, len(a.key)))
		a.key = nil
	}
	a.gcm = nil
	a.counter = 0
}

// Seal encrypts data; the nonce is prepended to the result
func (a *aes256Gcm) Seal(data, associated []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gcm == nil {
		return nil, ErrInvalidKeyLength
	}
	if a.counter == math.MaxUint64 {
		return nil, ErrNonceExhausted
	}

	nonce := make([]byte, a.gcm.NonceSize(), a.gcm.NonceSize()+len(data)+a.gcm.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce[:4]); err != nil {
		return nil, err
	}
	binary.BigEndian.PutUint64(nonce[4:], a.counter)
	a.counter++

	return a.gcm.Seal(nonce, nonce, data, associated), nil
}

// Open decrypts data produced by Seal with the same associated data
func (a *aes256Gcm) Open(data, associated []byte) ([]byte, error) {
	a.mu.Lock()
	gcm := a.gcm
	a.mu.Unlock()
	if gcm == nil {
		return nil, ErrInvalidKeyLength
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize+gcm.Overhead() {
		return nil, ErrDataTooShort
	}
	result, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], associated)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return result, nil
}
