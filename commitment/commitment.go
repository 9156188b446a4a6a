// Package commitment builds salted prediction commitments
package commitment

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/foretell-app/foretell/utils"
)

const (
	ErrEmptyPrediction = utils.Error("prediction text is empty")
	ErrSalt            = utils.Error("cannot generate salt")
	ErrMismatch        = utils.Error("content does not match the committed hash")

	// SaltBound salts are drawn uniformly from [0, SaltBound)
	SaltBound = 1_000_000_000

	saltPrefix = " (salt: "
	saltSuffix = ")"
)

// Commitment is the salted text and the digest submitted to the ledger
type Commitment struct {
	SaltedContent string
	Hash          string
}

type Builder struct {
	rand io.Reader
}

type Option func(b *Builder)

// WithRand sets the salt source; it must be cryptographically strong outside of tests
func WithRand(r io.Reader) Option {
	return func(b *Builder) {
		b.rand = r
	}
}

func NewBuilder(opts ...Option) *Builder {
	result := &Builder{rand: rand.Reader}
	for _, opt := range opts {
		opt(result)
	}
	return result
}

// Build salts text as given and hashes it; blank text is rejected
func (b *Builder) Build(text string) (*Commitment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrediction
	}
	salt, err := rand.Int(b.rand, big.NewInt(SaltBound))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSalt, err)
	}
	salted := SaltedContent(text, salt.String())
	return &Commitment{
		SaltedContent: salted,
		Hash:          Digest(salted),
	}, nil
}

// BuildCommitment builds a commitment using the system random source
func BuildCommitment(text string) (*Commitment, error) {
	return NewBuilder().Build(text)
}

// SaltedContent returns "<text> (salt: <salt>)"
func SaltedContent(text, salt string) string {
	return text + saltPrefix + salt + saltSuffix
}

// Digest returns the lowercase hex SHA-256 of the UTF-8 bytes of s
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Verify returns true if hash is the digest of saltedContent; a 0x prefix and upper case are accepted
func Verify(saltedContent, hash string) bool {
	hash = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X"))
	return Digest(saltedContent) == hash
}

// SplitSalt recovers the prediction text and the decimal salt from salted content
func SplitSalt(saltedContent string) (text string, salt string, ok bool) {
	if !strings.HasSuffix(saltedContent, saltSuffix) {
		return "", "", false
	}
	idx := strings.LastIndex(saltedContent, saltPrefix)
	if idx < 0 {
		return "", "", false
	}
	salt = saltedContent[idx+len(saltPrefix) : len(saltedContent)-len(saltSuffix)]
	if salt == "" {
		return "", "", false
	}
	for _, c := range salt {
		if c < '0' || c > '9' {
			return "", "", false
		}
	}
	return saltedContent[:idx], salt, true
}
