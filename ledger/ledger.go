// Package ledger is the commitment submission collaborator
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/foretell-app/foretell/utils"
)

const (
	ErrSubmission   = utils.Error("ledger submission failed")
	ErrRejected     = utils.Error("transaction rejected in wallet")
	ErrWrongNetwork = utils.Error("network error: check the connected network")
	ErrInvalidHash  = utils.Error("commitment hash is not a 32 byte hex value")
)

// Ledger records a commitment hash and returns the transaction reference
type Ledger interface {
	SubmitCommitment(ctx context.Context, hash string) (string, error)
}

// Func adapts a function to the Ledger interface
type Func func(ctx context.Context, hash string) (string, error)

func (f Func) SubmitCommitment(ctx context.Context, hash string) (string, error) {
	return f(ctx, hash)
}

// Wallet is the signing session gate
type Wallet interface {
	Connected() bool
}

// StaticWallet is connected when it has an address
type StaticWallet struct {
	Address string
}

func (w StaticWallet) Connected() bool {
	return strings.TrimSpace(w.Address) != ""
}

// Classify maps a wallet or transport error to the submission taxonomy; the result always matches ErrSubmission
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSubmission) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.Canceled) || strings.Contains(msg, "user rejected"):
		return fmt.Errorf("%w: %w: %w", ErrSubmission, ErrRejected, err)
	case strings.Contains(msg, "network"):
		return fmt.Errorf("%w: %w: %w", ErrSubmission, ErrWrongNetwork, err)
	}
	return fmt.Errorf("%w: %w", ErrSubmission, err)
}

// ToBytes32 normalises a hex digest to a 0x prefixed bytes32 literal
func ToBytes32(hash string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X")
	if len(raw) != 64 {
		return "", ErrInvalidHash
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", ErrInvalidHash
	}
	return "0x" + strings.ToLower(raw), nil
}
