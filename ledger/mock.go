package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/utils"
)

const (
	ErrInvalidDelay = utils.Error("invalid mock ledger delay")

	DefaultDelayMs = 1000
	txHashBytes    = 32
)

type MockConfig struct {
	DelayMs int `json:"delayMs"` // DelayMs simulated confirmation time
}

func NewMockConfig() *MockConfig {
	return &MockConfig{
		DelayMs: DefaultDelayMs,
	}
}

func (c *MockConfig) Validate() error {
	if c.DelayMs < 0 {
		return ErrInvalidDelay
	}
	return nil
}

// Mock is a stand-in ledger: it waits for the configured delay and returns a random transaction reference
type Mock struct {
	delay  time.Duration
	logger *log.Logger
}

func NewMock(cfg *MockConfig) (*Mock, error) {
	if cfg == nil {
		cfg = NewMockConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mock{
		delay:  time.Duration(cfg.DelayMs) * time.Millisecond,
		logger: log.New("ledger").WithField("ledger", "mock"),
	}, nil
}

func (m *Mock) SubmitCommitment(ctx context.Context, hash string) (string, error) {
	logger := log.FromContextOr(ctx, m.logger)
	commitment, err := ToBytes32(hash)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		logger.Warn("commitment submission aborted", log.KV{"hash": commitment})
		return "", Classify(ctx.Err())
	case <-timer.C:
	}

	buf, err := utils.GenerateRandomBytes(txHashBytes)
	if err != nil {
		return "", Classify(err)
	}
	txHash := "0x" + hex.EncodeToString(buf)
	logger.Info("commitment submitted", log.KV{"hash": commitment, "txHash": txHash})
	return txHash, nil
}
