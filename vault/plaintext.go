package vault

import (
	"sync"

	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/metrics"
	"github.com/foretell-app/foretell/prediction"
	"github.com/foretell-app/foretell/provider/kv"
)

// Plaintext is the unauthenticated fallback list, stored whole under a single key
type Plaintext struct {
	db      kv.KV
	key     string
	metrics *metrics.Metrics
	logger  *log.Logger
	mu      sync.Mutex
}

func NewPlaintext(cfg *Config, db kv.KV, mt *metrics.Metrics) (*Plaintext, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Plaintext{
		db:      db,
		key:     cfg.PlaintextKey,
		metrics: mt,
		logger:  log.New("vault").WithField("store", metrics.StorePlaintext),
	}, nil
}

// StoreInLocalStorage replaces the stored list
func (s *Plaintext) StoreInLocalStorage(list []prediction.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(list)
}

// GetFromLocalStorage returns the stored list; missing or corrupt data reads as an empty list
func (s *Plaintext) GetFromLocalStorage() []prediction.Prediction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get()
}

// Append adds p to the end of the stored list
func (s *Plaintext) Append(p prediction.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := prediction.Append(s.get(), p)
	if err := s.store(next); err != nil {
		return err
	}
	s.metrics.PredictionStored(metrics.StorePlaintext)
	s.logger.Info("prediction stored in plaintext storage", log.KV{"count": len(next)})
	return nil
}

func (s *Plaintext) store(list []prediction.Prediction) error {
	data, err := prediction.Encode(list)
	if err != nil {
		return err
	}
	if err = s.db.Set(s.key, data); err != nil {
		s.logger.Error(err, "cannot write plaintext predictions")
		return err
	}
	return nil
}

func (s *Plaintext) get() []prediction.Prediction {
	data, err := s.db.Get(s.key)
	if err != nil {
		s.logger.Error(err, "cannot read plaintext predictions")
		return []prediction.Prediction{}
	}
	list, err := prediction.Decode(data)
	if err != nil {
		s.logger.Warn("ignoring corrupt plaintext predictions", log.KV{"error": err.Error()})
		return []prediction.Prediction{}
	}
	return list
}
