package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "foretell"

	CeremonyRegister = "register"
	CeremonyLogin    = "login"
	CeremonyRead     = "read"
	CeremonyWrite    = "write"

	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"

	StoreSecure    = "secure"
	StorePlaintext = "plaintext"
)

type Config struct {
	// TextfilePath if set, metrics are written there on shutdown (node exporter textfile collector format)
	TextfilePath string `json:"textfilePath"`
	// RuntimeCollectors registers the go and process collectors
	RuntimeCollectors bool `json:"runtimeCollectors"`
}

func NewConfig() *Config {
	return &Config{}
}

func (c *Config) Validate() error {
	return nil
}

// Metrics holds the counters of the storage subsystem. A nil *Metrics is valid and records nothing
type Metrics struct {
	registry    *prometheus.Registry
	ceremonies  *prometheus.CounterVec
	cache       *prometheus.CounterVec
	predictions *prometheus.CounterVec
	fallbacks   prometheus.Counter
}

// New creates the counters in a dedicated registry
func New(cfg *Config) *Metrics {
	if cfg == nil {
		cfg = NewConfig()
	}
	registry := prometheus.NewRegistry()
	if cfg.RuntimeCollectors {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registry.MustRegister(collectors.NewGoCollector())
	}
	m := &Metrics{
		registry: registry,
		ceremonies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ceremonies_total",
			Help:      "Authenticator ceremonies by kind and outcome",
		}, []string{"kind", "outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Authenticated cache lookups by result",
		}, []string{"result"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_stored_total",
			Help:      "Predictions stored by destination",
		}, []string{"store"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_writes_total",
			Help:      "Secure storage writes that fell back to the plaintext store",
		}),
	}
	registry.MustRegister(m.ceremonies, m.cache, m.predictions, m.fallbacks)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Ceremony(kind, outcome string) {
	if m != nil {
		m.ceremonies.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cache.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cache.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) PredictionStored(store string) {
	if m != nil {
		m.predictions.WithLabelValues(store).Inc()
	}
}

func (m *Metrics) Fallback() {
	if m != nil {
		m.fallbacks.Inc()
	}
}

// WriteTextfile dumps the registry to path
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// CeremonyCounter returns the counter for kind and outcome
func (m *Metrics) CeremonyCounter(kind, outcome string) prometheus.Counter {
	return m.ceremonies.WithLabelValues(kind, outcome)
}

// CacheCounter returns the counter for a cache lookup result, "hit" or "miss"
func (m *Metrics) CacheCounter(result string) prometheus.Counter {
	return m.cache.WithLabelValues(result)
}

// StoredCounter returns the counter of predictions stored in store
func (m *Metrics) StoredCounter(store string) prometheus.Counter {
	return m.predictions.WithLabelValues(store)
}

// FallbackCounter returns the fallback writes counter
func (m *Metrics) FallbackCounter() prometheus.Counter {
	return m.fallbacks
}
