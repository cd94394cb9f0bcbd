package customfit

import (
	"fmt"
	"sync"
)

// RetryPolicy is the backoff configuration consumed by retry.go, per §3.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelayMs    int
	MaxDelayMs        int
	BackoffMultiplier float64
}

func (p RetryPolicy) validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("retry: max attempts must be >= 0, got %d", p.MaxAttempts)
	}
	if p.InitialDelayMs <= 0 {
		return fmt.Errorf("retry: initial delay must be > 0, got %d", p.InitialDelayMs)
	}
	if p.MaxDelayMs <= p.InitialDelayMs {
		return fmt.Errorf("retry: max delay (%d) must be > initial delay (%d)", p.MaxDelayMs, p.InitialDelayMs)
	}
	if p.BackoffMultiplier <= 1.0 {
		return fmt.Errorf("retry: backoff multiplier must be > 1.0, got %v", p.BackoffMultiplier)
	}
	return nil
}

func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       DefaultRetryMaxAttempts,
		InitialDelayMs:    DefaultRetryInitialDelayMs,
		MaxDelayMs:        DefaultRetryMaxDelayMs,
		BackoffMultiplier: DefaultRetryBackoffMultiplier,
	}
}

// ClientConfig is the immutable configuration snapshot described in §3. It
// is built once by the (out-of-scope) public builder surface and handed to
// the SDK; MutableClientConfig below is what the runtime actually holds so
// that individual fields can be swapped and observed.
type ClientConfig struct {
	ClientKey string

	EventsFlushIntervalMs    int
	SummariesFlushIntervalMs int
	SettingsCheckIntervalMs  int
	BackgroundPollIntervalMs int
	ReducedPollIntervalMs    int
	ConnectTimeoutMs         int
	ReadTimeoutMs            int

	Retry RetryPolicy

	EventsQueueSize    int
	SummariesQueueSize int
	MaxStoredEvents    int

	LoggingEnabled            bool
	DebugLoggingEnabled       bool
	LogLevel                  LogLevel
	OfflineMode               bool
	DisableBackgroundPolling  bool
	UseReducedPollingWhenLow  bool
	AutoEnvAttributesEnabled  bool

	Session SessionConfig

	APIBase      string
	SettingsBase string
}

// DefaultClientConfig returns a ClientConfig populated with every documented
// default from §6, requiring only a client key to be usable.
func DefaultClientConfig(clientKey string) ClientConfig {
	return ClientConfig{
		ClientKey: clientKey,

		EventsFlushIntervalMs:    DefaultEventsFlushIntervalMs,
		SummariesFlushIntervalMs: DefaultSummariesFlushIntervalMs,
		SettingsCheckIntervalMs:  DefaultSettingsCheckIntervalMs,
		BackgroundPollIntervalMs: DefaultBackgroundPollIntervalMs,
		ReducedPollIntervalMs:    DefaultReducedPollIntervalMs,
		ConnectTimeoutMs:         DefaultConnectTimeoutMs,
		ReadTimeoutMs:            DefaultReadTimeoutMs,

		Retry: defaultRetryPolicy(),

		EventsQueueSize:    DefaultEventsQueueSize,
		SummariesQueueSize: DefaultSummariesQueueSize,
		MaxStoredEvents:    DefaultMaxStoredEvents,

		LoggingEnabled:           true,
		UseReducedPollingWhenLow: true,
		AutoEnvAttributesEnabled: true,

		Session: DefaultSessionConfig(),

		APIBase:      DefaultAPIBase,
		SettingsBase: DefaultSettingsBase,
	}
}

// Validate checks the invariants named in §3: all durations positive,
// backoff multiplier strictly > 1, queue sizes >= 1.
func (c ClientConfig) Validate() error {
	if c.ClientKey == "" {
		return fmt.Errorf("config: client key is required")
	}
	durations := map[string]int{
		"events_flush_interval_ms":     c.EventsFlushIntervalMs,
		"summaries_flush_interval_ms":  c.SummariesFlushIntervalMs,
		"settings_check_interval_ms":   c.SettingsCheckIntervalMs,
		"background_poll_interval_ms":  c.BackgroundPollIntervalMs,
		"reduced_poll_interval_ms":     c.ReducedPollIntervalMs,
		"connect_timeout_ms":           c.ConnectTimeoutMs,
		"read_timeout_ms":              c.ReadTimeoutMs,
	}
	for name, v := range durations {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", name, v)
		}
	}
	if c.EventsQueueSize < 1 || c.SummariesQueueSize < 1 || c.MaxStoredEvents < 1 {
		return fmt.Errorf("config: queue sizes must be >= 1")
	}
	return c.Retry.validate()
}

// fieldChangeListener is invoked with the name of a changed field whenever
// MutableClientConfig.Replace swaps the snapshot.
type fieldChangeListener func(field string)

// MutableClientConfig holds the current ClientConfig and supports atomic
// replacement plus per-field change notification, per §3. Readers call
// Current() to get a consistent snapshot without blocking a concurrent
// Replace (copy-on-write, same policy as the ConfigMap in config_value.go).
type MutableClientConfig struct {
	mu        sync.RWMutex
	current   ClientConfig
	listeners map[string][]fieldChangeListener
}

func NewMutableClientConfig(initial ClientConfig) *MutableClientConfig {
	return &MutableClientConfig{current: initial, listeners: make(map[string][]fieldChangeListener)}
}

func (m *MutableClientConfig) Current() ClientConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers fn to be called whenever the named field changes.
// Field names are free-form strings chosen by the caller (e.g.
// "offline_mode", "settings_check_interval_ms").
func (m *MutableClientConfig) Subscribe(field string, fn func(field string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[field] = append(m.listeners[field], fn)
}

// Replace atomically swaps the current config for next, diffing which
// named fields changed (as told to it by the caller via changedFields,
// since comparing two arbitrary ClientConfig values field-by-field is the
// caller's business, not this type's) and notifies their listeners.
func (m *MutableClientConfig) Replace(next ClientConfig, changedFields ...string) {
	type pending struct {
		field string
		fn    fieldChangeListener
	}
	m.mu.Lock()
	m.current = next
	var toNotify []pending
	for _, f := range changedFields {
		for _, fn := range m.listeners[f] {
			toNotify = append(toNotify, pending{field: f, fn: fn})
		}
	}
	m.mu.Unlock()
	for _, p := range toNotify {
		field := p.field
		fn := p.fn
		safeCall(func() { fn(field) })
	}
}

// SetOfflineMode flips the offline_mode field and notifies listeners of
// that single field, the common case driven by Client.SetOfflineMode.
func (m *MutableClientConfig) SetOfflineMode(offline bool) {
	m.mu.Lock()
	next := m.current
	next.OfflineMode = offline
	m.current = next
	toNotify := append([]fieldChangeListener{}, m.listeners["offline_mode"]...)
	m.mu.Unlock()
	for _, fn := range toNotify {
		safeCall(func() { fn("offline_mode") })
	}
}
