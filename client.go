// Package customfit contains the Go SDK's runtime engine: configuration
// polling and caching, event and summary pipelines, session rotation, and
// the resilience layer (retry, circuit breaker, connection/app/battery
// monitors) that ties them together.
package customfit

import (
	"context"
	"sync"
	"time"
)

var (
	singletonMu       sync.Mutex
	singletonInstance *Client
	singletonInitCh   chan struct{}
)

// Client is the Facade, Component N: it wires together every other
// component and is the only type application code talks to directly.
type Client struct {
	config    ClientConfig
	mutConfig *MutableClientConfig
	logger    *leveledLogger

	store   KVStore
	http    *httpClient
	cache   *ConfigCache
	fetcher *ConfigFetcher

	conn    *ConnectionMonitor
	battery *AppStateBatteryMonitor
	session *SessionManager

	listeners *ListenerManager
	summaries *SummaryManager
	events    *EventTracker
	manager   *ConfigManager

	mu   sync.RWMutex
	user User

	closeOnce sync.Once
}

// Initialize is the guarded singleton constructor from §4.N: concurrent
// callers receive the same instance, and only the first caller's
// config/user take effect — later callers racing in are told so via the
// returned bool.
func Initialize(cfg ClientConfig, user User) (*Client, bool, error) {
	singletonMu.Lock()
	if singletonInstance != nil {
		existing := singletonInstance
		singletonMu.Unlock()
		return existing, false, nil
	}
	if singletonInitCh != nil {
		ch := singletonInitCh
		singletonMu.Unlock()
		<-ch
		singletonMu.Lock()
		existing := singletonInstance
		singletonMu.Unlock()
		return existing, false, nil
	}
	ch := make(chan struct{})
	singletonInitCh = ch
	singletonMu.Unlock()

	client, err := CreateDetached(cfg, user)

	singletonMu.Lock()
	if err == nil {
		singletonInstance = client
	}
	singletonInitCh = nil
	singletonMu.Unlock()
	close(ch)

	return client, true, err
}

// GetInstance returns the current singleton, or nil if none has been
// initialized.
func GetInstance() *Client {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singletonInstance
}

func IsInitialized() bool {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singletonInstance != nil
}

func IsInitializing() bool {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singletonInitCh != nil
}

// Shutdown tears down the singleton if it's the one calling Shutdown; the
// next Initialize call starts a fresh instance.
func Shutdown() {
	singletonMu.Lock()
	existing := singletonInstance
	singletonInstance = nil
	singletonMu.Unlock()
	if existing != nil {
		existing.Close()
	}
}

// Reinitialize shuts down any existing singleton and starts a new one with
// cfg/user, per §4.N.
func Reinitialize(cfg ClientConfig, user User) (*Client, error) {
	Shutdown()
	client, _, err := Initialize(cfg, user)
	return client, err
}

// CreateDetached builds a Client bypassing the package-level singleton,
// per §4.N — used by tests and by hosts that need more than one instance.
func CreateDetached(cfg ClientConfig, user User) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:    cfg,
		mutConfig: NewMutableClientConfig(cfg),
		user:      user,
	}

	c.logger = newLeveledLogger(nil, cfg.LogLevel, cfg.DebugLoggingEnabled, nil)

	c.store = NewMemoryKVStore()
	c.http = newHTTPClient(cfg.ClientKey, time.Duration(cfg.ConnectTimeoutMs)*time.Millisecond, time.Duration(cfg.ReadTimeoutMs)*time.Millisecond)
	c.cache = NewConfigCache(c.store, cfg.ClientKey)
	c.conn = NewConnectionMonitor(SystemClock)
	c.conn.SetOfflineMode(cfg.OfflineMode)
	c.battery = NewAppStateBatteryMonitor()

	breakers := NewCircuitBreakerRegistry(defaultCircuitBreakerConfig())
	c.fetcher = NewConfigFetcher(c.http, breakers, cfg.Retry, c.conn, cfg.APIBase, cfg.SettingsBase, cfg.ClientKey)

	c.session = NewSessionManager(c.store, SystemClock, cfg.Session)
	c.session.Subscribe(c.onSessionRotated)

	c.listeners = NewListenerManager()
	c.summaries = NewSummaryManager(c.fetcher, c.logger, cfg.SummariesQueueSize, time.Duration(cfg.SummariesFlushIntervalMs)*time.Millisecond)
	c.events = NewEventTracker(c.fetcher, c.summaries, c.store, SystemClock, c.logger, cfg.EventsQueueSize, cfg.MaxStoredEvents, time.Duration(cfg.EventsFlushIntervalMs)*time.Millisecond, c.session.CurrentSessionID)
	c.manager = NewConfigManager(c.fetcher, c.cache, c.listeners, c.battery, c.conn, SystemClock, c.logger, cfg.ClientKey, user, cfg.SettingsCheckIntervalMs, cfg.ReducedPollIntervalMs, cfg.BackgroundPollIntervalMs, cfg.DisableBackgroundPolling, cfg.UseReducedPollingWhenLow)

	if !cfg.OfflineMode {
		ctx, cancel := context.WithTimeout(context.Background(), InitialSettingsCheckTimeout)
		if err := c.manager.Check(ctx); err != nil && c.logger != nil {
			// Initial-check error must not fail initialization, per §4.N.
			c.logger.Warnf("initial settings check failed: %v", err)
		}
		cancel()
	}

	c.manager.StartPolling()

	return c, nil
}

func (c *Client) onSessionRotated(oldID, newID string, reason RotationReason) {
	c.events.Track(EventTypeTrack, "", map[string]Value{
		"previous_session_id": StringValue(oldID),
		"new_session_id":      StringValue(newID),
		"reason":              StringValue(string(reason)),
	})
}

// GetFeatureFlag implements §4.N's get_feature_flag<T>.
func GetFeatureFlag[T any](c *Client, key string, def T) T {
	customerID, _ := c.user.CustomerID()
	return Get(c.manager, c.summaries, c.session.CurrentSessionID(), customerID, key, def)
}

func (c *Client) GetAllFlags() map[string]Value {
	return c.manager.GetAllFlags()
}

// TrackEvent records an application event, stamped with the current
// session id by the Event Tracker.
func (c *Client) TrackEvent(eventType EventType, props map[string]Value) {
	customerID, _ := c.user.CustomerID()
	c.events.Track(eventType, customerID, props)
}

func (c *Client) SetUserAttribute(key string, value Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = c.user.WithProperty(key, value)
}

func (c *Client) SetUserAttributes(attrs map[string]Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = c.user.WithProperties(attrs)
}

func (c *Client) AddContext(ctx EvaluationContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = c.user.WithContext(ctx)
}

func (c *Client) RemoveContext(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = c.user.WithoutContext(key)
}

func (c *Client) SetOfflineMode(offline bool) {
	c.mutConfig.SetOfflineMode(offline)
	c.conn.SetOfflineMode(offline)
}

func (c *Client) ForceRefresh(ctx context.Context) error {
	return c.manager.ForceRefresh(ctx)
}

// UpdateSettingsCheckInterval implements the facade's update_*interval
// control operation (§4.N) for the normal foreground poll cadence.
func (c *Client) UpdateSettingsCheckInterval(ms int) {
	next := c.mutConfig.Current()
	next.SettingsCheckIntervalMs = ms
	c.mutConfig.Replace(next, "settings_check_interval_ms")
	c.manager.UpdateSettingsCheckInterval(ms)
}

// UpdateBackgroundPollingInterval updates the backgrounded poll cadence.
func (c *Client) UpdateBackgroundPollingInterval(ms int) {
	next := c.mutConfig.Current()
	next.BackgroundPollIntervalMs = ms
	c.mutConfig.Replace(next, "background_poll_interval_ms")
	c.manager.UpdateBackgroundPollingInterval(ms)
}

// UpdateReducedPollingInterval updates the low-battery reduced cadence.
func (c *Client) UpdateReducedPollingInterval(ms int) {
	next := c.mutConfig.Current()
	next.ReducedPollIntervalMs = ms
	c.mutConfig.Replace(next, "reduced_poll_interval_ms")
	c.manager.UpdateReducedPollingInterval(ms)
}

func (c *Client) User() User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Close implements the shutdown sequence from §4.N: stop timers, flush
// summaries then events (preserving the ordering invariant one last
// time) within ShutdownGracePeriod, then stop the pipelines and the
// listener dispatch goroutine. Close writes nothing to the store itself;
// see ShutdownGracePeriod for when unsent events are spilled.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.manager.Close()

		ctx, cancel := context.WithTimeout(context.Background(), ShutdownGracePeriod)
		defer cancel()
		_ = c.summaries.Flush(ctx)
		_ = c.events.Flush(ctx)

		c.summaries.Close()
		c.events.Close()
		c.listeners.Close()
	})
}
