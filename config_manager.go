package customfit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ConfigManager is Component I, the core poll loop: HEAD-then-conditional-
// GET settings, gate on the remote kill switches, diff the resulting
// ConfigMap, and notify listeners. At most one settings check is ever in
// flight (enforced via singleflight rather than a bare mutex, so
// concurrent callers collapse onto the same in-flight check instead of one
// returning immediately empty-handed).
type ConfigManager struct {
	fetcher   *ConfigFetcher
	cache     *ConfigCache
	listeners *ListenerManager
	monitor   *AppStateBatteryMonitor
	conn      *ConnectionMonitor
	clock     Clock
	logger    *leveledLogger

	clientKey string
	user      User

	normalPollMs      int
	reducedPollMs     int
	backgroundPollMs  int
	disableBackground bool
	useReducedWhenLow bool

	sg singleflight.Group

	mu                sync.RWMutex
	configs           ConfigMap
	prevLastModified  string
	prevETag          string
	currentSettings   *SdkSettings
	sdkEnabled        bool
	cacheLoaded       bool

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewConfigManager constructs a ConfigManager and synchronously hydrates
// from the Config Cache, per §4.G's "cached configs seed the ConfigMap and
// enable immediate reads before first server response" guarantee.
func NewConfigManager(fetcher *ConfigFetcher, cache *ConfigCache, listeners *ListenerManager, monitor *AppStateBatteryMonitor, conn *ConnectionMonitor, clock Clock, logger *leveledLogger, clientKey string, user User, normalPollMs, reducedPollMs, backgroundPollMs int, disableBackground, useReducedWhenLow bool) *ConfigManager {
	m := &ConfigManager{
		fetcher:           fetcher,
		cache:             cache,
		listeners:         listeners,
		monitor:           monitor,
		conn:              conn,
		clock:             clock,
		logger:            logger,
		clientKey:         clientKey,
		user:              user,
		normalPollMs:      normalPollMs,
		reducedPollMs:     reducedPollMs,
		backgroundPollMs:  backgroundPollMs,
		disableBackground: disableBackground,
		useReducedWhenLow: useReducedWhenLow,
		sdkEnabled:        true,
		stop:              make(chan struct{}),
	}
	if cached, lastModified, etag, ok := cache.Load(); ok {
		m.configs = cached
		m.prevLastModified = lastModified
		m.prevETag = etag
	}
	m.cacheLoaded = true
	if monitor != nil {
		monitor.SubscribeAppState(m.onAppState)
	}
	return m
}

// StartPolling launches the background ticker loop at the effective
// cadence and performs an immediate check first, per §4.I.
func (m *ConfigManager) StartPolling() {
	m.wg.Add(1)
	go m.pollLoop()
}

func (m *ConfigManager) pollLoop() {
	defer m.wg.Done()
	m.Check(context.Background())
	for {
		interval := m.effectiveInterval()
		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
			// With background polling disabled, ticks while backgrounded
			// are skipped; onAppState checks again on return to foreground.
			if m.disableBackground && m.monitor != nil && m.monitor.CurrentAppState() == AppBackground {
				continue
			}
			m.Check(context.Background())
		case <-m.stop:
			timer.Stop()
			return
		}
	}
}

func (m *ConfigManager) effectiveInterval() time.Duration {
	m.mu.RLock()
	normalMs, reducedMs, backgroundMs := m.normalPollMs, m.reducedPollMs, m.backgroundPollMs
	m.mu.RUnlock()

	if m.monitor != nil && m.monitor.CurrentAppState() == AppBackground {
		if m.disableBackground {
			return time.Duration(normalMs) * time.Millisecond
		}
		return time.Duration(backgroundMs) * time.Millisecond
	}
	ms := normalMs
	if m.monitor != nil {
		ms = m.monitor.GetPollingInterval(normalMs, reducedMs, m.useReducedWhenLow)
	}
	return time.Duration(ms) * time.Millisecond
}

// UpdateSettingsCheckInterval changes the normal (foreground) poll cadence,
// part of the facade's update_*interval control operation from §4.N. Takes
// effect on the next tick of the poll loop.
func (m *ConfigManager) UpdateSettingsCheckInterval(ms int) {
	m.mu.Lock()
	m.normalPollMs = ms
	m.mu.Unlock()
}

// UpdateBackgroundPollingInterval changes the backgrounded poll cadence.
func (m *ConfigManager) UpdateBackgroundPollingInterval(ms int) {
	m.mu.Lock()
	m.backgroundPollMs = ms
	m.mu.Unlock()
}

// UpdateReducedPollingInterval changes the low-battery reduced cadence.
func (m *ConfigManager) UpdateReducedPollingInterval(ms int) {
	m.mu.Lock()
	m.reducedPollMs = ms
	m.mu.Unlock()
}

// onAppState performs the "on foreground transition, immediate check"
// behavior from §4.I; background transitions change the cadence, or pause
// polling entirely when background polling is disabled (see pollLoop).
func (m *ConfigManager) onAppState(state AppState) {
	if state == AppForeground {
		go m.Check(context.Background())
	}
}

// Check runs one settings-check cycle, per the six-step algorithm in §4.I.
// Concurrent calls collapse onto a single in-flight check via singleflight
// rather than one losing caller returning with nothing, which better
// matches "additional attempts return immediately" for callers that still
// want the result (force_refresh callers in particular).
func (m *ConfigManager) Check(ctx context.Context) error {
	if m.conn != nil && m.conn.IsOfflineMode() {
		return nil
	}
	_, err, _ := m.sg.Do("settings-check", func() (interface{}, error) {
		return nil, m.checkOnce(ctx)
	})
	return err
}

// ForceRefresh clears the stored validators before checking, guaranteeing
// a full GET per §4.I.
func (m *ConfigManager) ForceRefresh(ctx context.Context) error {
	m.mu.Lock()
	m.prevLastModified = ""
	m.prevETag = ""
	m.mu.Unlock()
	return m.Check(ctx)
}

func (m *ConfigManager) checkOnce(ctx context.Context) error {
	m.mu.RLock()
	prevEtag := m.prevETag
	needSettingsRefresh := m.currentSettings == nil
	m.mu.RUnlock()

	headResp, err := m.fetcher.HeadSettings(ctx, prevEtag)
	if err != nil {
		if m.logger != nil {
			m.logger.Warnf("settings HEAD failed: %v", err)
		}
		return err
	}

	// A 304 HEAD carries no Last-Modified/ETag at all, so it must not be
	// compared against the stored validators — that would spuriously read
	// as "changed" every time, since empty never equals a stored value.
	m.mu.RLock()
	changed := !headResp.NotModified && (headResp.LastModified != m.prevLastModified || headResp.ETag != m.prevETag)
	needGet := needSettingsRefresh || changed
	m.mu.RUnlock()

	var settings SdkSettings
	if needGet {
		// When we've never held settings in memory (cold start, possibly
		// with only a cached ConfigMap), ask for the body unconditionally
		// rather than replaying prevEtag — a faithful 304 there would leave
		// currentSettings/sdkEnabled with nothing to fall back to.
		getEtag := prevEtag
		if needSettingsRefresh {
			getEtag = ""
		}
		var getResp *httpResponse
		var getErr error
		settings, getResp, getErr = m.fetcher.GetSettings(ctx, getEtag)
		if getErr != nil {
			if m.logger != nil {
				m.logger.Warnf("settings GET failed: %v", getErr)
			}
			return getErr
		}
		if !getResp.NotModified {
			m.mu.Lock()
			m.currentSettings = &settings
			m.sdkEnabled = settings.Enabled()
			m.mu.Unlock()
		}
	}

	if !changed {
		return nil
	}

	m.mu.RLock()
	enabled := m.sdkEnabled
	m.mu.RUnlock()

	if enabled {
		if err := m.refreshUserConfigs(ctx, headResp.LastModified, headResp.ETag); err != nil {
			if m.logger != nil {
				m.logger.Warnf("user-configs refresh failed: %v", err)
			}
		}
	}

	m.mu.Lock()
	m.prevLastModified = headResp.LastModified
	m.prevETag = headResp.ETag
	m.mu.Unlock()
	return nil
}

func (m *ConfigManager) refreshUserConfigs(ctx context.Context, lastModified, etag string) error {
	m.mu.RLock()
	prevEtag := m.prevETag
	m.mu.RUnlock()

	newConfigs, resp, err := m.fetcher.PostUserConfigs(ctx, m.user, prevEtag)
	if err != nil {
		return err
	}
	if resp.NotModified {
		return nil
	}
	m.apply(newConfigs, lastModified, etag)
	return nil
}

// apply replaces the stored ConfigMap atomically, diffs it against the
// prior map, and notifies listeners per §4.I. Persistence to the Config
// Cache happens last so a crash mid-apply never leaves the cache pointing
// at a map the in-memory state never actually held. The cache entry carries
// lastModified/etag, the validators of the settings check that produced
// newConfigs.
func (m *ConfigManager) apply(newConfigs ConfigMap, lastModified, etag string) {
	m.mu.Lock()
	oldConfigs := m.configs
	m.configs = newConfigs
	m.mu.Unlock()

	changedKeys := diffConfigMaps(oldConfigs, newConfigs)
	if len(changedKeys) == 0 {
		return
	}
	for _, key := range changedKeys {
		old := oldConfigs[key].Variation
		newVal := newConfigs[key].Variation
		m.listeners.NotifyKeyChanged(key, old, newVal)
	}
	m.listeners.NotifyAllFlagsChanged(changedKeys)

	if m.cache != nil {
		if err := m.cache.Save(newConfigs, lastModified, etag); err != nil && m.logger != nil {
			m.logger.Errorf("persisting config cache: %v", err)
		}
	}
}

// Get implements the flag-read contract from §4.I. T-type mismatches log
// and return def rather than panicking, since flag reads must never crash
// the calling application.
func Get[T any](m *ConfigManager, summaries *SummaryManager, sessionID, userCustomerID, key string, def T) T {
	m.mu.RLock()
	enabled := m.sdkEnabled
	cv, ok := m.configs[key]
	m.mu.RUnlock()

	if !enabled {
		return def
	}
	if !ok {
		return def
	}
	raw := cv.Variation.Raw()
	typed, matches := raw.(T)
	if !matches {
		if m.logger != nil {
			m.logger.Warnf("flag %q variation type mismatch, returning default", key)
		}
		return def
	}
	if summaries != nil {
		summaries.Track(SummaryRecord{
			ConfigID:       cv.ConfigID,
			VariationID:    cv.VariationID,
			ExperienceID:   cv.ExperienceID,
			RuleID:         cv.RuleID,
			FlagKey:        key,
			UserCustomerID: userCustomerID,
			SessionID:      sessionID,
			SummaryTimeMs:  NowMs(m.clock),
		})
	}
	return typed
}

// GetAllFlags returns every currently enabled flag's variation, empty when
// the SDK is disabled, per §4.I/§3.
func (m *ConfigManager) GetAllFlags() map[string]Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.sdkEnabled {
		return map[string]Value{}
	}
	out := make(map[string]Value, len(m.configs))
	for k, v := range m.configs {
		out[k] = v.Variation
	}
	return out
}

func (m *ConfigManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}
