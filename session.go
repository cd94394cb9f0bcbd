package customfit

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionConfig holds the rotation policy knobs from §3/§6.
type SessionConfig struct {
	MaxSessionDurationMs     int64
	MinSessionDurationMs     int64
	BackgroundThresholdMs    int64
	RotateOnAppRestart       bool
	RotateOnAuthChange       bool
	SessionIDPrefix          string
	EnableTimeBasedRotation  bool
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxSessionDurationMs:    DefaultMaxSessionDurationMs,
		MinSessionDurationMs:    DefaultMinSessionDurationMs,
		BackgroundThresholdMs:   DefaultBackgroundThresholdMs,
		RotateOnAppRestart:      true,
		RotateOnAuthChange:      true,
		SessionIDPrefix:         DefaultSessionIDPrefix,
		EnableTimeBasedRotation: true,
	}
}

// SessionData is the persisted session state, per §3.
type SessionData struct {
	SessionID      string
	CreatedAt      time.Time
	LastActiveAt   time.Time
	AppStartTime   time.Time
	RotationReason RotationReason
}

func (s SessionData) age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

func (s SessionData) inactiveTime(now time.Time) time.Duration {
	return now.Sub(s.LastActiveAt)
}

// valid reports whether s is still usable at now, per §4.M: age < max
// duration and inactive time < background threshold.
func (s SessionData) valid(now time.Time, cfg SessionConfig) bool {
	return s.age(now) < time.Duration(cfg.MaxSessionDurationMs)*time.Millisecond &&
		s.inactiveTime(now) < time.Duration(cfg.BackgroundThresholdMs)*time.Millisecond
}

// sessionPhase is the internal state-machine position; "backgrounded" is
// the only phase not directly visible in SessionData, per §4.M's table.
type sessionPhase int

const (
	phaseActive sessionPhase = iota
	phaseBackgrounded
)

// SessionListener is notified on every rotation with (oldID, newID, reason).
type SessionListener func(oldID, newID string, reason RotationReason)

const (
	kvKeyCurrentSession      = "current_session"
	kvKeyLastAppStart        = "last_app_start"
	kvKeyBackgroundTimestamp = "background_timestamp"
)

// SessionManager implements the session-rotation state machine in §4.M. A
// process normally has one instance, owned by the Client Facade; the
// "singleton with guarded initialize" requirement from §4.M lives one layer
// up in client.go, since it's really about the Facade's singleton, not
// this type needing its own.
type SessionManager struct {
	store  KVStore
	clock  Clock
	cfg    SessionConfig

	mu        sync.Mutex
	data      SessionData
	phase     sessionPhase
	bgAt      time.Time
	listeners []SessionListener
}

// NewSessionManager constructs a SessionManager and runs the "cold start"
// transition from §4.M's table immediately, restoring or rotating as the
// guard conditions dictate.
func NewSessionManager(store KVStore, clock Clock, cfg SessionConfig) *SessionManager {
	m := &SessionManager{store: store, clock: clock, cfg: cfg, phase: phaseActive}
	m.coldStart()
	return m
}

func (m *SessionManager) coldStart() {
	now := m.clock.Now()
	lastAppStart, haveLast := m.loadTime(kvKeyLastAppStart)

	_ = m.store.Set(kvKeyLastAppStart, formatTime(now))

	if haveLast && now.Sub(lastAppStart) > time.Duration(m.cfg.MinSessionDurationMs)*time.Millisecond && m.cfg.RotateOnAppRestart {
		m.rotateLocked(now, RotationAppStart)
		return
	}

	if stored, ok := m.loadSession(); ok && stored.valid(now, m.cfg) {
		stored.LastActiveAt = now
		m.data = stored
		m.persistLocked()
		return
	}

	m.rotateLocked(now, RotationAppStart)
}

func (m *SessionManager) loadSession() (SessionData, bool) {
	raw, ok := m.store.Get(kvKeyCurrentSession)
	if !ok {
		return SessionData{}, false
	}
	return decodeSessionData(raw)
}

func (m *SessionManager) loadTime(key string) (time.Time, bool) {
	raw, ok := m.store.Get(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CurrentSessionID returns the active session id without blocking.
func (m *SessionManager) CurrentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.SessionID
}

// Subscribe registers a SessionListener invoked on every rotation.
func (m *SessionManager) Subscribe(l SessionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// UpdateActivity implements the "active / updateActivity" row of §4.M's
// table: time-based rotation if the session has aged out, else a touch of
// last_active_at.
func (m *SessionManager) UpdateActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != phaseActive {
		return
	}
	now := m.clock.Now()
	if m.cfg.EnableTimeBasedRotation && m.data.age(now) >= time.Duration(m.cfg.MaxSessionDurationMs)*time.Millisecond {
		m.rotateLocked(now, RotationMaxDurationExceeded)
		return
	}
	m.data.LastActiveAt = now
	m.persistLocked()
}

// OnAppBackground implements "active / onAppBackground".
func (m *SessionManager) OnAppBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != phaseActive {
		return
	}
	m.bgAt = m.clock.Now()
	m.phase = phaseBackgrounded
	_ = m.store.Set(kvKeyBackgroundTimestamp, formatTime(m.bgAt))
}

// OnAppForeground implements "backgrounded / onAppForeground": rotates on
// BACKGROUND_TIMEOUT if the background duration exceeded the threshold,
// otherwise falls through to UpdateActivity's semantics.
func (m *SessionManager) OnAppForeground() {
	m.mu.Lock()
	if m.phase != phaseBackgrounded {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	bgDuration := now.Sub(m.bgAt)
	m.phase = phaseActive
	if bgDuration > time.Duration(m.cfg.BackgroundThresholdMs)*time.Millisecond {
		m.rotateLocked(now, RotationBackgroundTimeout)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.UpdateActivity()
}

// OnAuthenticationChange implements "active / onAuthenticationChange".
func (m *SessionManager) OnAuthenticationChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cfg.RotateOnAuthChange {
		return
	}
	m.rotateLocked(m.clock.Now(), RotationAuthChange)
}

// ForceRotation implements "active / forceRotation": always rotates with
// MANUAL_ROTATION, independent of any guard.
func (m *SessionManager) ForceRotation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateLocked(m.clock.Now(), RotationManual)
}

func (m *SessionManager) rotateLocked(now time.Time, reason RotationReason) {
	oldID := m.data.SessionID
	newID := newSessionID(m.cfg.SessionIDPrefix, now)
	m.data = SessionData{
		SessionID:      newID,
		CreatedAt:      now,
		LastActiveAt:   now,
		AppStartTime:   now,
		RotationReason: reason,
	}
	m.phase = phaseActive
	m.persistLocked()

	listeners := append([]SessionListener{}, m.listeners...)
	go func() {
		for _, l := range listeners {
			safeCall(func() { l(oldID, newID, reason) })
		}
	}()
}

func (m *SessionManager) persistLocked() {
	_ = m.store.Set(kvKeyCurrentSession, encodeSessionData(m.data))
}

// newSessionID builds a session id of the form {prefix}_{unix_ms}_{8-char
// base36 random}, per §3.
func newSessionID(prefix string, now time.Time) string {
	suffix := randomBase36(8)
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix)
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	// uuid.New() is already wired in as this module's entropy source
	// (event.go); reuse its random bytes here instead of adding a second
	// RNG dependency just for an 8-character suffix.
	id := uuid.New()
	r := rand.New(rand.NewSource(int64(id[0])<<56 | int64(id[1])<<48 | int64(id[2])<<40 | int64(id[3])<<32 | int64(id[4])<<24 | int64(id[5])<<16 | int64(id[6])<<8 | int64(id[7])))
	out := make([]byte, n)
	for i := range out {
		out[i] = base36Alphabet[r.Intn(len(base36Alphabet))]
	}
	return string(out)
}

func formatTime(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixMilli())
}

func parseTime(raw string) (time.Time, error) {
	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// wireSessionData is SessionData's JSON-serializable shape: time.Time
// doesn't round-trip cleanly through a KVStore's plain string blob without
// pinning a format, so persistence goes through Unix-millisecond ints.
type wireSessionData struct {
	SessionID      string `json:"session_id"`
	CreatedAtMs    int64  `json:"created_at_ms"`
	LastActiveMs   int64  `json:"last_active_ms"`
	AppStartMs     int64  `json:"app_start_ms"`
	RotationReason string `json:"rotation_reason,omitempty"`
}

func encodeSessionData(d SessionData) string {
	w := wireSessionData{
		SessionID:      d.SessionID,
		CreatedAtMs:    d.CreatedAt.UnixMilli(),
		LastActiveMs:   d.LastActiveAt.UnixMilli(),
		AppStartMs:     d.AppStartTime.UnixMilli(),
		RotationReason: string(d.RotationReason),
	}
	b, err := json.Marshal(w)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeSessionData(raw string) (SessionData, bool) {
	var w wireSessionData
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return SessionData{}, false
	}
	if w.SessionID == "" {
		return SessionData{}, false
	}
	return SessionData{
		SessionID:      w.SessionID,
		CreatedAt:      time.UnixMilli(w.CreatedAtMs),
		LastActiveAt:   time.UnixMilli(w.LastActiveMs),
		AppStartTime:   time.UnixMilli(w.AppStartMs),
		RotationReason: RotationReason(w.RotationReason),
	}, true
}
