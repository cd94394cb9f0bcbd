package customfit

import "sync"

// ConnectionState enumerates the Connection Monitor's states, per §4.E.
type ConnectionState int

const (
	ConnectionConnecting ConnectionState = iota
	ConnectionConnected
	ConnectionDisconnected
	ConnectionError
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnected:
		return "CONNECTED"
	case ConnectionDisconnected:
		return "DISCONNECTED"
	case ConnectionError:
		return "ERROR"
	default:
		return "CONNECTING"
	}
}

// ConnectionInfo is the informational payload accompanying every state
// change, per §4.E.
type ConnectionInfo struct {
	State          ConnectionState
	NetworkType    string
	IsOfflineMode  bool
	LastError      error
	LastSuccessMs  int64
	FailureCount   int
	NextReconnectMs int64
}

type ConnectionListener func(ConnectionInfo)

// ConnectionMonitor tracks reachability and offline-mode state and fans
// out changes to subscribers, per §4.E. Offline mode is authoritative: once
// set, Fetcher and HTTP Client callers consult IsOfflineMode() and
// short-circuit with an immediate NETWORK error rather than attempting a
// request.
type ConnectionMonitor struct {
	clock Clock

	mu        sync.Mutex
	info      ConnectionInfo
	listeners map[int]ConnectionListener
	nextHandle int
}

func NewConnectionMonitor(clock Clock) *ConnectionMonitor {
	return &ConnectionMonitor{
		clock:     clock,
		info:      ConnectionInfo{State: ConnectionConnecting, NetworkType: "unknown"},
		listeners: make(map[int]ConnectionListener),
	}
}

// Subscribe registers fn for every future state change and returns a handle
// usable with Unsubscribe.
func (m *ConnectionMonitor) Subscribe(fn ConnectionListener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.nextHandle
	m.nextHandle++
	m.listeners[h] = fn
	return h
}

func (m *ConnectionMonitor) Unsubscribe(handle int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, handle)
}

func (m *ConnectionMonitor) Snapshot() ConnectionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

func (m *ConnectionMonitor) IsOfflineMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info.IsOfflineMode
}

// SetOfflineMode toggles offline mode and notifies listeners, per §4.E.
func (m *ConnectionMonitor) SetOfflineMode(offline bool) {
	m.mu.Lock()
	m.info.IsOfflineMode = offline
	if offline {
		m.info.State = ConnectionDisconnected
	}
	snapshot := m.info
	m.mu.Unlock()
	m.notify(snapshot)
}

// RecordSuccess transitions to CONNECTED and resets the failure count,
// called by the Fetcher/HTTP client on every successful request.
func (m *ConnectionMonitor) RecordSuccess() {
	m.mu.Lock()
	m.info.State = ConnectionConnected
	m.info.LastError = nil
	m.info.FailureCount = 0
	m.info.LastSuccessMs = NowMs(m.clock)
	snapshot := m.info
	m.mu.Unlock()
	m.notify(snapshot)
}

// RecordFailure transitions to ERROR, bumps the failure count, and records
// nextReconnectMs so subscribers (e.g. diagnostics UI) can show backoff
// progress; the actual retry scheduling lives in retry.go.
func (m *ConnectionMonitor) RecordFailure(err error, nextReconnectMs int64) {
	m.mu.Lock()
	m.info.State = ConnectionError
	m.info.LastError = err
	m.info.FailureCount++
	m.info.NextReconnectMs = nextReconnectMs
	snapshot := m.info
	m.mu.Unlock()
	m.notify(snapshot)
}

func (m *ConnectionMonitor) notify(info ConnectionInfo) {
	m.mu.Lock()
	listeners := make([]ConnectionListener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()
	for _, fn := range listeners {
		safeCall(func() { fn(info) })
	}
}
