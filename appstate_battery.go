package customfit

import "sync"

// AppState is the foreground/background lifecycle signal from §4.F, fed by
// platform glue (out of scope) into the Config Manager and Session
// Manager.
type AppState int

const (
	AppForeground AppState = iota
	AppBackground
)

func (s AppState) String() string {
	if s == AppBackground {
		return "background"
	}
	return "foreground"
}

// BatteryInfo is the battery-level signal from §4.F.
type BatteryInfo struct {
	Level      float64
	IsLow      bool
	IsCharging bool
}

type AppStateListener func(AppState)
type BatteryListener func(BatteryInfo)

// AppStateBatteryMonitor tracks lifecycle and battery signals and computes
// the effective polling cadence from them, per §4.F. Platform glue calls
// ReportAppState/ReportBattery as the OS notifies it; this type has no
// platform dependency of its own.
type AppStateBatteryMonitor struct {
	mu            sync.Mutex
	appState      AppState
	battery       BatteryInfo
	appListeners  []AppStateListener
	battListeners []BatteryListener
}

func NewAppStateBatteryMonitor() *AppStateBatteryMonitor {
	return &AppStateBatteryMonitor{appState: AppForeground}
}

func (m *AppStateBatteryMonitor) SubscribeAppState(fn AppStateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appListeners = append(m.appListeners, fn)
}

func (m *AppStateBatteryMonitor) SubscribeBattery(fn BatteryListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battListeners = append(m.battListeners, fn)
}

func (m *AppStateBatteryMonitor) CurrentAppState() AppState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appState
}

func (m *AppStateBatteryMonitor) CurrentBattery() BatteryInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.battery
}

// ReportAppState is called by platform glue on every lifecycle transition.
// No-op if the state hasn't actually changed.
func (m *AppStateBatteryMonitor) ReportAppState(state AppState) {
	m.mu.Lock()
	if m.appState == state {
		m.mu.Unlock()
		return
	}
	m.appState = state
	listeners := append([]AppStateListener{}, m.appListeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		safeCall(func() { fn(state) })
	}
}

func (m *AppStateBatteryMonitor) ReportBattery(info BatteryInfo) {
	m.mu.Lock()
	m.battery = info
	listeners := append([]BatteryListener{}, m.battListeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		safeCall(func() { fn(info) })
	}
}

// GetPollingInterval implements §4.F's get_polling_interval: reduced
// cadence applies only when the battery is low, not charging, and the
// caller opted in via useReducedWhenLow.
func (m *AppStateBatteryMonitor) GetPollingInterval(normalMs, reducedMs int, useReducedWhenLow bool) int {
	b := m.CurrentBattery()
	if b.IsLow && !b.IsCharging && useReducedWhenLow {
		return reducedMs
	}
	return normalMs
}
