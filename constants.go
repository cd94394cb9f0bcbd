package customfit

import "time"

// Default base URLs, per §6 External Interfaces.
const (
	DefaultAPIBase      = "https://api.customfit.ai"
	DefaultSettingsBase = "https://api.customfit.ai/settings"
)

// Wire paths, relative to their respective base URL.
const (
	pathUserConfigs = "/v1/users/configs"
	pathEvents      = "/v1/cfe"
	pathSummaries   = "/v1/summaries"
	sdkSettingsFile = "cf-sdk-settings.json"
)

// authQueryParam is the name of the query parameter carrying the client
// key on every request; §4.D forbids a Bearer-token scheme.
const authQueryParam = "cfenc"

// Documented defaults for ClientConfig, per §6.
const (
	DefaultEventsFlushIntervalMs    = 30_000
	DefaultSummariesFlushIntervalMs = 30_000
	DefaultSettingsCheckIntervalMs  = 60_000
	DefaultBackgroundPollIntervalMs = 15 * 60_000
	DefaultReducedPollIntervalMs    = 30 * 60_000
	DefaultConnectTimeoutMs         = 10_000
	DefaultReadTimeoutMs            = 10_000

	DefaultEventsQueueSize    = 100
	DefaultSummariesQueueSize = 100
	DefaultMaxStoredEvents    = 1000

	DefaultRetryMaxAttempts       = 3
	DefaultRetryInitialDelayMs    = 500
	DefaultRetryMaxDelayMs        = 20_000
	DefaultRetryBackoffMultiplier = 2.0

	DefaultCircuitBreakerFailureThreshold = 5
	DefaultCircuitBreakerResetTimeoutMs   = 30_000
)

// Session defaults, per §6.
const (
	DefaultMaxSessionDurationMs  = 3_600_000
	DefaultMinSessionDurationMs  = 300_000
	DefaultBackgroundThresholdMs = 900_000
	DefaultSessionIDPrefix       = "cf_session"
)

// InitialSettingsCheckTimeout bounds the very first settings check so that
// facade initialization never blocks on the network, per §5 Cancellation &
// Timeouts.
const InitialSettingsCheckTimeout = 10 * time.Second

// ShutdownGracePeriod bounds the context of the final summaries and events
// flushes in Client.Close. Close does not spill the remaining queue itself:
// unsent events reach the persistent store only when a failed events flush
// leaves the queue at or above MaxStoredEvents.
const ShutdownGracePeriod = 5 * time.Second

// EventType enumerates the event_type values in EventRecord, per §3.
type EventType string

const (
	EventTypeTrack        EventType = "track"
	EventTypeScreenView   EventType = "screen_view"
	EventTypeFeatureUsage EventType = "feature_usage"
)

// ContextType enumerates EvaluationContext.type, per §3.
type ContextType string

const (
	ContextLocation ContextType = "LOCATION"
	ContextDevice   ContextType = "DEVICE"
	ContextSession  ContextType = "SESSION"
	ContextCustom   ContextType = "CUSTOM"
)

// RotationReason names why a session was rotated, per §3/§4.M.
type RotationReason string

const (
	RotationAppStart            RotationReason = "APP_START"
	RotationMaxDurationExceeded RotationReason = "MAX_DURATION_EXCEEDED"
	RotationBackgroundTimeout   RotationReason = "BACKGROUND_TIMEOUT"
	RotationAuthChange          RotationReason = "AUTH_CHANGE"
	RotationManual              RotationReason = "MANUAL_ROTATION"
)

// sessionRotatedEventName names the synthetic session-rotation event from
// SPEC_FULL.md's "supplemented features" section. Client.onSessionRotated
// records that event as a track event carrying previous_session_id,
// new_session_id and reason; the recorded event does not include this name.
const sessionRotatedEventName = "cf_session_rotated"
