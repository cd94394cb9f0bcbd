package customfit

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventRecord is a single analytics event, per §3. event_timestamp is
// monotonic non-decreasing within a process (§9 Open Questions leaves
// cross-restart monotonicity unspecified; this SDK only guarantees it
// within a process: EventTracker.Track never stamps an event earlier than
// the one it stamped before, even if the wall clock steps back).
type EventRecord struct {
	EventID         string            `json:"event_id"`
	EventCustomerID string            `json:"event_customer_id"`
	EventType       EventType         `json:"event_type"`
	Properties      map[string]Value  `json:"properties,omitempty"`
	EventTimestamp  int64             `json:"event_timestamp"`
	SessionID       string            `json:"session_id"`
	InsertID        string            `json:"insert_id"`
}

// newEventID and newInsertID are both v4 UUIDs from google/uuid, per
// SPEC_FULL.md's domain-stack wiring — the pack's only real UUID generator
// (harness-ff-proxy's go.mod, the prometheus-engine vendor tree), used in
// place of a hand-rolled random-string generator.
func newEventID() string  { return uuid.NewString() }
func newInsertID() string { return uuid.NewString() }

// marshalEvents/unmarshalEvents encode a batch for event_tracker.go's
// KV-store spillover path, reusing EventRecord's own JSON tags.
func marshalEvents(events []EventRecord) (string, error) {
	b, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalEvents(raw string) ([]EventRecord, error) {
	var events []EventRecord
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, err
	}
	return events, nil
}
