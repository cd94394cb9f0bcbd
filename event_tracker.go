package customfit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const eventSpillKeyPrefix = "event_spill_"

// EventTracker is Component K: a bounded event queue with size/time flush
// triggers, a summary-before-events ordering guarantee, and persistent
// overflow when the server stays unreachable.
type EventTracker struct {
	fetcher    *ConfigFetcher
	summaries  *SummaryManager
	store      KVStore
	clock      Clock
	logger     *leveledLogger
	capacity   int
	maxStored  int
	flushEvery time.Duration
	sessionID  func() string

	mu            sync.Mutex
	queue         []EventRecord
	lastTimestamp int64

	flushSignal chan struct{}
	stop        chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once
	spillSeq    int
}

func NewEventTracker(fetcher *ConfigFetcher, summaries *SummaryManager, store KVStore, clock Clock, logger *leveledLogger, capacity, maxStored int, flushEvery time.Duration, sessionID func() string) *EventTracker {
	t := &EventTracker{
		fetcher:     fetcher,
		summaries:   summaries,
		store:       store,
		clock:       clock,
		logger:      logger,
		capacity:    capacity,
		maxStored:   maxStored,
		flushEvery:  flushEvery,
		sessionID:   sessionID,
		flushSignal: make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	t.drainSpillover()
	t.wg.Add(1)
	go t.loop()
	return t
}

// Track enqueues an event, assigning event_id/insert_id/timestamp/session
// id per §4.K, and requests an immediate flush once the queue reaches
// capacity.
func (t *EventTracker) Track(eventType EventType, customerID string, props map[string]Value) {
	rec := EventRecord{
		EventID:         newEventID(),
		EventCustomerID: customerID,
		EventType:       eventType,
		Properties:      props,
		EventTimestamp:  NowMs(t.clock),
		SessionID:       t.sessionID(),
		InsertID:        newInsertID(),
	}
	t.mu.Lock()
	if rec.EventTimestamp < t.lastTimestamp {
		rec.EventTimestamp = t.lastTimestamp
	}
	t.lastTimestamp = rec.EventTimestamp
	t.queue = append(t.queue, rec)
	full := len(t.queue) >= t.capacity
	t.mu.Unlock()

	if full {
		t.requestFlush()
	}
}

func (t *EventTracker) requestFlush() {
	select {
	case t.flushSignal <- struct{}{}:
	default:
	}
}

func (t *EventTracker) loop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Flush(context.Background())
		case <-t.flushSignal:
			t.Flush(context.Background())
		case <-t.stop:
			t.Flush(context.Background())
			return
		}
	}
}

// Flush implements the ordering invariant: a summaries flush is requested
// and awaited before the events batch is POSTed, so no event is ever sent
// whose summary hasn't at least been attempted.
func (t *EventTracker) Flush(ctx context.Context) error {
	if t.summaries != nil {
		_ = t.summaries.Flush(ctx)
	}

	t.mu.Lock()
	if len(t.queue) == 0 {
		t.mu.Unlock()
		return nil
	}
	batch := t.queue
	t.queue = nil
	t.mu.Unlock()

	err := t.fetcher.PostEvents(ctx, batch)
	if err == nil {
		return nil
	}

	if t.logger != nil {
		t.logger.Errorf("event flush failed: %v", err)
	}

	t.mu.Lock()
	t.queue = append(batch, t.queue...)
	overflow := len(t.queue) >= t.maxStored
	var toSpill []EventRecord
	if overflow {
		toSpill = t.queue
		t.queue = nil
	}
	t.mu.Unlock()

	if overflow {
		t.spill(toSpill)
	}
	return err
}

// spill persists events under a rolling key set when the queue has grown
// past maxStored while the server stays unreachable, per §4.K.
func (t *EventTracker) spill(events []EventRecord) {
	if t.store == nil {
		return
	}
	blob, err := marshalEvents(events)
	if err != nil {
		if t.logger != nil {
			t.logger.Errorf("encoding event spillover: %v", err)
		}
		return
	}
	t.spillSeq++
	key := fmt.Sprintf("%s%d", eventSpillKeyPrefix, t.spillSeq)
	if err := t.store.Set(key, blob); err != nil && t.logger != nil {
		t.logger.Errorf("persisting event spillover: %v", err)
	}
}

// drainSpillover reloads any rolling spill keys left from a previous
// process and re-queues them ahead of new events, so the next successful
// flush drains them first.
func (t *EventTracker) drainSpillover() {
	if t.store == nil {
		return
	}
	var recovered []EventRecord
	for _, key := range t.store.Keys() {
		if len(key) <= len(eventSpillKeyPrefix) || key[:len(eventSpillKeyPrefix)] != eventSpillKeyPrefix {
			continue
		}
		raw, ok := t.store.Get(key)
		if !ok {
			continue
		}
		events, err := unmarshalEvents(raw)
		if err == nil {
			recovered = append(recovered, events...)
		}
		_ = t.store.Remove(key)
	}
	if len(recovered) > 0 {
		t.mu.Lock()
		t.queue = append(recovered, t.queue...)
		t.mu.Unlock()
	}
}

func (t *EventTracker) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.wg.Wait()
}
