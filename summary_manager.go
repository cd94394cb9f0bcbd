package customfit

import (
	"context"
	"sync"
	"time"
)

// SummaryManager is Component L: a dedup-keyed queue of SummaryRecords,
// flushed on size, timer, or on request from the Event Tracker (the
// ordering invariant in §4.K requires summaries to have been attempted
// before the corresponding events batch is sent).
type SummaryManager struct {
	fetcher     *ConfigFetcher
	logger      *leveledLogger
	queueSize   int
	flushEvery  time.Duration

	mu    sync.Mutex
	order []summaryDedupKey
	byKey map[summaryDedupKey]SummaryRecord

	flushSignal chan struct{}
	stop        chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

func NewSummaryManager(fetcher *ConfigFetcher, logger *leveledLogger, queueSize int, flushEvery time.Duration) *SummaryManager {
	m := &SummaryManager{
		fetcher:     fetcher,
		logger:      logger,
		queueSize:   queueSize,
		flushEvery:  flushEvery,
		byKey:       make(map[summaryDedupKey]SummaryRecord),
		flushSignal: make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	m.wg.Add(1)
	go m.loop()
	return m
}

// Track records an observation; a no-op if the dedup key already exists in
// the current (unflushed) queue, per §4.L.
func (m *SummaryManager) Track(rec SummaryRecord) {
	m.mu.Lock()
	key := rec.dedupKey()
	if _, exists := m.byKey[key]; exists {
		m.mu.Unlock()
		return
	}
	m.byKey[key] = rec
	m.order = append(m.order, key)
	full := len(m.order) >= m.queueSize
	m.mu.Unlock()

	if full {
		m.requestFlush()
	}
}

func (m *SummaryManager) requestFlush() {
	select {
	case m.flushSignal <- struct{}{}:
	default:
	}
}

func (m *SummaryManager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Flush(context.Background())
		case <-m.flushSignal:
			m.Flush(context.Background())
		case <-m.stop:
			return
		}
	}
}

// Flush POSTs every queued summary and clears the queue on success. On
// failure the queue is left intact so the next flush retries the same
// batch; SummaryManager has no persistent spill path (§4.L names only
// Event Tracker's queue as spilling to the KV store).
func (m *SummaryManager) Flush(ctx context.Context) error {
	m.mu.Lock()
	if len(m.order) == 0 {
		m.mu.Unlock()
		return nil
	}
	batch := make([]SummaryRecord, 0, len(m.order))
	for _, k := range m.order {
		batch = append(batch, m.byKey[k])
	}
	m.mu.Unlock()

	err := m.fetcher.PostSummaries(ctx, batch)
	if err != nil {
		if m.logger != nil {
			m.logger.Errorf("summary flush failed: %v", err)
		}
		return err
	}

	m.mu.Lock()
	for _, k := range m.order[:len(batch)] {
		delete(m.byKey, k)
	}
	m.order = m.order[len(batch):]
	m.mu.Unlock()
	return nil
}

func (m *SummaryManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}
