package prefsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RemoteStore is the remote document capability the sync manager drives.
// Write is a merge-write of the full record (idempotent on replay), Read
// returns nil for a missing document, and implementations classify their
// failures via RemoteError so the retry loop can tell transient from
// permanent.
type RemoteStore interface {
	Write(ctx context.Context, userID string, rec PreferenceRecord) error
	Read(ctx context.Context, userID string) (*PreferenceRecord, error)
	Delete(ctx context.Context, userID string) error
}

// Options tunes debounce and retry behavior. Zero values take the
// defaults below.
type Options struct {
	DebounceInterval time.Duration
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

const (
	defaultDebounceInterval = 500 * time.Millisecond
	defaultMaxRetries       = 3
	defaultInitialBackoff   = time.Second
	defaultMaxBackoff       = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.DebounceInterval <= 0 {
		o.DebounceInterval = defaultDebounceInterval
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	return o
}

// pendingSync is one user's most recent unflushed record. err is set
// before done is closed, never after.
type pendingSync struct {
	record PreferenceRecord
	done   chan struct{}
	err    error
}

// RemoteSyncManager owns debounced batching, retry with backoff, the
// offline write queue, and sync metrics. One instance is shared by all
// callers; the pending map and offline queue are owned exclusively by it.
type RemoteSyncManager struct {
	store   RemoteStore
	monitor *ConnectivityMonitor
	logger  *slog.Logger
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	pending map[string]*pendingSync
	offline map[string]PreferenceRecord
	timer   *time.Timer
	metrics metricsWindow
}

// NewRemoteSyncManager wires the manager to the remote store and the
// connectivity monitor. Reconnects flush the offline queue.
func NewRemoteSyncManager(store RemoteStore, monitor *ConnectivityMonitor, logger *slog.Logger, opts Options) *RemoteSyncManager {
	m := &RemoteSyncManager{
		store:   store,
		monitor: monitor,
		logger:  logger,
		opts:    opts.withDefaults(),
		sleep:   sleepUntil,
		pending: make(map[string]*pendingSync),
		offline: make(map[string]PreferenceRecord),
	}
	monitor.OnReconnect(func() { go m.flushOfflineQueue() })
	return m
}

// PushPreferences schedules rec for remote delivery. Offline, the record
// lands in the offline queue (overwriting any queued record for the same
// user) and the call returns immediately. Online, the record joins the
// pending map, the shared quiet-period timer restarts, and the call blocks
// until this user's flush attempt settles: nil on success, a *SyncError
// after exhausted retries, ErrSyncCanceled if the pending entry was
// dropped, or ctx.Err if the caller gave up waiting.
func (m *RemoteSyncManager) PushPreferences(ctx context.Context, userID string, rec PreferenceRecord) error {
	if !m.monitor.IsOnline() {
		m.mu.Lock()
		m.offline[userID] = rec
		m.mu.Unlock()
		m.logger.Debug("queued preference write while offline", "userId", userID)
		return nil
	}

	m.mu.Lock()
	entry, ok := m.pending[userID]
	if ok {
		// Coalesce: the last write before the flush wins.
		entry.record = rec
	} else {
		entry = &pendingSync{record: rec, done: make(chan struct{})}
		m.pending[userID] = entry
	}
	// One shared timer; any call within the quiet period restarts it.
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.opts.DebounceInterval, m.flushPending)
	m.mu.Unlock()

	select {
	case <-entry.done:
		return entry.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PullPreferences performs a single remote read. It returns nil on a
// missing record, a malformed record, or a read failure, so callers can
// always fall back to the local store.
func (m *RemoteSyncManager) PullPreferences(ctx context.Context, userID string) *PreferenceRecord {
	rec, err := m.store.Read(ctx, userID)
	if err != nil {
		m.logger.Warn("remote preference read failed", "userId", userID, "error", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	if err := rec.Validate(); err != nil {
		m.logger.Warn("ignoring malformed remote preference record", "userId", userID, "error", err)
		return nil
	}
	return rec
}

// DeletePreferences performs a single remote delete. Deletion is a
// deliberate, user-visible action, so failures propagate.
func (m *RemoteSyncManager) DeletePreferences(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("deleting preferences for user %s: %w", userID, err)
	}
	return nil
}

// CancelPendingSyncs stops the debounce timer and drops unflushed pending
// entries without flushing; their waiters settle with ErrSyncCanceled.
// In-flight retries are not interrupted.
func (m *RemoteSyncManager) CancelPendingSyncs() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	dropped := m.pending
	m.pending = make(map[string]*pendingSync)
	m.mu.Unlock()

	for _, entry := range dropped {
		entry.err = ErrSyncCanceled
		close(entry.done)
	}
	if len(dropped) > 0 {
		m.logger.Debug("dropped pending syncs", "count", len(dropped))
	}
}

// flushPending runs when the quiet-period timer fires. It takes ownership
// of the whole pending map before touching the network, so new pushes
// arriving mid-flush start a fresh batch.
func (m *RemoteSyncManager) flushPending() {
	m.mu.Lock()
	batch := m.pending
	m.pending = make(map[string]*pendingSync)
	m.timer = nil
	m.mu.Unlock()

	for userID, entry := range batch {
		if err := m.writeWithRetry(context.Background(), userID, entry.record); err != nil {
			m.logger.Warn("preference sync failed", "userId", userID, "error", err)
			entry.err = &SyncError{UserID: userID, Err: err}
		}
		close(entry.done)
	}
}

// flushOfflineQueue replays queued writes after a reconnect. It works on a
// snapshot and clears the live queue first; entries that still fail after
// retries are re-inserted unless a newer write for the same user arrived
// in the meantime. Duplicate delivery is acceptable because writes are
// full-record overwrites.
func (m *RemoteSyncManager) flushOfflineQueue() {
	m.mu.Lock()
	if len(m.offline) == 0 {
		m.mu.Unlock()
		return
	}
	batch := m.offline
	m.offline = make(map[string]PreferenceRecord)
	m.mu.Unlock()

	m.logger.Info("flushing offline queue", "entries", len(batch))
	for userID, rec := range batch {
		if err := m.writeWithRetry(context.Background(), userID, rec); err != nil {
			m.mu.Lock()
			if _, exists := m.offline[userID]; !exists {
				m.offline[userID] = rec
			}
			m.mu.Unlock()
			m.logger.Warn("offline write failed, requeued", "userId", userID, "error", err)
		}
	}
}

// writeWithRetry attempts the remote write with exponential backoff:
// delay = min(initial << attempt, max). Permanent errors short-circuit.
// Each completed flush (success or final failure) counts once in metrics.
func (m *RemoteSyncManager) writeWithRetry(ctx context.Context, userID string, rec PreferenceRecord) error {
	start := time.Now()

	var err error
	for attempt := 0; ; attempt++ {
		err = m.store.Write(ctx, userID, rec)
		if err == nil {
			m.mu.Lock()
			m.metrics.recordSuccess(time.Since(start))
			m.mu.Unlock()
			return nil
		}
		if !IsTransient(err) || attempt >= m.opts.MaxRetries {
			break
		}

		delay := m.opts.InitialBackoff << attempt
		if delay > m.opts.MaxBackoff {
			delay = m.opts.MaxBackoff
		}
		m.logger.Debug("retrying remote preference write",
			"userId", userID, "attempt", attempt+1, "delay", delay)

		if err := m.sleep(ctx, delay); err != nil {
			m.mu.Lock()
			m.metrics.recordFailure()
			m.mu.Unlock()
			return err
		}
	}

	m.mu.Lock()
	m.metrics.recordFailure()
	m.mu.Unlock()
	return err
}

// sleepUntil waits out the backoff delay unless the context ends first.
func sleepUntil(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetPendingSyncs returns a snapshot of records awaiting the debounce
// flush.
func (m *RemoteSyncManager) GetPendingSyncs() map[string]PreferenceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]PreferenceRecord, len(m.pending))
	for userID, entry := range m.pending {
		out[userID] = entry.record
	}
	return out
}

// GetOfflineQueue returns a snapshot of writes held for reconnection.
func (m *RemoteSyncManager) GetOfflineQueue() map[string]PreferenceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]PreferenceRecord, len(m.offline))
	for userID, rec := range m.offline {
		out[userID] = rec
	}
	return out
}

// GetSyncMetrics returns a snapshot of the running counters.
func (m *RemoteSyncManager) GetSyncMetrics() SyncMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics.snapshot()
}

// ResetMetrics zeroes the counters and the duration window.
func (m *RemoteSyncManager) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.reset()
}
