package prefsync

import "time"

// SyncMetrics is a point-in-time snapshot of sync activity. AverageDuration
// is computed over a rolling window of the most recent successful flushes.
type SyncMetrics struct {
	TotalSyncs      int64         `json:"totalSyncs"`
	SuccessfulSyncs int64         `json:"successfulSyncs"`
	FailedSyncs     int64         `json:"failedSyncs"`
	AverageDuration time.Duration `json:"averageDuration"`
	Samples         int           `json:"samples"`
}

// durationWindowSize bounds the rolling window of per-sync durations.
const durationWindowSize = 100

// metricsWindow holds the live counters. Not goroutine-safe on its own; the
// owning RemoteSyncManager serializes access under its mutex.
type metricsWindow struct {
	total     int64
	success   int64
	failed    int64
	durations []time.Duration
}

func (m *metricsWindow) recordSuccess(d time.Duration) {
	m.total++
	m.success++
	m.durations = append(m.durations, d)
	if len(m.durations) > durationWindowSize {
		m.durations = m.durations[len(m.durations)-durationWindowSize:]
	}
}

func (m *metricsWindow) recordFailure() {
	m.total++
	m.failed++
}

// snapshot computes the average on demand rather than maintaining it
// incrementally.
func (m *metricsWindow) snapshot() SyncMetrics {
	s := SyncMetrics{
		TotalSyncs:      m.total,
		SuccessfulSyncs: m.success,
		FailedSyncs:     m.failed,
		Samples:         len(m.durations),
	}
	if len(m.durations) > 0 {
		var sum time.Duration
		for _, d := range m.durations {
			sum += d
		}
		s.AverageDuration = sum / time.Duration(len(m.durations))
	}
	return s
}

func (m *metricsWindow) reset() {
	*m = metricsWindow{}
}
