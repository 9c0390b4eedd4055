package session

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertAuthFailureSpike    AlertType = "auth_failure_spike"
	AlertRefreshFailureSpike AlertType = "refresh_failure_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// metricsCollector tracks sliding window counters for anomaly detection.
// With no AlertFunc installed it is a no-op.
type metricsCollector struct {
	mu sync.Mutex

	// Sliding window for login/register failures.
	authFailures  []time.Time
	authWindow    time.Duration
	authThreshold int

	// Sliding window for background refresh failures.
	refreshFailures  []time.Time
	refreshWindow    time.Duration
	refreshThreshold int

	alertFn AlertFunc
}

const (
	defaultAuthFailureWindow       = 1 * time.Minute
	defaultAuthFailureThreshold    = 5
	defaultRefreshFailureWindow    = 10 * time.Minute
	defaultRefreshFailureThreshold = 3
)

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{
		authWindow:       defaultAuthFailureWindow,
		authThreshold:    defaultAuthFailureThreshold,
		refreshWindow:    defaultRefreshFailureWindow,
		refreshThreshold: defaultRefreshFailureThreshold,
	}
}

func (m *metricsCollector) recordAuthFailure() {
	if m == nil || m.alertFn == nil {
		return
	}
	m.mu.Lock()
	now := time.Now()
	m.authFailures = append(m.authFailures, now)
	m.authFailures = trimWindow(m.authFailures, now, m.authWindow)

	var event *AlertEvent
	if len(m.authFailures) >= m.authThreshold {
		event = &AlertEvent{
			Type:      AlertAuthFailureSpike,
			Message:   "authentication failure rate exceeds threshold",
			Count:     len(m.authFailures),
			Threshold: m.authThreshold,
			Timestamp: now,
		}
		// Reset to avoid repeated alerts within the same spike.
		m.authFailures = m.authFailures[:0]
	}
	m.mu.Unlock()

	// Invoked outside the collector lock so the callback may record
	// further events.
	if event != nil {
		m.alertFn(*event)
	}
}

func (m *metricsCollector) recordRefreshFailure() {
	if m == nil || m.alertFn == nil {
		return
	}
	m.mu.Lock()
	now := time.Now()
	m.refreshFailures = append(m.refreshFailures, now)
	m.refreshFailures = trimWindow(m.refreshFailures, now, m.refreshWindow)

	var event *AlertEvent
	if len(m.refreshFailures) >= m.refreshThreshold {
		event = &AlertEvent{
			Type:      AlertRefreshFailureSpike,
			Message:   "refresh failure rate exceeds threshold",
			Count:     len(m.refreshFailures),
			Threshold: m.refreshThreshold,
			Timestamp: now,
		}
		m.refreshFailures = m.refreshFailures[:0]
	}
	m.mu.Unlock()

	if event != nil {
		m.alertFn(*event)
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	if start == 0 {
		return times
	}
	return append(times[:0], times[start:]...)
}
