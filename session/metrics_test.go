package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_AlertCallbackMayRecord(t *testing.T) {
	c := newMetricsCollector()
	c.authThreshold = 1

	var events []AlertEvent
	c.alertFn = func(e AlertEvent) {
		events = append(events, e)
		// A reaction that feeds back into the collector must not
		// deadlock against it.
		c.recordRefreshFailure()
	}

	done := make(chan struct{})
	go func() {
		c.recordAuthFailure()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("alert callback deadlocked the collector")
	}

	require.Len(t, events, 1)
	assert.Equal(t, AlertAuthFailureSpike, events[0].Type)
}

func TestMetrics_StaleFailuresFallOutOfWindow(t *testing.T) {
	c := newMetricsCollector()
	c.authThreshold = 3

	var fired bool
	c.alertFn = func(AlertEvent) { fired = true }

	stale := time.Now().Add(-2 * c.authWindow)
	c.authFailures = []time.Time{stale, stale}

	c.recordAuthFailure()
	assert.False(t, fired, "failures outside the window must not count toward a spike")
}
