package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func testGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	return testutil.ToFloat64(g)
}

func TestCollectorUpdatesGaugesFromCounters(t *testing.T) {
	var sessions, subs, channels, services int64
	sessions, subs, channels, services = 3, 7, 2, 1

	c := NewCollector(zerolog.Nop(), 10*time.Millisecond, Counters{
		SessionsActive:      &sessions,
		SubscriptionsActive: &subs,
		ChannelsAdvertised:  &channels,
		ServicesAdvertised:  &services,
	})

	c.collect(context.Background())

	if got := testGaugeValue(t, SessionsActive); got != 3 {
		t.Fatalf("SessionsActive = %v, want 3", got)
	}
	if got := testGaugeValue(t, SubscriptionsActive); got != 7 {
		t.Fatalf("SubscriptionsActive = %v, want 7", got)
	}
	if got := testGaugeValue(t, ChannelsAdvertised); got != 2 {
		t.Fatalf("ChannelsAdvertised = %v, want 2", got)
	}
	if got := testGaugeValue(t, ServicesAdvertised); got != 1 {
		t.Fatalf("ServicesAdvertised = %v, want 1", got)
	}
}

func TestCollectorStartStopDoesNotPanic(t *testing.T) {
	var sessions int64
	c := NewCollector(zerolog.Nop(), 5*time.Millisecond, Counters{SessionsActive: &sessions})
	c.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	c.Stop()
}
