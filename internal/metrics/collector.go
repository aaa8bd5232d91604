package metrics

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Collector periodically samples system-wide CPU and memory, the
// process's goroutine count, and session/channel/subscription counts
// into the Prometheus gauges declared in metrics.go. It owns no admission logic — that's
// internal/limits.ResourceGuard — it only reports what that guard
// also samples, so /metrics reflects the same numbers driving
// admission decisions.
type Collector struct {
	logger zerolog.Logger

	sessionsActive      *int64
	subscriptionsActive *int64
	channelsAdvertised  *int64
	servicesAdvertised  *int64

	interval time.Duration
	cancel   context.CancelFunc

	lastCPUPercent atomic.Value // float64
}

// Counters bundles the live counters the collector reads each tick.
// Callers own the backing int64s and update them with atomic ops as
// sessions/subscriptions/channels/services come and go; the collector
// only reads.
type Counters struct {
	SessionsActive      *int64
	SubscriptionsActive *int64
	ChannelsAdvertised  *int64
	ServicesAdvertised  *int64
}

func NewCollector(logger zerolog.Logger, interval time.Duration, counters Counters) *Collector {
	return &Collector{
		logger:              logger.With().Str("component", "metrics_collector").Logger(),
		sessionsActive:      counters.SessionsActive,
		subscriptionsActive: counters.SubscriptionsActive,
		channelsAdvertised:  counters.ChannelsAdvertised,
		servicesAdvertised:  counters.ServicesAdvertised,
		interval:            interval,
	}
}

// Start runs the sampling loop in a new goroutine until Stop is called
// or ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ticker := time.NewTicker(c.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the sampling loop.
func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Collector) collect(ctx context.Context) {
	if c.sessionsActive != nil {
		SessionsActive.Set(float64(atomic.LoadInt64(c.sessionsActive)))
	}
	if c.subscriptionsActive != nil {
		SubscriptionsActive.Set(float64(atomic.LoadInt64(c.subscriptionsActive)))
	}
	if c.channelsAdvertised != nil {
		ChannelsAdvertised.Set(float64(atomic.LoadInt64(c.channelsAdvertised)))
	}
	if c.servicesAdvertised != nil {
		ServicesAdvertised.Set(float64(atomic.LoadInt64(c.servicesAdvertised)))
	}

	GoroutinesActive.Set(float64(runtime.NumGoroutine()))

	sampleCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	var cpuPercent float64
	if pct, err := cpu.PercentWithContext(sampleCtx, 200*time.Millisecond, false); err == nil && len(pct) > 0 {
		cpuPercent = pct[0]
		CPUUsagePercent.Set(cpuPercent)
		c.lastCPUPercent.Store(cpuPercent)
	}
	if vm, err := mem.VirtualMemoryWithContext(sampleCtx); err == nil {
		MemoryUsageBytes.Set(float64(vm.Used))
	}

	c.logger.Debug().
		Float64("cpu_percent", cpuPercent).
		Msg("metrics sampled")
}
