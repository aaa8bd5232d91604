package limits

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Config is the subset of server configuration ResourceGuard needs to
// make admission decisions.
type Config struct {
	MaxSessions        int
	MaxGoroutines      int
	CPURejectThreshold float64 // percent; reject new sessions above this
	MemoryLimitBytes   int64
}

// GoroutineLimiter caps concurrent goroutines with a semaphore.
type GoroutineLimiter struct {
	sem chan struct{}
	max int
}

func NewGoroutineLimiter(max int) *GoroutineLimiter {
	return &GoroutineLimiter{sem: make(chan struct{}, max), max: max}
}

func (g *GoroutineLimiter) Acquire() bool {
	select {
	case g.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (g *GoroutineLimiter) Release() { <-g.sem }
func (g *GoroutineLimiter) Current() int { return len(g.sem) }
func (g *GoroutineLimiter) Max() int      { return g.max }

// ResourceGuard decides whether a new session should be admitted, based
// on periodic CPU/memory/goroutine sampling, and hands out per-session
// goroutine slots. It has no ingest backpressure check. It carries no history and makes no
// predictions: every decision is a threshold check against the most
// recent sample.
type ResourceGuard struct {
	cfg    Config
	logger zerolog.Logger

	goroutines *GoroutineLimiter

	currentCPU    atomic.Value // float64
	currentMemory atomic.Value // int64

	currentSessions *int64
}

func NewResourceGuard(cfg Config, logger zerolog.Logger, currentSessions *int64) *ResourceGuard {
	rg := &ResourceGuard{
		cfg:             cfg,
		logger:          logger,
		goroutines:      NewGoroutineLimiter(cfg.MaxGoroutines),
		currentSessions: currentSessions,
	}
	rg.currentCPU.Store(0.0)
	rg.currentMemory.Store(int64(0))

	logger.Info().
		Int("max_sessions", cfg.MaxSessions).
		Int("max_goroutines", cfg.MaxGoroutines).
		Float64("cpu_reject_threshold", cfg.CPURejectThreshold).
		Msg("resource guard initialized")

	return rg
}

// ShouldAcceptSession reports whether a new session may be admitted.
func (rg *ResourceGuard) ShouldAcceptSession() (accept bool, reason string) {
	current := atomic.LoadInt64(rg.currentSessions)
	if current >= int64(rg.cfg.MaxSessions) {
		return false, fmt.Sprintf("at max sessions (%d)", rg.cfg.MaxSessions)
	}
	if cpuPct := rg.currentCPU.Load().(float64); cpuPct > rg.cfg.CPURejectThreshold {
		return false, fmt.Sprintf("cpu %.1f%% > %.1f%%", cpuPct, rg.cfg.CPURejectThreshold)
	}
	if rg.cfg.MemoryLimitBytes > 0 {
		if memBytes := rg.currentMemory.Load().(int64); memBytes > rg.cfg.MemoryLimitBytes {
			return false, "memory limit exceeded"
		}
	}
	if runtime.NumGoroutine() > rg.cfg.MaxGoroutines {
		return false, fmt.Sprintf("goroutine limit exceeded (%d)", rg.cfg.MaxGoroutines)
	}
	return true, "ok"
}

// AcquireGoroutine/ReleaseGoroutine gate background goroutines spawned
// per-session (e.g. a session's write pump) against the configured cap.
func (rg *ResourceGuard) AcquireGoroutine() bool { return rg.goroutines.Acquire() }
func (rg *ResourceGuard) ReleaseGoroutine()       { rg.goroutines.Release() }

// Sample refreshes the guard's view of current CPU and memory usage.
func (rg *ResourceGuard) Sample(ctx context.Context) {
	if pct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(pct) > 0 {
		rg.currentCPU.Store(pct[0])
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		rg.currentMemory.Store(int64(vm.Used))
	}
}

// StartSampling runs Sample on a ticker until ctx is cancelled.
func (rg *ResourceGuard) StartSampling(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rg.Sample(ctx)
				rg.logger.Debug().
					Float64("cpu_percent", rg.currentCPU.Load().(float64)).
					Int64("memory_bytes", rg.currentMemory.Load().(int64)).
					Int64("sessions", atomic.LoadInt64(rg.currentSessions)).
					Int("goroutines", runtime.NumGoroutine()).
					Msg("resource sample")
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stats returns a debug-friendly snapshot of current admission state.
func (rg *ResourceGuard) Stats() map[string]any {
	return map[string]any{
		"max_sessions":     rg.cfg.MaxSessions,
		"current_sessions": atomic.LoadInt64(rg.currentSessions),
		"cpu_percent":      rg.currentCPU.Load().(float64),
		"memory_bytes":     rg.currentMemory.Load().(int64),
		"goroutines":       runtime.NumGoroutine(),
	}
}
