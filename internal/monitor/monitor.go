// Package monitor tracks process memory and triggers advisory
// compaction when usage crosses a threshold. Compaction drops caches
// and forces a collection pass; it is purely advisory and never
// required for correctness.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultMemoryThreshold is the heap size that triggers advisory
	// compaction.
	DefaultMemoryThreshold = 300 << 20 // 300MB

	// defaultCompactInterval is the minimum spacing between compaction
	// passes. Compaction under memory pressure tends to retrigger
	// immediately; pacing keeps it advisory instead of a GC storm.
	defaultCompactInterval = 30 * time.Second
)

// ResourceMonitor samples process memory and runs registered compaction
// callbacks when usage crosses the threshold.
type ResourceMonitor struct {
	threshold uint64
	limiter   *rate.Limiter
	logger    *zap.Logger

	mu          sync.Mutex
	callbacks   []func()
	compactions uint64
}

// New creates a monitor. threshold <= 0 uses the default.
func New(threshold int64, logger *zap.Logger) *ResourceMonitor {
	if threshold <= 0 {
		threshold = DefaultMemoryThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceMonitor{
		threshold: uint64(threshold),
		limiter:   rate.NewLimiter(rate.Every(defaultCompactInterval), 1),
		logger:    logger,
	}
}

// MemoryUsage returns the current heap allocation in bytes.
func (m *ResourceMonitor) MemoryUsage() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// OnCompact registers a callback run during compaction, typically a
// cache drop.
func (m *ResourceMonitor) OnCompact(fn func()) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// CheckAndCompact runs a compaction pass if memory usage exceeds the
// threshold and the pacing limiter allows it. Reports whether a pass
// ran.
func (m *ResourceMonitor) CheckAndCompact(ctx context.Context) bool {
	usage := m.MemoryUsage()
	if usage <= m.threshold {
		return false
	}
	if !m.limiter.Allow() {
		return false
	}

	m.mu.Lock()
	callbacks := append([]func(){}, m.callbacks...)
	m.compactions++
	total := m.compactions
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	runtime.GC()

	m.logger.Info("advisory compaction pass completed",
		zap.Uint64("memory_bytes", usage),
		zap.Uint64("threshold_bytes", m.threshold),
		zap.Uint64("compactions_total", total))
	return true
}

// Compactions returns the number of compaction passes run so far.
func (m *ResourceMonitor) Compactions() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compactions
}
