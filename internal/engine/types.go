package engine

import (
	"context"
	"strings"
	"time"

	"github.com/fyrsmithlabs/faultline/internal/match"
)

// Status is the outcome class of one analysis.
type Status string

const (
	// StatusCompleted means at least one pattern matched confidently.
	StatusCompleted Status = "completed"
	// StatusFallback means the degraded path produced the result.
	StatusFallback Status = "fallback"
	// StatusFailed means even the fallback path failed.
	StatusFailed Status = "failed"
)

// RootCause is one identified failure cause.
type RootCause struct {
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// AnalysisResult is the outcome of analyzing one log.
type AnalysisResult struct {
	Summary           string                `json:"summary"`
	RootCauses        []RootCause           `json:"root_causes"`
	Matches           []*match.PatternMatch `json:"matches"`
	OverallConfidence float64               `json:"overall_confidence"`
	Status            Status                `json:"status"`
	Metrics           PerformanceMetrics    `json:"metrics"`
}

// PerformanceMetrics describes one analysis for observability. It is
// never persisted.
type PerformanceMetrics struct {
	ProcessingTime       time.Duration `json:"processing_time"`
	MemoryUsage          uint64        `json:"memory_usage"`
	PatternsProcessed    int           `json:"patterns_processed"`
	LogSize              int           `json:"log_size"`
	Throughput           float64       `json:"throughput"`
	CacheHitRate         float64       `json:"cache_hit_rate"`
	OptimizationsApplied []string      `json:"optimizations_applied"`
}

// UnknownError packages an unrecognized failure for the learning loop.
type UnknownError struct {
	Signature  string    `json:"signature"`
	LogExcerpt string    `json:"log_excerpt"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// newUnknownError extracts a short signature and bounded excerpt from
// raw log text.
func newUnknownError(text, reason string) *UnknownError {
	sig := firstNonEmptyLine(text)
	if len(sig) > 200 {
		sig = sig[:200]
	}
	excerpt := text
	if len(excerpt) > 1000 {
		excerpt = excerpt[:1000]
	}
	return &UnknownError{
		Signature:  sig,
		LogExcerpt: excerpt,
		Reason:     reason,
		Timestamp:  time.Now(),
	}
}

func firstNonEmptyLine(text string) string {
	for _, l := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(l); s != "" {
			return s
		}
	}
	return ""
}

// Fallback is the externally-provided degraded path, invoked on zero or
// low-confidence matches. Implementations live outside the core.
type Fallback interface {
	// Handle produces a degraded AnalysisResult for a log the engine
	// could not classify. reason describes why the engine gave up.
	Handle(ctx context.Context, logText, reason string) (*AnalysisResult, error)
}

// UnknownSink receives unrecognized failures, typically the learning
// engine's discovery queue.
type UnknownSink interface {
	RecordUnknown(ctx context.Context, signature, logExcerpt string) error
}

// Options tune one analysis call.
type Options struct {
	// CategoryFilter restricts the active pattern subset.
	CategoryFilter string

	// ConfidenceThreshold drops matches scoring below it.
	ConfidenceThreshold float64

	// MaxPatterns truncates the resolved match list.
	MaxPatterns int

	// ForceChunked forces chunked-parallel matching regardless of size.
	ForceChunked bool

	// ErrorType and ProjectType feed contextual confidence adjustment
	// when known; leave empty to skip adjustment.
	ErrorType   string
	ProjectType string
}

// DefaultOptions returns production defaults.
func DefaultOptions() *Options {
	return &Options{
		ConfidenceThreshold: 0.5,
		MaxPatterns:         5,
	}
}
