package confidence

import (
	"math"
	"time"

	"github.com/fyrsmithlabs/faultline/internal/match"
)

// Priority is the urgency of a proposed fix.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// FixSuggestion is the scoring-relevant surface of an externally-owned
// fix proposal. The core never generates or applies fixes; it only
// scores them against the match that prompted them.
type FixSuggestion struct {
	// ID is an opaque identifier owned by the fix-generation system.
	ID string

	// BaseConfidence is the fix generator's own confidence (0.0 - 1.0).
	BaseConfidence float64

	// Changes is the number of discrete changes the fix makes.
	Changes int

	// EstimatedEffort is the expected time to apply the fix.
	EstimatedEffort time.Duration

	// Priority is the fix urgency.
	Priority Priority
}

// FixConfidence scores a fix against the match it addresses. The blend
// deliberately differs from PatternConfidence:
//
//	clamp01(patternConf*0.6 + fix.BaseConfidence*0.4) * complexity * priority
//
// where complexity shrinks toward 0.5 with more changes and longer
// effort, and priority boosts urgent fixes. The result is clamped to
// [0, 1].
func (c *Calculator) FixConfidence(fix *FixSuggestion, m *match.PatternMatch) float64 {
	if fix == nil {
		return 0
	}
	blend := clamp01(c.PatternConfidence(m)*0.6 + clamp01(fix.BaseConfidence)*0.4)
	return clamp01(blend * complexityFactor(fix) * priorityFactor(fix.Priority))
}

// complexityFactor maps fix size to [0.5, 1.0]: each change beyond the
// first and each estimated hour of effort shave confidence.
func complexityFactor(fix *FixSuggestion) float64 {
	f := 1.0
	if fix.Changes > 1 {
		f -= 0.05 * float64(fix.Changes-1)
	}
	f -= 0.05 * fix.EstimatedEffort.Hours()
	return math.Max(0.5, math.Min(1.0, f))
}

func priorityFactor(p Priority) float64 {
	switch p {
	case PriorityUrgent:
		return 1.2
	case PriorityHigh:
		return 1.1
	case PriorityLow:
		return 0.8
	default:
		return 1.0
	}
}
