// Package confidence scores pattern matches and resolves conflicts
// among competing candidates.
//
// Pattern confidence blends four weighted factors (base confidence,
// feedback success rate, context clarity, recency) scaled by match
// strength. Fix confidence uses a deliberately different blend; the two
// formulas stay separate named methods. All outputs are clamped to
// [0, 1] regardless of inputs.
package confidence

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/faultline/internal/match"
	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

// Weights are the pattern-confidence factor weights. They are
// renormalized to sum to 1 if supplied un-normalized.
type Weights struct {
	Base    float64
	Success float64
	Context float64
	Recency float64
}

// DefaultWeights returns the production factor weights.
func DefaultWeights() Weights {
	return Weights{Base: 0.4, Success: 0.3, Context: 0.2, Recency: 0.1}
}

// normalized scales the weights to sum to 1. Degenerate weights (zero
// or negative sum) fall back to the defaults.
func (w Weights) normalized() Weights {
	sum := w.Base + w.Success + w.Context + w.Recency
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return DefaultWeights()
	}
	return Weights{
		Base:    w.Base / sum,
		Success: w.Success / sum,
		Context: w.Context / sum,
		Recency: w.Recency / sum,
	}
}

// Context carries the analysis-level signals used by AdjustByContext.
type Context struct {
	// LogLength is the total input size in bytes.
	LogLength int

	// ErrorType selects an error-type factor; unknown types use 1.0.
	ErrorType string

	// CompetingMatches is how many other patterns matched the same log.
	CompetingMatches int

	// ProjectType selects a project-type factor; unknown types use 1.0.
	ProjectType string
}

// Calculator computes match and fix confidence. Safe for concurrent
// use; all state is read-only after construction.
type Calculator struct {
	weights            Weights
	errorTypeFactors   map[string]float64
	projectTypeFactors map[string]float64
	logger             *zap.Logger
	now                func() time.Time
}

// Option customizes a Calculator.
type Option func(*Calculator)

// WithWeights overrides the factor weights. Un-normalized weights are
// renormalized to sum to 1.
func WithWeights(w Weights) Option {
	return func(c *Calculator) { c.weights = w.normalized() }
}

// WithErrorTypeFactors overrides the error-type adjustment table.
func WithErrorTypeFactors(factors map[string]float64) Option {
	return func(c *Calculator) { c.errorTypeFactors = factors }
}

// WithProjectTypeFactors overrides the project-type adjustment table.
func WithProjectTypeFactors(factors map[string]float64) Option {
	return func(c *Calculator) { c.projectTypeFactors = factors }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Calculator) { c.logger = logger }
}

// NewCalculator creates a calculator with default weights and factor
// tables.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		weights: DefaultWeights(),
		errorTypeFactors: map[string]float64{
			"permission": 1.1,
			"network":    0.95,
			"build":      1.05,
			"test":       1.0,
			"resource":   1.05,
		},
		projectTypeFactors: map[string]float64{
			"go":     1.05,
			"node":   1.0,
			"python": 1.0,
			"docker": 1.1,
		},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PatternConfidence scores one aggregated match:
//
//	strength * (base*Wb + success*Ws + clarity*Wc + recency*Wr)
//
// clamped to [0, 1] for arbitrary, including adversarial, inputs.
func (c *Calculator) PatternConfidence(m *match.PatternMatch) float64 {
	if m == nil || m.Pattern == nil {
		return 0
	}
	base := clamp01(m.Pattern.ConfidenceBase)
	success := clamp01(m.Pattern.SuccessRate)
	clarity := contextClarity(m)
	recency := c.recencyFactor(m.Pattern)

	strength := clamp01(m.MatchStrength)
	score := strength * (base*c.weights.Base +
		success*c.weights.Success +
		clarity*c.weights.Context +
		recency*c.weights.Recency)
	return clamp01(score)
}

// contextClarity estimates how informative the captured context is.
// Starts at 0.5 and moves with context length, evidence count, and
// match position count; clamped to [0, 1].
func contextClarity(m *match.PatternMatch) float64 {
	clarity := 0.5

	total := 0
	for _, ctx := range m.ExtractedContext {
		total += len(ctx)
	}
	switch {
	case total > 100:
		clarity += 0.2
	case total < 20:
		clarity -= 0.2
	}

	switch {
	case len(m.SupportingEvidence) > 2:
		clarity += 0.2
	case len(m.SupportingEvidence) == 0:
		clarity -= 0.3
	}

	if len(m.Positions) > 1 {
		clarity += 0.1
	}
	return clamp01(clarity)
}

// recencyFactor buckets pattern age: recently updated patterns reflect
// the current failure landscape better than stale ones.
func (c *Calculator) recencyFactor(p *pattern.Pattern) float64 {
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = p.CreatedAt
	}
	if ts.IsZero() {
		return 0.2
	}
	age := c.now().Sub(ts)
	switch {
	case age <= 30*24*time.Hour:
		return 1.0
	case age <= 90*24*time.Hour:
		return 0.8
	case age <= 180*24*time.Hour:
		return 0.6
	case age <= 365*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

// AdjustByContext scales a confidence by analysis-level factors: log
// length bucket, error type, competing-match penalty, and project type.
// The result is clamped to [0, 1].
func (c *Calculator) AdjustByContext(conf float64, ctx Context) float64 {
	adjusted := clamp01(conf)

	adjusted *= logLengthFactor(ctx.LogLength)

	if f, ok := c.errorTypeFactors[ctx.ErrorType]; ok {
		adjusted *= f
	}

	if ctx.CompetingMatches > 1 {
		adjusted *= 0.9
	}

	if f, ok := c.projectTypeFactors[ctx.ProjectType]; ok {
		adjusted *= f
	}

	return clamp01(adjusted)
}

// logLengthFactor buckets input size. Very short logs carry little
// corroborating context; very long ones dilute the signal.
func logLengthFactor(length int) float64 {
	switch {
	case length < 1<<10:
		return 0.8
	case length < 100<<10:
		return 1.0
	case length < 5<<20:
		return 1.1
	default:
		return 0.9
	}
}

// ResolveCompeting ranks competing matches by a blend of confidence,
// specificity, and evidence strength, keeping every match scoring at
// least 0.5 — or at minimum the single best match, so non-empty input
// never resolves to an empty result. Ordering is deterministic: total
// score descending, ties broken by ascending pattern id.
func (c *Calculator) ResolveCompeting(matches []*match.PatternMatch) []*match.PatternMatch {
	if len(matches) == 0 {
		return nil
	}

	type scored struct {
		m     *match.PatternMatch
		total float64
	}
	ranked := make([]scored, 0, len(matches))
	for _, m := range matches {
		total := clamp01(m.Confidence)*0.6 +
			specificity(m.Pattern)*0.25 +
			evidenceStrength(m)*0.15
		ranked = append(ranked, scored{m: m, total: total})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return patternID(ranked[i].m) < patternID(ranked[j].m)
	})

	var kept []*match.PatternMatch
	for _, s := range ranked {
		if s.total >= 0.5 {
			kept = append(kept, s.m)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, ranked[0].m)
	}
	return kept
}

// specificity rewards precise patterns: more and longer regexes, more
// keywords, declared context requirements.
func specificity(p *pattern.Pattern) float64 {
	if p == nil {
		return 0
	}
	s := 0.0
	for _, src := range p.RegexPatterns {
		s += 0.1 + math.Min(0.15, float64(len(src))/200)
	}
	s += 0.05 * float64(len(p.Keywords))
	if len(p.ContextRequirements) > 0 {
		s += 0.1
	}
	return clamp01(s)
}

// evidenceStrength rewards matches backed by more evidence strings and
// more distinct positions.
func evidenceStrength(m *match.PatternMatch) float64 {
	return clamp01(0.2*float64(len(m.SupportingEvidence)) + 0.1*float64(len(m.Positions)))
}

func patternID(m *match.PatternMatch) string {
	if m.Pattern == nil {
		return ""
	}
	return m.Pattern.ID
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
