package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/faultline/internal/confidence"
	"github.com/fyrsmithlabs/faultline/internal/match"
	"github.com/fyrsmithlabs/faultline/internal/monitor"
	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

const instrumentationName = "github.com/fyrsmithlabs/faultline/internal/engine"

// State is the engine's position in its analysis lifecycle:
// Idle → Matching → Scoring → {Resolved | Fallback | Failed} → Idle.
type State int32

const (
	StateIdle State = iota
	StateMatching
	StateScoring
	StateResolved
	StateFallback
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMatching:
		return "matching"
	case StateScoring:
		return "scoring"
	case StateResolved:
		return "resolved"
	case StateFallback:
		return "fallback"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Engine orchestrates matching, scoring, and conflict resolution to
// turn raw log text into a ranked AnalysisResult. Collaborators are
// injected fully constructed; the engine never lazily builds them.
type Engine struct {
	store   *pattern.Store
	matcher *match.Engine
	calc    *confidence.Calculator
	logger  *zap.Logger

	fallback Fallback
	sink     UnknownSink
	monitor  *monitor.ResourceMonitor

	state atomic.Int32

	analyses  atomic.Uint64
	fallbacks atomic.Uint64
	failures  atomic.Uint64

	tracer          trace.Tracer
	meter           metric.Meter
	analyzeCounter  metric.Int64Counter
	fallbackCounter metric.Int64Counter
}

// New creates an engine over fully-initialized collaborators.
func New(store *pattern.Store, matcher *match.Engine, calc *confidence.Calculator, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("pattern store is required")
	}
	if matcher == nil {
		return nil, fmt.Errorf("match engine is required")
	}
	if calc == nil {
		return nil, fmt.Errorf("confidence calculator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:   store,
		matcher: matcher,
		calc:    calc,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
	}
	e.initMetrics()
	return e, nil
}

func (e *Engine) initMetrics() {
	var err error

	e.analyzeCounter, err = e.meter.Int64Counter(
		"faultline.engine.analyses_total",
		metric.WithDescription("Total number of log analyses"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		e.logger.Warn("failed to create analyze counter", zap.Error(err))
	}

	e.fallbackCounter, err = e.meter.Int64Counter(
		"faultline.engine.fallbacks_total",
		metric.WithDescription("Total number of analyses routed to fallback"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		e.logger.Warn("failed to create fallback counter", zap.Error(err))
	}
}

// SetFallback injects the degraded-path collaborator.
func (e *Engine) SetFallback(f Fallback) { e.fallback = f }

// SetUnknownSink injects the unrecognized-failure sink, typically the
// learning engine.
func (e *Engine) SetUnknownSink(s UnknownSink) { e.sink = s }

// SetMonitor attaches a resource monitor and registers the match
// engine's cache drop as a compaction callback.
func (e *Engine) SetMonitor(m *monitor.ResourceMonitor) {
	e.monitor = m
	if m != nil {
		m.OnCompact(e.matcher.Invalidate)
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// StatsCounters implements monitor.StatsSource.
func (e *Engine) StatsCounters() map[string]uint64 {
	return map[string]uint64{
		"analyses_total":  e.analyses.Load(),
		"fallbacks_total": e.fallbacks.Load(),
		"failures_total":  e.failures.Load(),
	}
}

// Analyze matches the active pattern set against text, scores the
// matches, resolves conflicts, and returns the ranked result.
//
// The active subset is resolved once at the start; patterns added
// mid-call never become visible to it. Final ordering is deterministic:
// total score descending, ties broken by ascending pattern id.
func (e *Engine) Analyze(ctx context.Context, text string, opts *Options) (*AnalysisResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.analyze")
	defer span.End()

	if opts == nil {
		opts = DefaultOptions()
	}
	threshold := opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultOptions().ConfidenceThreshold
	}
	maxPatterns := opts.MaxPatterns
	if maxPatterns <= 0 {
		maxPatterns = DefaultOptions().MaxPatterns
	}

	e.analyses.Add(1)
	if e.analyzeCounter != nil {
		e.analyzeCounter.Add(ctx, 1)
	}

	e.setState(StateMatching)
	defer e.setState(StateIdle)

	// One consistent snapshot for the whole call.
	var snapshot []*pattern.Pattern
	if opts.CategoryFilter != "" {
		snapshot = e.store.GetByCategory(opts.CategoryFilter)
	} else {
		snapshot = e.store.All()
	}
	span.SetAttributes(
		attribute.Int("patterns", len(snapshot)),
		attribute.Int("log_size", len(text)),
		attribute.String("category_filter", opts.CategoryFilter),
	)

	raw, mstats, err := e.matcher.Match(ctx, text, snapshot, opts.ForceChunked)
	if err != nil {
		e.setState(StateFailed)
		e.failures.Add(1)
		return nil, fmt.Errorf("match phase: %w", err)
	}

	e.setState(StateScoring)

	grouped := e.groupMatches(raw, snapshot)
	scored := grouped[:0]
	for _, pm := range grouped {
		pm.Confidence = e.calc.PatternConfidence(pm)
		if opts.ErrorType != "" || opts.ProjectType != "" {
			pm.Confidence = e.calc.AdjustByContext(pm.Confidence, confidence.Context{
				LogLength:        len(text),
				ErrorType:        opts.ErrorType,
				CompetingMatches: len(grouped),
				ProjectType:      opts.ProjectType,
			})
		}
		if pm.Confidence >= threshold {
			scored = append(scored, pm)
		}
	}

	var resolved []*match.PatternMatch
	if len(scored) > 0 {
		resolved = e.calc.ResolveCompeting(scored)
	}
	if len(resolved) > maxPatterns {
		resolved = resolved[:maxPatterns]
	}

	ids := make([]string, 0, len(resolved))
	for _, pm := range resolved {
		ids = append(ids, pm.Pattern.ID)
	}
	e.store.IncrementOccurrence(ids...)

	e.setState(StateResolved)
	result := e.buildResult(text, resolved, mstats, start)
	span.SetAttributes(attribute.Int("result_count", len(resolved)))

	if e.monitor != nil {
		e.monitor.CheckAndCompact(ctx)
	}
	return result, nil
}

// AnalyzeWithFallback wraps Analyze with the degraded path: zero or
// all-below-threshold matches, match-phase errors, and recovered panics
// all route to the Fallback collaborator. No error escapes for
// well-formed input; "no pattern matched" is a Fallback success.
func (e *Engine) AnalyzeWithFallback(ctx context.Context, text string, opts *Options) (result *AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("analysis panicked, routing to fallback",
				zap.Any("panic", r))
			e.failures.Add(1)
			result = e.degrade(ctx, text, fmt.Sprintf("internal error: %v", r))
			err = nil
		}
	}()

	res, aerr := e.Analyze(ctx, text, opts)
	if aerr != nil {
		e.logger.Warn("analysis failed, routing to fallback", zap.Error(aerr))
		return e.degrade(ctx, text, aerr.Error()), nil
	}
	if len(res.Matches) == 0 {
		return e.degrade(ctx, text, "no pattern matched above threshold"), nil
	}
	return res, nil
}

// degrade invokes the fallback path and records the unknown failure for
// the learning loop.
func (e *Engine) degrade(ctx context.Context, text, reason string) *AnalysisResult {
	e.setState(StateFallback)
	defer e.setState(StateIdle)

	e.fallbacks.Add(1)
	if e.fallbackCounter != nil {
		e.fallbackCounter.Add(ctx, 1)
	}

	unknown := newUnknownError(text, reason)
	if e.sink != nil {
		if err := e.sink.RecordUnknown(ctx, unknown.Signature, unknown.LogExcerpt); err != nil {
			e.logger.Warn("failed to record unknown error", zap.Error(err))
		}
	}

	if e.fallback != nil {
		res, err := e.fallback.Handle(ctx, text, reason)
		if err != nil {
			e.logger.Warn("fallback collaborator failed", zap.Error(err))
		} else if res != nil {
			res.Status = StatusFallback
			return res
		}
	}

	return &AnalysisResult{
		Summary:    "no known failure pattern matched",
		RootCauses: []RootCause{},
		Status:     StatusFallback,
	}
}

// groupMatches folds raw matches into one PatternMatch per pattern.
// Raw matches arrive sorted by start offset, so positions stay ordered.
func (e *Engine) groupMatches(raw []match.Match, snapshot []*pattern.Pattern) []*match.PatternMatch {
	byID := make(map[string]*pattern.Pattern, len(snapshot))
	for _, p := range snapshot {
		byID[p.ID] = p
	}

	grouped := make(map[string]*match.PatternMatch)
	var order []string
	for _, m := range raw {
		p, ok := byID[m.PatternID]
		if !ok {
			continue
		}
		pm, ok := grouped[m.PatternID]
		if !ok {
			pm = &match.PatternMatch{Pattern: p}
			grouped[m.PatternID] = pm
			order = append(order, m.PatternID)
		}
		pm.Positions = append(pm.Positions, [2]int{m.Start, m.End})
		if m.Context != "" {
			pm.ExtractedContext = append(pm.ExtractedContext, m.Context)
		}
		if !contains(pm.SupportingEvidence, m.MatchedText) {
			pm.SupportingEvidence = append(pm.SupportingEvidence, m.MatchedText)
		}
	}

	sort.Strings(order)
	out := make([]*match.PatternMatch, 0, len(order))
	for _, id := range order {
		pm := grouped[id]
		// More distinct hits strengthen the signal.
		pm.MatchStrength = matchStrength(len(pm.Positions))
		out = append(out, pm)
	}
	return out
}

// matchStrength maps hit count to (0, 1]: a single hit is already a
// strong signal, extra hits add a little more.
func matchStrength(positions int) float64 {
	if positions <= 0 {
		return 0
	}
	s := 0.7 + 0.1*float64(positions-1)
	if s > 1 {
		s = 1
	}
	return s
}

func (e *Engine) buildResult(text string, resolved []*match.PatternMatch, mstats match.Stats, start time.Time) *AnalysisResult {
	elapsed := time.Since(start)

	optimizations := []string{"trie_prefilter"}
	if mstats.Chunked {
		optimizations = append(optimizations, "chunked_parallel")
	}
	if mstats.CacheHit {
		optimizations = append(optimizations, "result_cache")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(len(text)) / elapsed.Seconds()
	}

	rootCauses := make([]RootCause, 0, len(resolved))
	overall := 0.0
	for _, pm := range resolved {
		rootCauses = append(rootCauses, RootCause{
			Category:    pm.Pattern.Category,
			Description: pm.Pattern.Name,
			Confidence:  pm.Confidence,
		})
		if pm.Confidence > overall {
			overall = pm.Confidence
		}
	}

	summary := "no known failure pattern matched"
	status := StatusFallback
	if len(resolved) > 0 {
		summary = fmt.Sprintf("identified %d known failure pattern(s)", len(resolved))
		status = StatusCompleted
	}

	return &AnalysisResult{
		Summary:           summary,
		RootCauses:        rootCauses,
		Matches:           resolved,
		OverallConfidence: overall,
		Status:            status,
		Metrics: PerformanceMetrics{
			ProcessingTime:       elapsed,
			MemoryUsage:          ms.HeapAlloc,
			PatternsProcessed:    mstats.Candidates,
			LogSize:              len(text),
			Throughput:           throughput,
			CacheHitRate:         e.matcher.CacheHitRate(),
			OptimizationsApplied: optimizations,
		},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
