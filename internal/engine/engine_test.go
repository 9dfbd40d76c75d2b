package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/faultline/internal/confidence"
	"github.com/fyrsmithlabs/faultline/internal/match"
	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

func newTestEngine(t *testing.T) (*Engine, *pattern.Store) {
	t.Helper()
	store := pattern.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	matcher, err := match.NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	eng, err := New(store, matcher, confidence.NewCalculator(), zap.NewNop())
	require.NoError(t, err)
	return eng, store
}

func TestAnalyzeDockerPermissionDenied(t *testing.T) {
	eng, _ := newTestEngine(t)

	log := "Got permission denied while trying to connect to the Docker daemon socket"
	res, err := eng.Analyze(context.Background(), log, nil)
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	pm := res.Matches[0]
	assert.Equal(t, "builtin.docker_permission_denied", pm.Pattern.ID)
	assert.Equal(t, "permission", pm.Pattern.Category)
	assert.GreaterOrEqual(t, pm.Confidence, 0.5)

	assert.Equal(t, StatusCompleted, res.Status)
	require.Len(t, res.RootCauses, 1)
	assert.Equal(t, "permission", res.RootCauses[0].Category)
	assert.Equal(t, pm.Confidence, res.OverallConfidence)
}

func TestAnalyzeEmptyInput(t *testing.T) {
	eng, _ := newTestEngine(t)

	res, err := eng.Analyze(context.Background(), "", nil)
	require.NoError(t, err)

	assert.Empty(t, res.Matches)
	assert.Empty(t, res.RootCauses)
	assert.Equal(t, StatusFallback, res.Status)
}

func TestAnalyzeCategoryFilter(t *testing.T) {
	eng, _ := newTestEngine(t)

	log := "Got permission denied while trying to connect to the Docker daemon socket\n" +
		"dial tcp 10.0.0.1:5432: connect: connection refused"

	res, err := eng.Analyze(context.Background(), log, &Options{
		CategoryFilter:      "network",
		ConfidenceThreshold: 0.5,
		MaxPatterns:         5,
	})
	require.NoError(t, err)

	for _, pm := range res.Matches {
		assert.Equal(t, "network", pm.Pattern.Category)
	}
}

func TestAnalyzeTruncatesToMaxPatterns(t *testing.T) {
	eng, store := newTestEngine(t)

	// Several user patterns all matching the same line.
	for _, id := range []string{"user.m1", "user.m2", "user.m3"} {
		now := time.Now()
		require.NoError(t, store.Add(&pattern.Pattern{
			ID: id, Name: id, Category: "test",
			RegexPatterns:  []string{`widget exploded`},
			Keywords:       []string{"widget"},
			ConfidenceBase: 0.9, SuccessRate: 0.9,
			CreatedAt: now, UpdatedAt: now,
			Source: pattern.SourceUser,
		}))
	}

	res, err := eng.Analyze(context.Background(), "the widget exploded badly", &Options{
		ConfidenceThreshold: 0.5,
		MaxPatterns:         2,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Matches), 2)
}

func TestAnalyzeDeterministicOrdering(t *testing.T) {
	eng, store := newTestEngine(t)

	now := time.Now()
	for _, id := range []string{"user.zz", "user.aa"} {
		require.NoError(t, store.Add(&pattern.Pattern{
			ID: id, Name: id, Category: "test",
			RegexPatterns:  []string{`identical failure line`},
			Keywords:       []string{"identical"},
			ConfidenceBase: 0.9, SuccessRate: 0.9,
			CreatedAt: now, UpdatedAt: now,
			Source: pattern.SourceUser,
		}))
	}

	for i := 0; i < 3; i++ {
		res, err := eng.Analyze(context.Background(), "an identical failure line here", &Options{
			CategoryFilter:      "test",
			ConfidenceThreshold: 0.1,
			MaxPatterns:         5,
		})
		require.NoError(t, err)
		require.Len(t, res.Matches, 2)
		assert.Equal(t, "user.aa", res.Matches[0].Pattern.ID,
			"equal scores must tie-break by ascending pattern id")
	}
}

func TestAnalyzeRecordsMetrics(t *testing.T) {
	eng, _ := newTestEngine(t)

	log := "Got permission denied while trying to connect to the Docker daemon socket"
	res, err := eng.Analyze(context.Background(), log, nil)
	require.NoError(t, err)

	m := res.Metrics
	assert.Equal(t, len(log), m.LogSize)
	assert.Greater(t, m.PatternsProcessed, 0)
	assert.Greater(t, m.MemoryUsage, uint64(0))
	assert.Contains(t, m.OptimizationsApplied, "trie_prefilter")
}

func TestAnalyzeIncrementsOccurrence(t *testing.T) {
	eng, store := newTestEngine(t)

	log := "Got permission denied while trying to connect to the Docker daemon socket"
	_, err := eng.Analyze(context.Background(), log, nil)
	require.NoError(t, err)

	p, err := store.Get("builtin.docker_permission_denied")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.OccurrenceCount)
}

type mockFallback struct {
	called bool
	reason string
	result *AnalysisResult
	err    error
}

func (f *mockFallback) Handle(ctx context.Context, logText, reason string) (*AnalysisResult, error) {
	f.called = true
	f.reason = reason
	return f.result, f.err
}

type mockSink struct {
	signatures []string
}

func (s *mockSink) RecordUnknown(ctx context.Context, signature, excerpt string) error {
	s.signatures = append(s.signatures, signature)
	return nil
}

func TestAnalyzeWithFallbackNoMatch(t *testing.T) {
	eng, _ := newTestEngine(t)

	fb := &mockFallback{result: &AnalysisResult{Summary: "ask a human"}}
	sink := &mockSink{}
	eng.SetFallback(fb)
	eng.SetUnknownSink(sink)

	res, err := eng.AnalyzeWithFallback(context.Background(),
		"Zorblatt reactor desynchronized unexpectedly", nil)
	require.NoError(t, err)

	assert.True(t, fb.called)
	assert.Equal(t, StatusFallback, res.Status)
	assert.Equal(t, "ask a human", res.Summary)
	require.Len(t, sink.signatures, 1)
	assert.Contains(t, sink.signatures[0], "Zorblatt")
}

func TestAnalyzeWithFallbackNoCollaborator(t *testing.T) {
	eng, _ := newTestEngine(t)

	res, err := eng.AnalyzeWithFallback(context.Background(), "nothing recognizable here", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFallback, res.Status)
	assert.Empty(t, res.RootCauses)
}

func TestAnalyzeWithFallbackCollaboratorError(t *testing.T) {
	eng, _ := newTestEngine(t)

	fb := &mockFallback{err: errors.New("fallback exploded")}
	eng.SetFallback(fb)

	res, err := eng.AnalyzeWithFallback(context.Background(), "nothing recognizable here", nil)
	require.NoError(t, err, "fallback failure must not escape")
	assert.Equal(t, StatusFallback, res.Status)
}

func TestAnalyzeWithFallbackPassesThroughMatches(t *testing.T) {
	eng, _ := newTestEngine(t)
	fb := &mockFallback{}
	eng.SetFallback(fb)

	log := "Got permission denied while trying to connect to the Docker daemon socket"
	res, err := eng.AnalyzeWithFallback(context.Background(), log, nil)
	require.NoError(t, err)

	assert.False(t, fb.called)
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestAnalyzeChunkedLargeLogMatchesDirect(t *testing.T) {
	eng, _ := newTestEngine(t)

	var sb strings.Builder
	filler := strings.Repeat("routine output line without anything notable\n", 50)
	for sb.Len() < 6<<20 {
		sb.WriteString(filler)
		sb.WriteString("Got permission denied while trying to connect to the Docker daemon\n")
		sb.WriteString(filler)
		sb.WriteString("dial tcp 10.0.0.9:443: connect: connection refused\n")
		sb.WriteString(filler)
		sb.WriteString("fatal error: out of memory allocating heap arena\n")
	}
	log := sb.String()

	res, err := eng.Analyze(context.Background(), log, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Metrics.OptimizationsApplied, "chunked_parallel")

	ids := make(map[string]bool)
	for _, pm := range res.Matches {
		ids[pm.Pattern.ID] = true
	}
	assert.True(t, ids["builtin.docker_permission_denied"])
	assert.True(t, ids["builtin.connection_refused"])
	assert.True(t, ids["builtin.oom_killed"])
}

func TestEngineStateReturnsToIdle(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Analyze(context.Background(), "whatever", nil)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, eng.State())
}

func TestStatsCounters(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.AnalyzeWithFallback(context.Background(), "unknown gibberish", nil)
	require.NoError(t, err)

	counters := eng.StatsCounters()
	assert.Equal(t, uint64(1), counters["analyses_total"])
	assert.Equal(t, uint64(1), counters["fallbacks_total"])
}
