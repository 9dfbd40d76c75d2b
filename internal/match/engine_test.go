package match

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

func testStore(t *testing.T, patterns ...*pattern.Pattern) *pattern.Store {
	t.Helper()
	store := pattern.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))
	for _, p := range patterns {
		require.NoError(t, store.Add(p))
	}
	return store
}

func testPattern(id, category, regex string, keywords ...string) *pattern.Pattern {
	now := time.Now()
	return &pattern.Pattern{
		ID:             id,
		Name:           id,
		Category:       category,
		RegexPatterns:  []string{regex},
		Keywords:       keywords,
		ConfidenceBase: 0.8,
		SuccessRate:    0.7,
		CreatedAt:      now,
		UpdatedAt:      now,
		Source:         pattern.SourceUser,
	}
}

func TestMatchDockerPermissionDenied(t *testing.T) {
	store := testStore(t)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	log := "Got permission denied while trying to connect to the Docker daemon socket"
	matches, stats, err := engine.Match(context.Background(), log, store.All(), false)
	require.NoError(t, err)

	require.NotEmpty(t, matches)
	var found bool
	for _, m := range matches {
		if m.PatternID == "builtin.docker_permission_denied" {
			found = true
			assert.Equal(t, TypeRegex, m.Type)
			assert.Contains(t, strings.ToLower(m.MatchedText), "permission denied")
		}
	}
	assert.True(t, found)
	assert.Greater(t, stats.KeywordsFound, 0)
}

func TestMatchEmptyInput(t *testing.T) {
	store := testStore(t)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	matches, _, err := engine.Match(context.Background(), "", store.All(), false)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchKeywordPrefilterSkipsNonCandidates(t *testing.T) {
	p := testPattern("user.needle", "test", `needle \d+`, "needle")
	store := testStore(t, p)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	// Input without the keyword: the pattern never becomes a candidate.
	_, stats, err := engine.Match(context.Background(), "plain haystack text", []*pattern.Pattern{p}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Candidates)

	matches, stats, err := engine.Match(context.Background(), "found needle 42 here", []*pattern.Pattern{p}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Candidates)
	require.Len(t, matches, 1)
	assert.Equal(t, "needle 42", matches[0].MatchedText)
}

func TestMatchKeywordOnlyPattern(t *testing.T) {
	p := &pattern.Pattern{
		ID:             "user.kw_only",
		Name:           "keyword only",
		Category:       "test",
		Keywords:       []string{"segfault"},
		ConfidenceBase: 0.6,
		SuccessRate:    0.5,
		Source:         pattern.SourceUser,
	}
	store := testStore(t, p)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	matches, _, err := engine.Match(context.Background(), "process died with SEGFAULT at 0x0", []*pattern.Pattern{p}, false)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, TypeKeyword, matches[0].Type)
	assert.InDelta(t, 0.48, matches[0].Confidence, 1e-9)
}

func TestMatchMultipleRegexesPerPattern(t *testing.T) {
	p := testPattern("user.multi", "test", `good match`, "match")
	p.RegexPatterns = append(p.RegexPatterns, `also (fine)`)
	store := testStore(t, p)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	matches, _, err := engine.Match(context.Background(), "good match and also fine", []*pattern.Pattern{p}, false)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestMatchAbsoluteOffsets(t *testing.T) {
	p := testPattern("user.offset", "test", `marker`, "marker")
	store := testStore(t, p)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	log := strings.Repeat("padding line\n", 10) + "the marker is here"
	matches, _, err := engine.Match(context.Background(), log, []*pattern.Pattern{p}, false)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "marker", log[matches[0].Start:matches[0].End])
}

func TestMatchChunkedParityWithDirect(t *testing.T) {
	// A log above the size threshold with three distinct signatures
	// repeated throughout must yield the same pattern ids under
	// chunked-parallel and direct processing.
	store := testStore(t)
	cfg := DefaultConfig()
	cfg.ChunkBytes = 256 << 10
	engine, err := NewEngine(cfg, store, zap.NewNop())
	require.NoError(t, err)

	var sb strings.Builder
	filler := strings.Repeat("ordinary build output with nothing interesting\n", 20)
	for sb.Len() < 6<<20 {
		sb.WriteString(filler)
		sb.WriteString("Got permission denied while trying to connect to the Docker daemon\n")
		sb.WriteString(filler)
		sb.WriteString("fatal: connection refused by remote host\n")
		sb.WriteString(filler)
		sb.WriteString("container runtime: out of memory\n")
	}
	log := sb.String()

	direct, _, err := engine.Match(context.Background(), log, store.All(), false)
	require.NoError(t, err)

	engine.Invalidate()
	chunked, stats, err := engine.Match(context.Background(), log, store.All(), true)
	require.NoError(t, err)
	assert.True(t, stats.Chunked)
	assert.Greater(t, stats.Chunks, 1)

	assert.ElementsMatch(t, distinctIDs(direct), distinctIDs(chunked))
	assert.GreaterOrEqual(t, len(distinctIDs(chunked)), 3)

	// Overlap regions must not introduce duplicate matches.
	type key struct {
		id    string
		start int
		text  string
	}
	seen := make(map[key]int)
	for _, m := range chunked {
		seen[key{m.PatternID, m.Start, m.MatchedText}]++
	}
	for k, n := range seen {
		assert.Equal(t, 1, n, "duplicate match %+v", k)
	}
}

func TestMatchChunkedCandidateStats(t *testing.T) {
	// Only one of the two patterns has its keyword in the input, so the
	// prefilter must report one candidate even across many chunks.
	hit := testPattern("user.hit", "test", `needle \d+`, "needle")
	miss := testPattern("user.miss", "test", `absent token`, "zzzabsent")
	store := testStore(t, hit, miss)
	cfg := DefaultConfig()
	cfg.ChunkBytes = 64 << 10
	engine, err := NewEngine(cfg, store, zap.NewNop())
	require.NoError(t, err)

	log := strings.Repeat("filler line before the needle 7 appears\n", 20000)
	patterns := []*pattern.Pattern{hit, miss}

	_, stats, err := engine.Match(context.Background(), log, patterns, true)
	require.NoError(t, err)
	assert.True(t, stats.Chunked)
	assert.Greater(t, stats.Chunks, 1)
	assert.Equal(t, 1, stats.Candidates)
}

func TestMatchChunkedCancellation(t *testing.T) {
	store := testStore(t)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := strings.Repeat("some log line\n", 1000)
	_, _, err = engine.Match(ctx, log, store.All(), true)
	assert.Error(t, err)
}

func TestMatchResultCache(t *testing.T) {
	store := testStore(t)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	log := "Got permission denied while trying to connect to the Docker daemon socket"
	patterns := store.All()

	first, stats, err := engine.Match(context.Background(), log, patterns, false)
	require.NoError(t, err)
	assert.False(t, stats.CacheHit)

	second, stats, err := engine.Match(context.Background(), log, patterns, false)
	require.NoError(t, err)
	assert.True(t, stats.CacheHit)
	assert.Equal(t, first, second)
	assert.Greater(t, engine.CacheHitRate(), 0.0)
}

func TestMatchCacheInvalidatedOnStoreChange(t *testing.T) {
	store := testStore(t)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	log := "error: something failed somewhere"
	_, _, err = engine.Match(context.Background(), log, store.All(), false)
	require.NoError(t, err)

	// Mutating the store bumps the generation and recompiles, wholly
	// invalidating the result cache.
	require.NoError(t, store.Add(testPattern("user.fresh", "test", `something failed`, "failed")))

	matches, stats, err := engine.Match(context.Background(), log, store.All(), false)
	require.NoError(t, err)
	assert.False(t, stats.CacheHit)
	assert.Contains(t, distinctIDs(matches), "user.fresh")
}

func TestMatchDeterministicOrder(t *testing.T) {
	a := testPattern("user.aa", "test", `shared token`, "shared")
	b := testPattern("user.bb", "test", `shared token`, "token")
	store := testStore(t, a, b)
	engine, err := NewEngine(nil, store, zap.NewNop())
	require.NoError(t, err)

	matches, _, err := engine.Match(context.Background(), "a shared token appears", []*pattern.Pattern{b, a}, false)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "user.aa", matches[0].PatternID)
	assert.Equal(t, "user.bb", matches[1].PatternID)
}

func distinctIDs(matches []Match) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range matches {
		if _, ok := seen[m.PatternID]; !ok {
			seen[m.PatternID] = struct{}{}
			ids = append(ids, m.PatternID)
		}
	}
	return ids
}

func BenchmarkMatchDirect(b *testing.B) {
	store := pattern.NewStore(b.TempDir(), zap.NewNop())
	if err := store.Load(context.Background()); err != nil {
		b.Fatal(err)
	}
	engine, err := NewEngine(nil, store, zap.NewNop())
	if err != nil {
		b.Fatal(err)
	}
	log := strings.Repeat(fmt.Sprintf("line with permission denied docker %d\n", 7), 1000)
	patterns := store.All()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Invalidate()
		if _, _, err := engine.Match(context.Background(), log, patterns, false); err != nil {
			b.Fatal(err)
		}
	}
}
