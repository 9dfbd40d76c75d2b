package match

import (
	"context"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/faultline/internal/chunk"
	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

// Config controls matching behavior.
type Config struct {
	// SizeThreshold is the input size above which matching switches to
	// chunked-parallel mode.
	SizeThreshold int

	// ChunkBytes bounds each chunk in parallel mode.
	ChunkBytes int

	// OverlapLines is the line overlap between adjacent chunks.
	OverlapLines int

	// Workers bounds the chunk-matching pool.
	Workers int

	// ContextRadius is how many bytes of context to capture around a
	// match on each side.
	ContextRadius int

	// CacheSize bounds the result cache entry count.
	CacheSize int
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		SizeThreshold: 5 << 20, // 5MB
		ChunkBytes:    chunk.DefaultMaxBytes,
		OverlapLines:  chunk.DefaultOverlapLines,
		Workers:       4,
		ContextRadius: 50,
		CacheSize:     1000,
	}
}

// Engine performs two-stage filter+match: a keyword trie prefilters
// candidate patterns, then each candidate's compiled regexes run over
// the input. Large inputs fan out across a bounded worker pool per
// chunk. Compiled state is rebuilt whenever the store generation
// changes and is read-only during matching.
type Engine struct {
	cfg    *Config
	store  *pattern.Store
	logger *zap.Logger

	mu       sync.Mutex
	compiled *compiled
	results  *lru.Cache[uint64, []Match]

	statsMu      sync.Mutex
	cacheLookups uint64
	cacheHits    uint64
}

// NewEngine creates a match engine bound to the given store.
func NewEngine(cfg *Config, store *pattern.Store, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if store == nil {
		return nil, fmt.Errorf("pattern store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	results, err := lru.New[uint64, []Match](max(cfg.CacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		results: results,
	}, nil
}

// Match runs the given patterns over text and returns raw matches with
// absolute offsets, sorted by start position then pattern id. force
// switches to chunked-parallel mode regardless of input size.
func (e *Engine) Match(ctx context.Context, text string, patterns []*pattern.Pattern, force bool) ([]Match, Stats, error) {
	stats := Stats{}
	c := e.ensureCompiled()

	key := cacheKey(text, len(patterns))
	e.statsMu.Lock()
	e.cacheLookups++
	e.statsMu.Unlock()
	if cached, ok := e.results.Get(key); ok {
		e.statsMu.Lock()
		e.cacheHits++
		e.statsMu.Unlock()
		stats.CacheHit = true
		return append([]Match(nil), cached...), stats, nil
	}

	var matches []Match
	var err error
	if force || len(text) > e.cfg.SizeThreshold {
		stats.Chunked = true
		matches, stats.Chunks, stats.Candidates, err = e.matchChunked(ctx, text, patterns, c)
	} else {
		matches, stats.Candidates, stats.KeywordsFound = e.matchDirect(text, 0, patterns, c)
	}
	if err != nil {
		return nil, stats, err
	}

	sortMatches(matches)
	e.results.Add(key, append([]Match(nil), matches...))
	return matches, stats, nil
}

// ensureCompiled rebuilds the compiled regex/trie state if the pattern
// set changed. The result cache is wholly invalidated on rebuild.
func (e *Engine) ensureCompiled() *compiled {
	gen := e.store.Generation()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.compiled == nil || e.compiled.generation != gen {
		e.compiled = compilePatterns(gen, e.store.All(), e.logger)
		e.results.Purge()
	}
	return e.compiled
}

// Invalidate drops compiled state and the result cache. Used by the
// resource monitor's advisory compaction.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.compiled = nil
	e.results.Purge()
	e.mu.Unlock()
}

// CacheHitRate returns the lifetime result-cache hit rate.
func (e *Engine) CacheHitRate() float64 {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	if e.cacheLookups == 0 {
		return 0
	}
	return float64(e.cacheHits) / float64(e.cacheLookups)
}

// matchDirect scans one piece of text. base is the absolute offset of
// text's first byte; all reported offsets are absolute.
func (e *Engine) matchDirect(text string, base int, patterns []*pattern.Pattern, c *compiled) (matches []Match, candidates, keywordsFound int) {
	hits := c.trie.Scan(text)
	keywordsFound = len(hits)

	for _, p := range patterns {
		kws := c.keywords[p.ID]
		// Keyword-less patterns are always candidates.
		if len(kws) > 0 && !anyKeywordPresent(kws, hits) {
			continue
		}
		candidates++

		regexMatched := false
		for _, src := range p.RegexPatterns {
			re, ok := c.regexes[regexKey{patternID: p.ID, source: src}]
			if !ok {
				// Compile failure, already logged at build time.
				continue
			}
			for _, loc := range re.FindAllStringIndex(text, -1) {
				regexMatched = true
				matches = append(matches, Match{
					PatternID:   p.ID,
					Type:        TypeRegex,
					MatchedText: text[loc[0]:loc[1]],
					Start:       base + loc[0],
					End:         base + loc[1],
					Confidence:  p.ConfidenceBase,
					Context:     e.contextAround(text, loc[0], loc[1]),
				})
			}
		}

		// Patterns defined purely by keywords match at each keyword
		// occurrence, at reduced local confidence.
		if !regexMatched && len(p.RegexPatterns) == 0 {
			for _, kw := range kws {
				for _, pos := range hits[kw] {
					matches = append(matches, Match{
						PatternID:   p.ID,
						Type:        TypeKeyword,
						MatchedText: text[pos : pos+len(kw)],
						Start:       base + pos,
						End:         base + pos + len(kw),
						Confidence:  p.ConfidenceBase * 0.8,
						Context:     e.contextAround(text, pos, pos+len(kw)),
					})
				}
			}
		}
	}
	return matches, candidates, keywordsFound
}

// matchChunked fans chunk matching out across a bounded worker pool and
// merges results, de-duplicating matches repeated in overlap regions.
// The reported candidate count is the maximum across chunks, so it
// reflects prefiltering the same way the direct path does.
func (e *Engine) matchChunked(ctx context.Context, text string, patterns []*pattern.Pattern, c *compiled) ([]Match, int, int, error) {
	chunks := chunk.Split(text, e.cfg.ChunkBytes, e.cfg.OverlapLines)

	type chunkResult struct {
		matches    []Match
		candidates int
	}
	resultsChan := make(chan chunkResult, len(chunks))
	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup

	for _, ch := range chunks {
		wg.Add(1)
		go func(ch chunk.Chunk) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			chunkMatches, chunkCandidates, _ := e.matchDirect(ch.Text, ch.StartOffset, patterns, c)
			select {
			case resultsChan <- chunkResult{matches: chunkMatches, candidates: chunkCandidates}:
			case <-ctx.Done():
			}
		}(ch)
	}

	wg.Wait()
	close(resultsChan)

	if err := ctx.Err(); err != nil {
		return nil, len(chunks), 0, fmt.Errorf("chunked match cancelled: %w", err)
	}

	type dedupKey struct {
		patternID string
		start     int
		text      string
	}
	seen := make(map[dedupKey]struct{})
	var merged []Match
	var candidates int
	for res := range resultsChan {
		if res.candidates > candidates {
			candidates = res.candidates
		}
		for _, m := range res.matches {
			k := dedupKey{patternID: m.PatternID, start: m.Start, text: m.MatchedText}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, m)
		}
	}
	return merged, len(chunks), candidates, nil
}

// contextAround captures up to ContextRadius bytes on each side of a
// match within its chunk.
func (e *Engine) contextAround(text string, start, end int) string {
	lo := start - e.cfg.ContextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + e.cfg.ContextRadius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

func anyKeywordPresent(keywords []string, hits map[string][]int) bool {
	for _, kw := range keywords {
		if _, ok := hits[kw]; ok {
			return true
		}
	}
	return false
}

// sortMatches orders matches deterministically by start offset, then
// pattern id, then end offset.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		if matches[i].PatternID != matches[j].PatternID {
			return matches[i].PatternID < matches[j].PatternID
		}
		return matches[i].End < matches[j].End
	})
}
