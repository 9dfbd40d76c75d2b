package match

import (
	"hash/fnv"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

// cacheKeyPrefix is how much of the input participates in the result
// cache key. Two inputs sharing the first kilobyte and candidate count
// are assumed identical; the cache is an optimization, not a source of
// truth, and is wholly invalidated on recompilation.
const cacheKeyPrefix = 1000

// regexKey identifies one compiled expression of one pattern.
type regexKey struct {
	patternID string
	source    string
}

// compiled holds the read-only matching state for one store generation:
// every compilable regex plus a trie over all pattern keywords. It is
// built before fan-out and never mutated while workers run.
type compiled struct {
	generation uint64
	regexes    map[regexKey]*regexp.Regexp
	trie       *keywordTrie
	// keywords maps pattern id to its lowercased keywords for the
	// candidate-intersection test.
	keywords map[string][]string
}

// compilePatterns builds the compiled state for a pattern set. A regex
// that fails to compile is logged and skipped; it never aborts the run.
func compilePatterns(generation uint64, patterns []*pattern.Pattern, logger *zap.Logger) *compiled {
	c := &compiled{
		generation: generation,
		regexes:    make(map[regexKey]*regexp.Regexp),
		keywords:   make(map[string][]string),
	}

	var allKeywords []string
	for _, p := range patterns {
		for _, src := range p.RegexPatterns {
			re, err := regexp.Compile(src)
			if err != nil {
				logger.Warn("skipping uncompilable pattern regex",
					zap.String("pattern_id", p.ID),
					zap.String("regex", src),
					zap.Error(err))
				continue
			}
			c.regexes[regexKey{patternID: p.ID, source: src}] = re
		}
		if len(p.Keywords) > 0 {
			lowered := make([]string, 0, len(p.Keywords))
			for _, kw := range p.Keywords {
				lowered = append(lowered, strings.ToLower(kw))
			}
			c.keywords[p.ID] = lowered
			allKeywords = append(allKeywords, lowered...)
		}
	}
	c.trie = newKeywordTrie(allKeywords)
	return c
}

// cacheKey derives the result-cache key from the input prefix and the
// candidate pattern count.
func cacheKey(text string, candidates int) uint64 {
	h := fnv.New64a()
	prefix := text
	if len(prefix) > cacheKeyPrefix {
		prefix = prefix[:cacheKeyPrefix]
	}
	h.Write([]byte(prefix))
	var lenBytes [16]byte
	putUint64(lenBytes[:8], uint64(len(text)))
	putUint64(lenBytes[8:], uint64(candidates))
	h.Write(lenBytes[:])
	return h.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
