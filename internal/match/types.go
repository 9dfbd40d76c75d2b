package match

import "github.com/fyrsmithlabs/faultline/internal/pattern"

// Type distinguishes how a match was produced.
type Type string

const (
	// TypeRegex is a match produced by one of a pattern's regexes.
	TypeRegex Type = "regex"
	// TypeKeyword is a match produced by keyword presence for a
	// pattern without regexes.
	TypeKeyword Type = "keyword"
)

// Match is one raw hit of a pattern within the input. Offsets are
// absolute byte positions in the original (unchunked) input. Matches
// are ephemeral; the engine folds them into PatternMatch immediately.
type Match struct {
	PatternID   string
	Type        Type
	MatchedText string
	Start       int
	End         int
	Confidence  float64
	Context     string
}

// PatternMatch is the scored, aggregated result of one pattern against
// one log. Its lifetime is a single analysis call.
type PatternMatch struct {
	Pattern *pattern.Pattern

	// Confidence is the final calculated confidence (0.0 - 1.0).
	Confidence float64

	// Positions are the absolute [start, end) offsets of every raw
	// match, ordered by start.
	Positions [][2]int

	// ExtractedContext holds the bounded context around each match.
	ExtractedContext []string

	// MatchStrength reflects how strongly the raw matches support the
	// pattern (more distinct hits, stronger signal).
	MatchStrength float64

	// SupportingEvidence lists the distinct matched strings.
	SupportingEvidence []string
}

// Stats describes one Match call for observability.
type Stats struct {
	// Candidates is the number of patterns that survived prefiltering.
	// In chunked mode it is the maximum across chunks.
	Candidates int

	// KeywordsFound is the number of distinct trie keywords present.
	KeywordsFound int

	// CacheHit reports whether the result came from the result cache.
	CacheHit bool

	// Chunked reports whether chunked-parallel matching was used.
	Chunked bool

	// Chunks is the number of chunks processed in chunked mode.
	Chunks int
}
