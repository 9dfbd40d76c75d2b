// Package match implements two-stage pattern matching over log text.
//
// Stage one prefilters: a case-insensitive multi-keyword trie scans the
// input once, and only patterns whose keyword set intersects the found
// keywords stay candidates (patterns without keywords always do). Stage
// two runs each candidate's compiled regexes, capturing bounded context
// around every hit.
//
// Inputs above the configured size threshold are split into bounded,
// line-aligned, overlapping chunks and matched in parallel on a bounded
// worker pool; merged results are de-duplicated by (pattern id,
// absolute start, matched text) to remove overlap-induced repeats.
//
// Compiled regexes and the trie are rebuilt whenever the pattern store
// generation changes and are read-only while workers run. A bounded LRU
// result cache short-circuits repeated identical calls and is wholly
// invalidated on recompilation.
package match
