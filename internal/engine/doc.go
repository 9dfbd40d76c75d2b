// Package engine orchestrates log analysis: it resolves the active
// pattern subset, runs the match engine (direct or chunked-parallel),
// scores matches through the confidence calculator, resolves competing
// candidates, and packages a ranked AnalysisResult.
//
// The engine moves through Idle → Matching → Scoring → {Resolved |
// Fallback | Failed} → Idle per call. AnalyzeWithFallback guarantees no
// error escapes for well-formed input: zero matches, scoring below
// threshold, match-phase errors, and recovered panics all route to the
// injected Fallback collaborator, and the unrecognized failure is
// handed to the learning loop through the UnknownSink.
//
// All collaborators are injected fully constructed. The engine holds no
// lazily-built singletons and never mutates the pattern store beyond
// occurrence counting.
package engine
