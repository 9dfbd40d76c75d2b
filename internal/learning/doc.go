// Package learning closes the feedback loop around the pattern catalog.
//
// Two inputs drive it: explicit user feedback on suggested patterns and
// fixes, and the stream of failures the engine could not classify.
// Feedback moves a pattern's success rate by exponential moving average
// and nudges its confidence base up or down, clamped to [0.1, 1.0].
// Unrecognized failures are normalized (paths, uuids, hashes, and
// numbers become placeholders) and aggregated by signature; once a
// signature recurs often enough and no existing pattern covers it, it
// surfaces as a promotion candidate with generated keywords, a regex,
// and an inferred category.
package learning
