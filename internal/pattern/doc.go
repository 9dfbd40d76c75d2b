// Package pattern provides the durable catalog of failure patterns.
//
// A Pattern is a named rule (regular expressions, keywords, metadata)
// describing one class of CI/CD failure. The Store owns every Pattern:
// patterns enter the catalog at load time, through Add, or through
// learning-engine promotion, and are mutated only through Update.
//
// # Partitions
//
// Patterns are persisted in three partitions under a single directory:
//
//   - builtin/*.json — read-only named sets merged at load
//   - user.json      — user-defined patterns
//   - learned.json   — patterns discovered by the learning engine
//
// Save writes only the user and learned partitions; built-in sets are
// never re-serialized. A corrupt or missing partition is logged and
// treated as empty, never aborts the whole load. If nothing at all can
// be loaded, a minimal default set is installed so the store is never
// empty after Load.
//
// # Concurrency
//
// The Store serializes writes and allows concurrent reads. All returns
// a cloned snapshot so one analysis sees a consistent pattern set for
// its whole duration. The generation counter increments on every
// mutation; downstream caches key off it.
package pattern
