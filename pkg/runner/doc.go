// Package runner orchestrates extraction runs: it resolves extractor
// selections (explicit lists or named presets), executes them under a
// bounded degree of parallelism, and aggregates objects, edges, errors and
// statistics into a single run result.
package runner
