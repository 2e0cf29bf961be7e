// Package snapshot persists a finished extraction run to disk as a
// timestamped directory: per-extractor NDJSON object files, the relationship
// graph and orphan report, run statistics, and a manifest tying it together.
package snapshot
