/*
Package cache lazily loads the lookup data extractors share: folder
hierarchies (SOAP DataFolder per content type, REST categories per
categoryType, Content Builder categories) and definition tables (query,
script, email and triggered send definitions keyed by their IDs).

Each kind loads at most once per run under its own lock; a failed load is
cached too and keeps returning CACHE_LOAD_FAILED instead of retrying.
Warm loads several kinds in parallel before an extractor starts.

Breadcrumbs resolve folder IDs into "root > child > leaf" paths with
memoization. A parent missing from the hierarchy contributes a synthetic
"(unknown:<id>)" segment and is tracked for the run report; parent cycles
are detected and flagged rather than looping.
*/
package cache
