// Package events provides a lightweight pub/sub broker for extraction
// lifecycle events. The runner publishes run and per-extractor events and
// progress updates; the CLI subscribes to render them. Delivery is
// best-effort: a subscriber with a full buffer misses events rather than
// blocking extraction.
package events
