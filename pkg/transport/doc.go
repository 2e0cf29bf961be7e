/*
Package transport provides the REST and SOAP clients for the tenant APIs.

Both clients share one policy: requests are paced through the adaptive rate
limiter, failed attempts retry up to three times with exponential backoff and
jitter, 429 responses honor Retry-After, and a 401 invalidates the cached
token and earns exactly one free retry with a fresh one. Retryable statuses
are 429/500/502/503/504; anything else in 4xx fails immediately.

The REST client parses responses with gjson so extractors can walk the
heterogeneous payloads without a struct per endpoint, and GetPaged drives
$page/$pageSize iteration. The SOAP client builds RetrieveRequest envelopes
with the fueloauth header, pages with ContinueRequest while the server
reports MoreDataAvailable (ceiling 100 pages), and decodes results into
namespace-stripped maps with attributes under "@name" keys.
*/
package transport
