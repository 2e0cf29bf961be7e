/*
Package ratelimit provides adaptive client-side pacing for API requests.

Each request kind (rest, soap, or a finer label) gets its own token-bucket
limiter whose interval starts at 100ms, halves after three consecutive
successes (floor 50ms), and doubles on any failure (ceiling 30s). At most
eight requests per kind are in flight at once.

A shared circuit breaker watches outcomes across all kinds. When it trips on
sustained failures the global stress multiplier doubles (capped at 16x),
stretching every kind's interval; it halves again when the breaker recovers
or after a long clean streak.
*/
package ratelimit
