/*
Package auth manages the OAuth2 client-credentials token for a tenant.

Manager caches the access token and treats it as expired 60 seconds before
the server-reported expiry, so no request is sent with a token about to die.
Concurrent refreshes collapse into a single request via singleflight, and
transports call Invalidate on a 401 so the next call fetches a fresh token.
Three consecutive refresh failures surface as an AUTH_FAILED error.
*/
package auth
