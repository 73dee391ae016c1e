// Package session implements portal's token codec.
//
// Access tokens are short-lived and carry the subject, its roles and an
// optional site. Refresh tokens are long-lived and carry the same snapshot so
// access tokens can be re-minted without another lookup. Neither is persisted:
// validity derives from signature and expiry, plus the subject-scoped
// revocation check performed by the refresh endpoint.
//
// Two wire formats are supported: JWT (HS256 with per-purpose derived keys, or
// EdDSA) and PASETO v4.public. Both bind the token purpose so an access token
// never verifies as a refresh token and vice versa.
package session
