// Package token provides secret-key primitives for portal's session tokens.
//
// It is the single place that reads signing secrets from the environment and
// derives purpose-bound subkeys from them.
//
// Environment:
//   - PORTAL_TOKEN_SECRET: master secret for symmetric (HS256) token signing.
//
// Policy:
//   - Secrets are measured in bytes and must be at least MinSecretBytes long.
//   - Access and refresh tokens are signed with different subkeys derived via
//     HKDF-SHA256, so a token of one kind never verifies as the other.
package token
