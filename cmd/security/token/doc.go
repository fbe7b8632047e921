// Package token derives the storage digest of refresh tokens.
//
// Only the digest is ever persisted. Two modes:
//   - SHA-256(token) when no key is configured (dev).
//   - HMAC-SHA256(token, key) when AUTHCORE_TOKEN_HMAC_KEY is set, so a leaked
//     table cannot be checked against guessed tokens offline.
//
// Output is always 64 lower-case hex characters.
package token
