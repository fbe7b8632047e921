// Package codec signs and verifies the self-contained tokens handed to
// clients: short-lived access tokens and long-lived refresh tokens.
//
// Tokens are HS256 JWTs. Each carries a "typ" claim so a refresh token is
// never accepted where an access token is expected (and vice versa), and a
// random "jti" so two tokens minted in the same second differ.
package codec
