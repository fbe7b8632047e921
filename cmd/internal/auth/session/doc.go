// Package session implements the refresh-token session lifecycle.
//
// Login and registration mint an access/refresh token pair. Only a digest of
// the refresh token is persisted (see Store); access tokens are never stored
// and expire on their own. Refresh trades a live refresh token for a new
// access token, and revocation (logout, logout everywhere, password change,
// account disable) flips stored records so the refresh token stops working
// immediately.
//
// Store backends: memory, PostgreSQL (pgx), SQLite (modernc) and Redis.
package session
