// Package identity is the user directory: the canonical User record, lookups
// by id, email or username, password-hash and enabled-flag updates, and the
// default notification preferences created after registration.
//
// Implementations: MemoryDirectory (tests, single-process dev), PostgresDirectory
// (pgx pool) and SQLiteDirectory (database/sql over modernc.org/sqlite).
package identity
