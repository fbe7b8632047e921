// Package password provides credential hashing, verification and strength
// checks for authcore.
//
// New digests are Argon2id in a PHC-like encoded string. Verification also
// accepts legacy bcrypt digests so accounts imported from older systems keep
// working; NeedsRehash reports when a stored digest should be upgraded.
//
// Security notes:
// - Digests are treated as untrusted input during Verify and are validated accordingly.
// - Verification refuses Argon2id digests with parameters that exceed reasonable bounds.
// - Pool bounds how many hashes run at once, since each one costs tens of MiB.
package password
