package session

import (
	"context"
	"time"

	"authcore/cmd/identity/ids"
)

// Record is one persisted refresh token, identified by its digest.
// The plaintext token is never stored.
type Record struct {
	ID          string
	OwnerID     string
	TokenDigest string
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
}

// Active reports whether the record can still be used at now.
// A record past ExpiresAt is dead even if Revoked is false.
func (r Record) Active(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// NewRecord is the input to Create and Replace.
type NewRecord struct {
	OwnerID     string
	TokenDigest string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Store persists refresh-token records.
//
// Every mutation must be a single atomic operation against the backend;
// callers hold no locks.
type Store interface {
	// Create stores a record. A digest that already exists is ErrDuplicateDigest.
	Create(ctx context.Context, in NewRecord) (Record, error)

	// FindByDigest returns the record for digest or ErrRecordNotFound.
	// Revoked and expired records are returned as-is.
	FindByDigest(ctx context.Context, digest string) (Record, error)

	// Revoke marks one record revoked. Missing or already revoked digests are a no-op.
	Revoke(ctx context.Context, digest string) error

	// RevokeAllForOwner marks every record of ownerID revoked. Idempotent.
	RevokeAllForOwner(ctx context.Context, ownerID string) error

	// RevokeByID revokes the record with id if it belongs to ownerID and
	// reports whether such a record exists.
	RevokeByID(ctx context.Context, ownerID, id string) (bool, error)

	// ListActiveForOwner returns records that are neither revoked nor
	// expired at now, oldest first.
	ListActiveForOwner(ctx context.Context, ownerID string, now time.Time) ([]Record, error)

	// SweepExpired deletes every record with ExpiresAt <= now, revoked or
	// not, and returns how many were deleted.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)

	// Replace atomically revokes the record for oldDigest and creates in.
	// It returns ErrRecordNotFound when oldDigest is missing or already
	// revoked, so of two concurrent rotations only one succeeds.
	Replace(ctx context.Context, oldDigest string, in NewRecord) (Record, error)
}

func newRecord(in NewRecord) (Record, error) {
	id, err := ids.NewULID(in.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:          id,
		OwnerID:     in.OwnerID,
		TokenDigest: in.TokenDigest,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   in.CreatedAt,
	}, nil
}
