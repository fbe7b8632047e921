package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store guarded by a single mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	byDigest map[string]*Record
	byOwner  map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDigest: make(map[string]*Record),
		byOwner:  make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in NewRecord) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	rec, err := newRecord(in)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertLocked(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *MemoryStore) insertLocked(rec Record) error {
	if _, ok := s.byDigest[rec.TokenDigest]; ok {
		return ErrDuplicateDigest
	}
	r := rec
	s.byDigest[rec.TokenDigest] = &r
	owned, ok := s.byOwner[rec.OwnerID]
	if !ok {
		owned = make(map[string]struct{})
		s.byOwner[rec.OwnerID] = owned
	}
	owned[rec.TokenDigest] = struct{}{}
	return nil
}

func (s *MemoryStore) FindByDigest(ctx context.Context, digest string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byDigest[digest]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return *r, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.byDigest[digest]; ok {
		r.Revoked = true
	}
	return nil
}

func (s *MemoryStore) RevokeAllForOwner(ctx context.Context, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for d := range s.byOwner[ownerID] {
		s.byDigest[d].Revoked = true
	}
	return nil
}

func (s *MemoryStore) RevokeByID(ctx context.Context, ownerID, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for d := range s.byOwner[ownerID] {
		if r := s.byDigest[d]; r.ID == id {
			r.Revoked = true
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListActiveForOwner(ctx context.Context, ownerID string, now time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Record, 0, len(s.byOwner[ownerID]))
	for d := range s.byOwner[ownerID] {
		if r := s.byDigest[d]; r.Active(now) {
			out = append(out, *r)
		}
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for d, r := range s.byDigest {
		if r.ExpiresAt.After(now) {
			continue
		}
		delete(s.byDigest, d)
		if owned := s.byOwner[r.OwnerID]; owned != nil {
			delete(owned, d)
			if len(owned) == 0 {
				delete(s.byOwner, r.OwnerID)
			}
		}
		n++
	}
	return n, nil
}

func (s *MemoryStore) Replace(ctx context.Context, oldDigest string, in NewRecord) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	rec, err := newRecord(in)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byDigest[oldDigest]
	if !ok || old.Revoked {
		return Record{}, ErrRecordNotFound
	}
	if err := s.insertLocked(rec); err != nil {
		return Record{}, err
	}
	old.Revoked = true
	return rec, nil
}

// Len returns the number of stored records, revoked or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDigest)
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
