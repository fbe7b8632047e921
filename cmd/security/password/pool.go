package password

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool runs Hash and Verify under a weighted semaphore so a burst of logins
// cannot allocate unbounded Argon2 memory.
type Pool struct {
	cfg     Config
	sem     *semaphore.Weighted
	observe func(op string, d time.Duration)
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithObserver registers a callback receiving the duration of every hash
// ("hash") and verification ("verify").
func WithObserver(fn func(op string, d time.Duration)) PoolOption {
	return func(p *Pool) { p.observe = fn }
}

func NewPool(cfg Config, opts ...PoolOption) *Pool {
	n := cfg.Concurrency
	if n <= 0 {
		n = 1
	}
	p := &Pool{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(n)),
		observe: func(string, time.Duration) {},
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	return p
}

// Hash waits for a slot and hashes password. The only errors are ctx
// cancellation and salt generation failure.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	start := time.Now()
	h, err := p.cfg.Hash(password)
	p.observe("hash", time.Since(start))
	return h, err
}

// Verify waits for a slot and compares password to encoded. A non-nil error
// only ever comes from ctx; a bad digest is reported as false.
func (p *Pool) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)

	start := time.Now()
	ok := p.cfg.Verify(password, encoded)
	p.observe("verify", time.Since(start))
	return ok, nil
}

func (p *Pool) NeedsRehash(encoded string) bool { return p.cfg.NeedsRehash(encoded) }

func (p *Pool) CheckStrength(password string) Strength { return p.cfg.CheckStrength(password) }
