package password

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// testConfig keeps Argon2 cheap enough for unit tests.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	cfg.Concurrency = 2
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding: %q", h)
	}
	if !cfg.Verify("secret123", h) {
		t.Fatalf("expected match")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	cfg := testConfig()

	a, err := cfg.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := cfg.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct digests for the same input")
	}
	if !cfg.Verify("secret123", a) || !cfg.Verify("secret123", b) {
		t.Fatalf("both digests must verify")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if cfg.Verify("wrong-password1", h) {
		t.Fatalf("expected mismatch")
	}
}

func TestVerify_MalformedIsFalse(t *testing.T) {
	cfg := testConfig()

	for _, enc := range []string{
		"",
		"not-a-hash",
		"$argon2id$v=18$m=8192,t=1,p=1$AAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAA",
		"$argon2id$v=19$m=x,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$AAAA",
		"$2b$10$short",
	} {
		if cfg.Verify("secret123", enc) {
			t.Fatalf("expected false for %q", enc)
		}
	}

	ok, err := cfg.Check("not-a-hash", "whatever")
	if err != ErrInvalidHash || ok {
		t.Fatalf("expected (false, ErrInvalidHash), got (%v, %v)", ok, err)
	}
}

func TestVerify_RejectsOversizedParams(t *testing.T) {
	cfg := testConfig()

	big := cfg
	big.Params.MemoryKiB = cfg.Params.MemoryKiB * 4
	h, err := big.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if _, err := cfg.Check(h, "secret123"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	cfg := testConfig()

	legacy, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if !cfg.Verify("secret123", string(legacy)) {
		t.Fatalf("expected bcrypt match")
	}
	if cfg.Verify("secret124", string(legacy)) {
		t.Fatalf("expected bcrypt mismatch")
	}
	if !cfg.NeedsRehash(string(legacy)) {
		t.Fatalf("bcrypt digests should be upgraded")
	}
}

func TestNeedsRehash_Argon2(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if cfg.NeedsRehash(h) {
		t.Fatalf("fresh digest should not need rehash")
	}

	stronger := cfg
	stronger.Params.Iterations = 2
	if !stronger.NeedsRehash(h) {
		t.Fatalf("weaker digest should need rehash")
	}
	if cfg.NeedsRehash("garbage") {
		t.Fatalf("unparseable digest is never flagged")
	}
}

func TestPool_HashVerify(t *testing.T) {
	var ops []string
	p := NewPool(testConfig(), WithObserver(func(op string, _ time.Duration) { ops = append(ops, op) }))

	ctx := context.Background()
	h, err := p.Hash(ctx, "secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := p.Verify(ctx, "secret123", h)
	if err != nil || !ok {
		t.Fatalf("Verify failed: ok=%v err=%v", ok, err)
	}
	ok, err = p.Verify(ctx, "secret123", "junk")
	if err != nil || ok {
		t.Fatalf("junk digest: ok=%v err=%v", ok, err)
	}
	if len(ops) != 3 || ops[0] != "hash" || ops[1] != "verify" {
		t.Fatalf("unexpected observed ops: %v", ops)
	}
}

func TestPool_CancelledWhileWaiting(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 1
	p := NewPool(cfg)

	// Hold the only slot.
	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer p.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Hash(ctx, "secret123"); err == nil {
		t.Fatalf("expected ctx error")
	}
	if _, err := p.Verify(ctx, "secret123", "x"); err == nil {
		t.Fatalf("expected ctx error")
	}
}

func TestPool_ObserverExcludesQueueing(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 1

	observed := make(chan time.Duration, 1)
	p := NewPool(cfg, WithObserver(func(_ string, d time.Duration) { observed <- d }))

	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	const held = 300 * time.Millisecond
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		_, err := p.Hash(context.Background(), "secret123")
		done <- err
	}()

	time.Sleep(held)
	p.sem.Release(1)

	if err := <-done; err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < held {
		t.Fatalf("hash returned before the slot was released: %v", elapsed)
	}
	if d := <-observed; d >= held {
		t.Fatalf("observed %v includes time spent waiting for the slot", d)
	}
}
