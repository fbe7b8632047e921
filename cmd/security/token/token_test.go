package token

import (
	"errors"
	"strings"
	"testing"
)

func TestDigest_SHAFallback(t *testing.T) {
	d := NewDigester(nil)
	if d.Keyed() {
		t.Fatalf("expected unkeyed digester")
	}

	got := d.Digest("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestDigest_HMAC(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	d := NewDigester(key)
	if !d.Keyed() {
		t.Fatalf("expected keyed digester")
	}

	got := d.Digest("abc")
	if got != HashHMACSHA256Hex("abc", key) {
		t.Fatalf("digest mismatch")
	}
	if got == HashSHA256Hex("abc") {
		t.Fatalf("HMAC digest must differ from plain SHA-256")
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(got))
	}

	// The digester owns its copy of the key.
	key[0] = 'x'
	if d.Digest("abc") != got {
		t.Fatalf("digest changed after caller mutated key")
	}
}

func TestParseDigester(t *testing.T) {
	if _, err := ParseDigester("", true); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}
	if _, err := ParseDigester("   ", true); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("blank key: expected ErrHMACKeyMissing, got %v", err)
	}
	d, err := ParseDigester("", false)
	if err != nil || d.Keyed() {
		t.Fatalf("expected unkeyed fallback, got keyed=%v err=%v", d.Keyed(), err)
	}

	if _, err := ParseDigester("short", true); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}
	d, err = ParseDigester("short", false)
	if err != nil || !d.Keyed() {
		t.Fatalf("short key without enforcement should still key the digest, got keyed=%v err=%v", d.Keyed(), err)
	}

	key := strings.Repeat("s", 40)
	d, err = ParseDigester(" "+key+" ", true)
	if err != nil || !d.Keyed() {
		t.Fatalf("expected keyed digester, got keyed=%v err=%v", d.Keyed(), err)
	}
	if d.Digest("abc") != HashHMACSHA256Hex("abc", []byte(key)) {
		t.Fatalf("surrounding spaces must not be part of the key")
	}
}
