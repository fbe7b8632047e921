package app

import (
	"strings"
	"testing"

	"authcore/cmd/internal/auth/session"
	"authcore/cmd/security/token"
)

func TestNewDigester(t *testing.T) {
	cases := []struct {
		name      string
		cfg       session.Config
		wantErr   string
		wantKeyed bool
	}{
		{name: "plain sha256 when not required", cfg: session.Config{}},
		{name: "key used even when not required", cfg: session.Config{TokenHMACKey: "dev-key"}, wantKeyed: true},
		{name: "missing key when required", cfg: session.Config{RequireTokenHMAC: true}, wantErr: token.HMACEnvKey + " is missing"},
		{name: "short key when required", cfg: session.Config{RequireTokenHMAC: true, TokenHMACKey: "short"}, wantErr: "too short"},
		{
			name:      "keyed",
			cfg:       session.Config{RequireTokenHMAC: true, TokenHMACKey: strings.Repeat("k", token.MinHMACKeyBytes)},
			wantKeyed: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := newDigester(tc.cfg)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) || !strings.Contains(err.Error(), "security policy") {
					t.Fatalf("expected security policy error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("newDigester: %v", err)
			}
			if d.Keyed() != tc.wantKeyed {
				t.Fatalf("keyed=%v want=%v", d.Keyed(), tc.wantKeyed)
			}
		})
	}
}
