package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Violation names one failed strength rule. Values are stable and safe to
// return to clients.
type Violation string

const (
	ViolationRequired  Violation = "required"
	ViolationTooShort  Violation = "min_length"
	ViolationTooLong   Violation = "max_length"
	ViolationNoLetter  Violation = "letter_required"
	ViolationNoDigit   Violation = "digit_required"
	ViolationTooCommon Violation = "too_common"
)

// Strength is the outcome of CheckStrength.
type Strength struct {
	OK         bool
	Violations []Violation
}

// CheckStrength evaluates password against the policy and returns every
// violated rule. An empty password only reports ViolationRequired.
func (c Config) CheckStrength(password string) Strength {
	if password == "" {
		return Strength{Violations: []Violation{ViolationRequired}}
	}

	var out []Violation

	// Count characters (runes), not bytes.
	n := utf8.RuneCountInString(password)
	if n < c.Policy.MinLength {
		out = append(out, ViolationTooShort)
	}
	if n > c.Policy.MaxLength {
		out = append(out, ViolationTooLong)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if c.Policy.RequireLetter && !hasLetter {
		out = append(out, ViolationNoLetter)
	}
	if c.Policy.RequireDigit && !hasDigit {
		out = append(out, ViolationNoDigit)
	}

	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		out = append(out, ViolationTooCommon)
	}

	return Strength{OK: len(out) == 0, Violations: out}
}

// looksVeryWeak is minimal and conservative; it is not a zxcvbn-style estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	switch strings.ToLower(s) {
	case "password", "password1", "password123", "123456", "123456789", "qwerty", "qwerty123", "letmein1":
		return true
	}

	return false
}
