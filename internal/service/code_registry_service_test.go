package service

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateReferralCodeFormat(t *testing.T) {
	s := setupReferralTestStack(t, "code_registry_format")

	code, err := s.registry.Generate(1)
	if err != nil {
		t.Fatalf("generate code failed: %v", err)
	}
	if !strings.HasPrefix(code, "TAL") {
		t.Fatalf("expected TAL prefix, got %s", code)
	}
	if len(code) != 9 {
		t.Fatalf("expected 9 chars, got %d (%s)", len(code), code)
	}
	if !s.registry.ValidateFormat(code) {
		t.Fatalf("generated code %s failed format validation", code)
	}
	for _, ch := range code[3:] {
		if strings.ContainsRune("0O1I", ch) {
			t.Fatalf("code %s contains ambiguous character %c", code, ch)
		}
	}
}

func TestGenerateReferralCodePersistsOwnership(t *testing.T) {
	s := setupReferralTestStack(t, "code_registry_owner")

	codeA, err := s.registry.Generate(11)
	if err != nil {
		t.Fatalf("generate code A failed: %v", err)
	}
	codeB, err := s.registry.Generate(22)
	if err != nil {
		t.Fatalf("generate code B failed: %v", err)
	}
	if codeA == codeB {
		t.Fatalf("expected distinct codes, got %s twice", codeA)
	}

	row, err := s.registry.Resolve(strings.ToLower(codeA))
	if err != nil {
		t.Fatalf("resolve code failed: %v", err)
	}
	if row.OwnerID != 11 {
		t.Fatalf("expected owner 11, got %d", row.OwnerID)
	}
}

func TestValidateFormatRejectsMalformedCodes(t *testing.T) {
	s := setupReferralTestStack(t, "code_registry_validate")

	cases := []struct {
		code  string
		valid bool
	}{
		{"TALABCDEF", true},
		{"talabcdef", true},
		{"  TALABCDEF  ", true},
		{"ABCABCDEF", false},
		{"TALABCDE", false},
		{"TALABCDEFG", false},
		{"TALABC0EF", false},
		{"TALABCO1I", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := s.registry.ValidateFormat(tc.code); got != tc.valid {
			t.Fatalf("ValidateFormat(%q) = %v, expected %v", tc.code, got, tc.valid)
		}
	}
}

func TestResolveUnknownCode(t *testing.T) {
	s := setupReferralTestStack(t, "code_registry_resolve")

	if _, err := s.registry.Resolve("TALZZZZZZ"); !errors.Is(err, ErrInvalidReferralCode) {
		t.Fatalf("expected ErrInvalidReferralCode, got %v", err)
	}
	if _, err := s.registry.Resolve("   "); !errors.Is(err, ErrInvalidReferralCode) {
		t.Fatalf("expected ErrInvalidReferralCode for blank code, got %v", err)
	}
}
