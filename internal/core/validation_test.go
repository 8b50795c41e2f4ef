// internal/core/validation_test.go
package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		comment string
	}{
		{"simple", "JWT Auth", "jwt-auth", ""},
		{"already slug", "jwt-auth", "jwt-auth", ""},
		{"punctuation", "Rate limiting (Redis)!", "rate-limiting-redis", "punctuation collapses to hyphens"},
		{"consecutive separators", "a  --  b", "a-b", "runs collapse to one hyphen"},
		{"leading trailing", "  hello  ", "hello", "no leading/trailing hyphens"},
		{"unicode stripped", "café solutions", "caf-solutions", "non-ascii collapses"},
		{"digits kept", "http2 push", "http2-push", ""},
		{"empty", "", "", "empty in, empty out"},
		{"only separators", "---", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Slugify(tc.input)
			if got != tc.want {
				t.Errorf("Slugify(%q) = %q; want %q. %s", tc.input, got, tc.want, tc.comment)
			}
		})
	}
}

func TestUniqueSlug(t *testing.T) {
	if got := UniqueSlug("jwt-auth", false); got != "jwt-auth" {
		t.Errorf("UniqueSlug untaken = %q; want unchanged", got)
	}
	got := UniqueSlug("jwt-auth", true)
	if !strings.HasPrefix(got, "jwt-auth-") || got == "jwt-auth-" {
		t.Errorf("UniqueSlug taken = %q; want timestamp suffix", got)
	}
	if got := UniqueSlug("", false); got != "solved-problem" {
		t.Errorf("UniqueSlug empty = %q; want fallback slug", got)
	}
}

func TestParseFilterDate(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantNil bool
		wantErr bool
	}{
		{"empty means unset", "", true, false},
		{"bare date", "2025-01-15", false, false},
		{"rfc3339", "2025-01-15T08:30:00Z", false, false},
		{"garbage", "not-a-date", false, true},
		{"partial", "2025-13-99", false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFilterDate("updated_after", tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseFilterDate(%q): expected error, got nil", tc.input)
				}
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("ParseFilterDate(%q): error %v is not ErrInvalidInput", tc.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFilterDate(%q): unexpected error %v", tc.input, err)
			}
			if tc.wantNil != (got == nil) {
				t.Errorf("ParseFilterDate(%q): got %v; wantNil=%v", tc.input, got, tc.wantNil)
			}
		})
	}

	t.Run("bare date parses to midnight UTC", func(t *testing.T) {
		got, err := ParseFilterDate("updated_before", "2025-06-01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v; want %v", got, want)
		}
	})
}
