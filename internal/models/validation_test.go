package models

import (
	"errors"
	"testing"
)

func TestValidateDateRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr error
	}{
		{"same day", "2026-01-01", "2026-01-01", nil},
		{"week", "2026-01-04", "2026-01-10", nil},
		{"across year", "2025-12-28", "2026-01-03", nil},
		{"leap day", "2024-02-29", "2024-03-01", nil},
		{"reversed", "2026-01-10", "2026-01-01", ErrRangeOrder},
		{"no padding", "2026-1-01", "2026-01-10", ErrInvalidDate},
		{"timestamp", "2026-01-01T00:00:00Z", "2026-01-10", ErrInvalidDate},
		{"slashes", "2026-01-01", "2026/01/10", ErrInvalidDate},
		{"empty start", "", "2026-01-10", ErrInvalidDate},
		{"empty end", "2026-01-01", "", ErrInvalidDate},
		{"not a day", "2026-02-30", "2026-03-01", ErrInvalidDate},
		{"month 13", "2026-01-01", "2026-13-01", ErrInvalidDate},
		{"trailing space", "2026-01-01 ", "2026-01-10", ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDateRange(tt.start, tt.end)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateDateRange(%q, %q) = %v, want nil", tt.start, tt.end, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateDateRange(%q, %q) = %v, want %v", tt.start, tt.end, err, tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestRequireText(t *testing.T) {
	if err := RequireText("apiKey", "sk-ant-123"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, v := range []string{"", "   ", "\t\n"} {
		if err := RequireText("apiKey", v); !errors.Is(err, ErrMissingArgument) {
			t.Errorf("RequireText(%q) = %v, want ErrMissingArgument", v, err)
		}
	}
}

func TestHashAPIKey(t *testing.T) {
	hash, prefix := HashAPIKey("sk-ant-api-key-123")
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if prefix != "sk-ant-a" {
		t.Errorf("prefix = %q, want sk-ant-a", prefix)
	}

	again, _ := HashAPIKey("sk-ant-api-key-123")
	if again != hash {
		t.Error("hash is not deterministic")
	}

	_, short := HashAPIKey("abc")
	if short != "abc" {
		t.Errorf("short prefix = %q, want abc", short)
	}
}

func TestProviderLabel(t *testing.T) {
	name := "Work"
	empty := ""

	tests := []struct {
		name string
		p    Provider
		want string
	}{
		{"display name", Provider{APIKeyPrefix: "sk-ant-a", DisplayName: &name}, "Work"},
		{"nil name", Provider{APIKeyPrefix: "sk-ant-a"}, "sk-ant-a..."},
		{"empty name", Provider{APIKeyPrefix: "sk-ant-a", DisplayName: &empty}, "sk-ant-a..."},
	}
	for _, tt := range tests {
		if got := tt.p.Label(); got != tt.want {
			t.Errorf("%s: Label() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
