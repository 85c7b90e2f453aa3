package shared

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestLogger(t *testing.T) {
	t.Run("NewLogger writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		WithLogger(logger, "component", "test").Info("hello")

		if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "component=test") {
			t.Errorf("unexpected log output %q", buf.String())
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		tests := []struct {
			in   string
			want log.Level
		}{
			{"debug", log.DebugLevel},
			{" WARN ", log.WarnLevel},
			{"error", log.ErrorLevel},
			{"nonsense", log.InfoLevel},
			{"", log.InfoLevel},
		}
		for _, tt := range tests {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	})
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected a uuid, got %q", id)
	}
	if id == GenerateID() {
		t.Error("expected unique ids")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncated", 5, "trun…"},
		{"x", 0, "x"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestDates(t *testing.T) {
	t.Run("ParseFlexibleDate", func(t *testing.T) {
		want := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.Local)
		for _, in := range []string{"3/7/2025", "03/07/2025", "March 7, 2025", "March 7 2025", "Mar 7, 2025", "2025-03-07", "  2025-03-07 "} {
			got, err := ParseFlexibleDate(in)
			if err != nil {
				t.Errorf("ParseFlexibleDate(%q) failed: %v", in, err)
				continue
			}
			if !got.Equal(want) {
				t.Errorf("ParseFlexibleDate(%q) = %v, want %v", in, got, want)
			}
		}

		if _, err := ParseFlexibleDate("next tuesday"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ParseTimestamp", func(t *testing.T) {
		got, err := ParseTimestamp("2025-03-07T10:11:12.123456")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Hour() != 10 || got.Day() != 7 {
			t.Errorf("unexpected time %v", got)
		}

		zero, err := ParseTimestamp("")
		if err != nil || !zero.IsZero() {
			t.Errorf("expected zero time for empty input, got %v %v", zero, err)
		}
	})

	t.Run("FormatDate", func(t *testing.T) {
		if got := FormatDate(time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)); got != "2025-01-02" {
			t.Errorf("FormatDate = %q", got)
		}
	})

	t.Run("FormatTimestamp passes through garbage", func(t *testing.T) {
		if got := FormatTimestamp("yesterday"); got != "yesterday" {
			t.Errorf("FormatTimestamp = %q", got)
		}
	})
}

func TestValidation(t *testing.T) {
	t.Run("ValidateLogin", func(t *testing.T) {
		tests := []struct {
			name     string
			email    string
			password string
			fields   []string
		}{
			{"valid", "a@b.co", "secret", nil},
			{"missing email", "", "secret", []string{"email"}},
			{"malformed email", "not-an-email", "secret", []string{"email"}},
			{"missing password", "a@b.co", "", []string{"password"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assertFields(t, ValidateLogin(tt.email, tt.password), tt.fields)
			})
		}
	})

	t.Run("ValidateSignup", func(t *testing.T) {
		assertFields(t, ValidateSignup("Ana", "ana@example.com", "123456"), nil)
		assertFields(t, ValidateSignup(" ", "ana@example.com", "12345"), []string{"name", "password"})
	})

	t.Run("ValidatePasswordChange", func(t *testing.T) {
		tests := []struct {
			name    string
			current string
			next    string
			confirm string
			fields  []string
		}{
			{"valid", "oldpass", "newpass", "newpass", nil},
			{"missing current", "", "newpass", "newpass", []string{"current_password"}},
			{"too short", "oldpass", "abc", "abc", []string{"new_password"}},
			{"mismatch", "oldpass", "newpass", "newpasz", []string{"confirm_password"}},
			{"unchanged", "samepass", "samepass", "samepass", []string{"new_password"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assertFields(t, ValidatePasswordChange(tt.current, tt.next, tt.confirm), tt.fields)
			})
		}
	})

	t.Run("ValidateName", func(t *testing.T) {
		assertFields(t, ValidateName("prawn_name", "Bubbles"), nil)
		assertFields(t, ValidateName("prawn_name", "   "), []string{"prawn_name"})
	})
}

func assertFields(t *testing.T, err error, fields []string) {
	t.Helper()
	if len(fields) == 0 {
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		return
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("validation errors should wrap ErrInvalidInput")
	}
	if len(verr.Fields) != len(fields) {
		t.Errorf("expected fields %v, got %v", fields, verr.Fields)
	}
	for _, f := range fields {
		if !verr.Has(f) {
			t.Errorf("expected error on %s, got %v", f, verr.Fields)
		}
	}
}

func TestBrowserCommand(t *testing.T) {
	t.Run("builds the platform opener", func(t *testing.T) {
		tests := []struct {
			goos string
			want []string
		}{
			{"darwin", []string{"open", "http://pi.local:5000/api/camera/stream"}},
			{"linux", []string{"xdg-open", "http://pi.local:5000/api/camera/stream"}},
			{"windows", []string{"rundll32", "url.dll,FileProtocolHandler", "http://pi.local:5000/api/camera/stream"}},
		}

		for _, tt := range tests {
			cmd, err := browserCommand(tt.goos, "http://pi.local:5000/api/camera/stream")
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.goos, err)
			}
			if strings.Join(cmd.Args, " ") != strings.Join(tt.want, " ") {
				t.Errorf("%s: got %v, want %v", tt.goos, cmd.Args, tt.want)
			}
		}
	})

	t.Run("rejects non-http urls", func(t *testing.T) {
		for _, raw := range []string{"file:///etc/passwd", "javascript:alert(1)", "/api/camera/stream", ""} {
			if _, err := browserCommand("linux", raw); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("%q: expected ErrInvalidArgument, got %v", raw, err)
			}
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		if _, err := browserCommand("plan9", "https://example.com"); err == nil {
			t.Error("expected an error for plan9")
		}
	})
}
