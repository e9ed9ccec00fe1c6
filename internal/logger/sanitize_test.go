package logger

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{name: "empty", input: "", maxLength: 10, want: ""},
		{name: "plain", input: "fever", maxLength: 10, want: "fever"},
		{name: "strips control characters", input: "line\x1b[31mred\x00", maxLength: 50, want: "line[31mred"},
		{name: "keeps newlines", input: "a\nb", maxLength: 10, want: "a\nb"},
		{name: "truncates", input: "abcdefgh", maxLength: 4, want: "abcd..."},
		{name: "default length", input: "abc", maxLength: 0, want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeString(tt.input, tt.maxLength); got != tt.want {
				t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.input, tt.maxLength, got, tt.want)
			}
		})
	}
}

func TestSanitizeString_KeepsRunesWhole(t *testing.T) {
	t.Parallel()

	got := SanitizeString(strings.Repeat("é", 10), 5)
	if !utf8.ValidString(got) {
		t.Errorf("Truncation split a rune: %q", got)
	}
	if got != "éé..." {
		t.Errorf("got %q, want %q", got, "éé...")
	}
}

func TestSanitizeHelpers(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q", got)
	}
	if got := SanitizeError(errors.New("boom\x07")); got != "boom" {
		t.Errorf("SanitizeError = %q", got)
	}
	if got := SanitizeUserText(strings.Repeat("x", MaxUserTextLength+1)); len(got) != MaxUserTextLength+3 {
		t.Errorf("SanitizeUserText length = %d", len(got))
	}
	if got := SanitizeKey("smart-health:user-interactions"); got != "smart-health:user-interactions" {
		t.Errorf("SanitizeKey = %q", got)
	}
	if got := SanitizePath(strings.Repeat("/a", MaxPathLength)); !strings.HasSuffix(got, "...") {
		t.Errorf("SanitizePath did not truncate: %d bytes", len(got))
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, opts := range []Options{
		{Service: "smart-health-api"},
		{Debug: true, Development: true},
	} {
		l, err := New(opts)
		if err != nil {
			t.Fatalf("New(%+v): %v", opts, err)
		}
		if l.Core().Enabled(-1) != opts.Debug {
			t.Errorf("New(%+v) debug enabled = %v", opts, l.Core().Enabled(-1))
		}
	}
}
