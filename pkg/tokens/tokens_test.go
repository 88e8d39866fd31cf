package tokens

import "testing"

func TestClipRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"clipped", "hello world", 5, "hello"},
		{"zero limit", "hello", 0, ""},
		{"negative limit", "hello", -1, ""},
		{"multi-byte runes", "héllo wörld", 7, "héllo w"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClipRunes(tt.in, tt.n); got != tt.want {
				t.Errorf("ClipRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestCountNeverNegative(t *testing.T) {
	for _, s := range []string{"", "a", "some longer piece of text"} {
		if Count(s) < 0 {
			t.Errorf("Count(%q) < 0", s)
		}
	}
	if Count("") != 0 {
		t.Errorf("Count(empty) = %d, want 0", Count(""))
	}
}
