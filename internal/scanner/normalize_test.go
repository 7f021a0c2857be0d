package scanner

import "testing"

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "Bare code", raw: "abc123", want: "abc123"},
		{name: "Bare code with whitespace", raw: "  abc123\r\n", want: "abc123"},
		{name: "Profile URL", raw: "https://church.example.org/profile/abc123", want: "abc123"},
		{name: "Profile URL with query", raw: "https://church.example.org/profile/abc123?ref=card", want: "abc123"},
		{name: "Profile URL with fragment", raw: "https://church.example.org/profile/abc123#top", want: "abc123"},
		{name: "Profile URL with trailing slash", raw: "https://church.example.org/profile/abc123/", want: "abc123"},
		{name: "Relative profile path", raw: "/profile/abc123", want: "abc123"},
		{name: "Other URL uses last segment", raw: "https://church.example.org/members/abc123", want: "abc123"},
		{name: "Empty payload", raw: "   ", want: ""},
		{name: "Profile marker without code", raw: "https://church.example.org/profile/", want: ""},
		{name: "URL without path", raw: "https://church.example.org", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCode(tt.raw); got != tt.want {
				t.Errorf("NormalizeCode(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
