package rooms

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClampUTF8(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short stays", "hello", 500, "hello"},
		{"ascii cut", strings.Repeat("a", 10), 4, "aaaa"},
		{"exact fit", "héllo", 6, "héllo"},
		{"rune straddles boundary", "aaaé", 4, "aaa"},
		{"multibyte run", strings.Repeat("é", 10), 5, "éé"},
		{"emoji straddles boundary", "ab\U0001F600", 4, "ab"},
	}
	for _, tc := range cases {
		got := clampUTF8(tc.in, tc.n)
		if got != tc.want {
			t.Fatalf("%s: clampUTF8(%q, %d) = %q, want %q", tc.name, tc.in, tc.n, got, tc.want)
		}
		if len(got) > tc.n {
			t.Fatalf("%s: result %q exceeds %d bytes", tc.name, got, tc.n)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("%s: result %q is not valid UTF-8", tc.name, got)
		}
	}
}
