package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Jan de Vries", "Jan de Vries"},
		{"<b>Jan</b>  de\n Vries", "Jan de Vries"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;", "alert(1)"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Fatalf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("Müller & Zonen B.V.", 6); got != "Müller" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if got := Truncate("short", 50); got != "short" {
		t.Fatalf("expected untouched, got %q", got)
	}
}
