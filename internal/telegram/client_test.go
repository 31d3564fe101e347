package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitByBytes(t *testing.T) {
	text := strings.Repeat("ñ", 5) // 10 bytes
	parts := splitByBytes(text, 4)
	if len(parts) != 3 {
		t.Fatalf("splitByBytes() = %q, want 3 parts", parts)
	}
	for _, p := range parts {
		if len(p) > 4 || !utf8.ValidString(p) {
			t.Fatalf("bad part %q", p)
		}
	}
	if strings.Join(parts, "") != text {
		t.Fatal("parts do not rejoin to the input")
	}

	if got := splitByBytes("hola", 4096); len(got) != 1 || got[0] != "hola" {
		t.Fatalf("splitByBytes(short) = %q", got)
	}
}

func TestTruncateByBytes(t *testing.T) {
	if got := truncateByBytes("añadir", 3); got != "añ" {
		t.Fatalf("truncateByBytes() = %q, want %q", got, "añ")
	}
	if got := truncateByBytes("abc", 10); got != "abc" {
		t.Fatalf("truncateByBytes() = %q", got)
	}
}
