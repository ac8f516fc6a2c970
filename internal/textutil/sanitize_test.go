package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Super Mario 64 (USA).z64", "Super Mario 64 (USA).z64"},
		{"Zelda: Link's Awakening?", "Zelda- Link's Awakening"},
		{"a/b\\c", "a-b-c"},
		{"   ", ""},
		{`What "is" <this>|.zip`, "What is this-.zip"},
		{"Pokémon Rubí.gba", "Pokemon Rubi.gba"},
		{".", ""},
		{"..", ""},
		{".hidden.zip", "hidden.zip"},
		{"../../etc/passwd", "-..-etc-passwd"},
		{"tab\there\x00.nes", "tabhere.nes"},
		{"trailing dots...", "trailing dots"},
	}
	for _, tt := range tests {
		if got := SafeFileName(tt.in); got != tt.want {
			t.Errorf("SafeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeFileNameLimitsLength(t *testing.T) {
	long := strings.Repeat("ü", 300) + ".zip"
	got := SafeFileName(long)
	if len(got) > MaxFileNameBytes {
		t.Fatalf("length %d exceeds %d", len(got), MaxFileNameBytes)
	}
	if !strings.HasSuffix(got, ".zip") {
		t.Fatalf("extension lost: %q", got[len(got)-8:])
	}

	wide := strings.Repeat("世", 100) + ".7z"
	got = SafeFileName(wide)
	if len(got) > MaxFileNameBytes || !utf8.ValidString(got) || !strings.HasSuffix(got, ".7z") {
		t.Fatalf("bad clip of multibyte name: %d bytes, valid=%v", len(got), utf8.ValidString(got))
	}
}

func TestPathToken(t *testing.T) {
	tests := map[string]string{
		"snes":          "snes",
		"N64":           "n64",
		"Game Boy":      "game_boy",
		"../etc":        "etc",
		"":              "unknown",
		"???":           "unknown",
		"Pokémon Ruby":  "pokemon_ruby",
		"super-metroid": "super-metroid",
		"a  --  b":      "a_--_b",
	}
	for in, want := range tests {
		if got := PathToken(in); got != want {
			t.Errorf("PathToken(%q) = %q, want %q", in, got, want)
		}
	}
	if got := PathToken(strings.Repeat("x", 100)); len(got) != maxTokenBytes {
		t.Errorf("PathToken length = %d, want %d", len(got), maxTokenBytes)
	}
}
