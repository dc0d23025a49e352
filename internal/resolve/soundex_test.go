// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package resolve

import "testing"

func TestSoundex(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"Ashcraft", "A261"}, // H and W do not separate coded letters
		{"Ashcroft", "A261"},
		{"Tymczak", "T522"},
		{"Pfister", "P236"},
		{"Honeyman", "H555"},
		{"Wood", "W300"},
		{"Wud", "W300"},
		{"", ""},
		{"123", ""},
	}
	for _, tt := range tests {
		if got := soundex(tt.in); got != tt.want {
			t.Errorf("soundex(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhoneticKey(t *testing.T) {
	if got, want := phoneticKey("Wood Frog"), phoneticKey("Wud Frog"); got != want {
		t.Errorf("keys differ: %q vs %q", got, want)
	}
	if phoneticKey("Green Frog") == phoneticKey("Gray Treefrog") {
		t.Error("distinct names should not share a phonetic key")
	}
	if phoneticKey("  ") != "" {
		t.Errorf("blank input should produce empty key, got %q", phoneticKey("  "))
	}
}
