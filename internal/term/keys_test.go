package term

import "testing"

func TestKeySequenceKnownKeys(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Enter", "\n"},
		{"Tab", "\t"},
		{"Escape", "\x1b"},
		{"Ctrl+C", "\x03"},
		{"Ctrl+D", "\x04"},
		{"Up", "\x1b[A"},
		{"PageDown", "\x1b[6~"},
		{"Delete", "\x1b[3~"},
	}
	for _, tc := range cases {
		seq, ok := KeySequence(tc.name)
		if !ok {
			t.Fatalf("KeySequence(%q) not found", tc.name)
		}
		if seq != tc.want {
			t.Fatalf("KeySequence(%q) = %q, want %q", tc.name, seq, tc.want)
		}
	}
}

func TestKeySequenceUnknownKey(t *testing.T) {
	if _, ok := KeySequence("Hyper+Q"); ok {
		t.Fatalf("unknown key resolved")
	}
}
