package voicecmd

import "testing"

func TestSubstitutePunctuationGluesSymbols(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"open file dot txt", "open file.txt"},
		{"hello comma world", "hello,world"},
		{"cat file pipe grep error", "cat file|grep error"},
		{"Dot", "."},
		{"no punctuation here", "no punctuation here"},
	}
	for _, tc := range cases {
		if got := substitutePunctuation(tc.in); got != tc.want {
			t.Fatalf("substitutePunctuation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSubstitutePunctuationWholeWordOnly(t *testing.T) {
	if got := substitutePunctuation("dots are fine"); got != "dots are fine" {
		t.Fatalf("partial word substituted: %q", got)
	}
}
