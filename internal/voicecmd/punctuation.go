package voicecmd

import "regexp"

// punctuationWords maps spoken punctuation to literal symbols, applied in
// order to text segments only — never to text consumed as a trigger.
var punctuationWords = []struct {
	word   string
	symbol string
}{
	{"period", "."},
	{"dot", "."},
	{"comma", ","},
	{"question mark", "?"},
	{"exclamation mark", "!"},
	{"exclamation point", "!"},
	{"colon", ":"},
	{"semicolon", ";"},
	{"quote", `"`},
	{"single quote", "'"},
	{"apostrophe", "'"},
	{"open parenthesis", "("},
	{"close parenthesis", ")"},
	{"open bracket", "["},
	{"close bracket", "]"},
	{"open brace", "{"},
	{"close brace", "}"},
	{"slash", "/"},
	{"backslash", `\`},
	{"pipe", "|"},
	{"ampersand", "&"},
	{"at sign", "@"},
	{"hashtag", "#"},
	{"dollar sign", "$"},
	{"percent", "%"},
	{"caret", "^"},
	{"asterisk", "*"},
	{"plus", "+"},
	{"minus", "-"},
	{"equals", "="},
	{"underscore", "_"},
	{"tilde", "~"},
	{"backtick", "`"},
	{"less than", "<"},
	{"greater than", ">"},
	{"space", " "},
}

type punctuationRule struct {
	re     *regexp.Regexp
	symbol string
}

var punctuationRules = compilePunctuationRules()

func compilePunctuationRules() []punctuationRule {
	rules := make([]punctuationRule, 0, len(punctuationWords))
	for _, pw := range punctuationWords {
		// The pattern swallows surrounding whitespace so dictated symbols
		// glue to their neighbors: "file dot txt" becomes "file.txt".
		re := regexp.MustCompile(`(?i)\s*\b` + regexp.QuoteMeta(pw.word) + `\b\s*`)
		rules = append(rules, punctuationRule{re: re, symbol: pw.symbol})
	}
	return rules
}

// substitutePunctuation replaces spoken punctuation words with their symbols,
// whole-word and case-insensitive.
func substitutePunctuation(text string) string {
	for _, rule := range punctuationRules {
		text = rule.re.ReplaceAllLiteralString(text, rule.symbol)
	}
	return text
}
