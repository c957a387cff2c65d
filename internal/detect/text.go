package detect

import (
	"strings"
	"unicode"
)

// SplitSentences breaks content at sentence punctuation followed by whitespace (or end
// of input) and at line breaks, so "0.85" and "example.com" stay intact.
func SplitSentences(content string) []string {
	var out []string
	runes := []rune(content)
	start := 0

	flush := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			out = append(out, s)
		}
		start = end + 1
	}

	for i, r := range runes {
		switch r {
		case '\n':
			flush(i)
		case '.', '!', '?':
			if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
				flush(i)
			}
		}
	}
	if start < len(runes) {
		flush(len(runes))
	}
	return out
}

// tokenize lowercases s and returns its words. Apostrophes stay inside words so
// "isn't" is one token.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func indexPhrase(tokens, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return -1
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j := range phrase {
			if tokens[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func removePhrase(tokens, phrase []string) []string {
	out := append([]string(nil), tokens...)
	for {
		i := indexPhrase(out, phrase)
		if i < 0 {
			return out
		}
		out = append(out[:i], out[i+len(phrase):]...)
	}
}

// hasTerm reports whether tokens contain term once every occurrence of a longer
// opposite term that embeds it ("must" inside "must not") is removed.
func hasTerm(tokens []string, term, opposite string) bool {
	t := tokenize(term)
	o := tokenize(opposite)
	if len(o) > len(t) && indexPhrase(o, t) >= 0 {
		tokens = removePhrase(tokens, o)
	}
	return indexPhrase(tokens, t) >= 0
}

func wordSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
