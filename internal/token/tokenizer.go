// Package token provides the shared tokenizer used by the keyword index
// and the token-window chunking strategy. Both must agree on token
// boundaries so that chunk offsets and term statistics stay consistent.
package token

import (
	"strings"
	"unicode"
)

// Token is a single lowercased term with its byte offsets in the source text.
type Token struct {
	Text  string
	Start int // byte offset of the first byte, inclusive
	End   int // byte offset past the last byte, exclusive
}

// Tokenize splits text into lowercase tokens on non-alphanumeric boundaries.
// Empty tokens are dropped. Offsets refer to the original (pre-lowercase) text.
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, Token{
				Text:  strings.ToLower(text[start:i]),
				Start: start,
				End:   i,
			})
			start = -1
		}
	}

	if start >= 0 {
		tokens = append(tokens, Token{
			Text:  strings.ToLower(text[start:]),
			Start: start,
			End:   len(text),
		})
	}

	return tokens
}

// Terms returns just the lowercased token texts, nil when there are none.
func Terms(text string) []string {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Text
	}
	return terms
}

// Count returns the number of tokens in text without materializing them all.
func Count(text string) int {
	n := 0
	inToken := false
	for _, r := range text {
		alnum := unicode.IsLetter(r) || unicode.IsDigit(r)
		if alnum && !inToken {
			n++
		}
		inToken = alnum
	}
	return n
}
