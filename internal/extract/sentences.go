package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/wikiedits/internal/model"
)

// Sentence is a run of tokens between two sentence boundaries
type Sentence []model.DiffToken

// Text joins the token texts, markers included
func (s Sentence) Text() string {
	var b strings.Builder
	for _, t := range s {
		b.WriteString(t.Text)
	}
	return b.String()
}

// HasMarker reports whether any token is a delete or add marker
func (s Sentence) HasMarker() bool {
	for _, t := range s {
		if t.IsMarker() {
			return true
		}
	}
	return false
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "st": true,
	"jr": true, "sr": true, "vs": true, "etc": true, "e.g": true, "i.e": true,
	"no": true, "vol": true, "fig": true, "approx": true, "inc": true, "ltd": true,
	"co": true, "u.s": true, "u.k": true, "ca": true, "cf": true, "al": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
}

// SplitSentences splits a token sequence into sentences.
// Boundaries are only found in unchanged text: after '.', '!' or '?' (plus closing quotes)
// followed by whitespace and an upper-case letter, digit, quote or bracket, and at every blank line.
// Marker tokens are never split.
func SplitSentences(toks []model.DiffToken) []Sentence {
	var out []Sentence
	var cur Sentence

	flush := func() {
		if hasContent(cur) {
			out = append(out, cur)
		}
		cur = nil
	}
	add := func(kind model.TokenKind, text string) {
		if text == "" {
			return
		}
		if n := len(cur); n > 0 && kind == model.TokenText && cur[n-1].Kind == model.TokenText {
			cur[n-1].Text += text
			return
		}
		cur = append(cur, model.DiffToken{Kind: kind, Text: text})
	}

	for ti, tok := range toks {
		if tok.IsMarker() {
			cur = append(cur, tok)
			continue
		}

		text := tok.Text
		start := 0
		for i := 0; i < len(text); i++ {
			if text[i] == '\n' && i+1 < len(text) && text[i+1] == '\n' {
				add(model.TokenText, text[start:i])
				flush()
				i++
				start = i + 1
				continue
			}
			if text[i] != '.' && text[i] != '!' && text[i] != '?' {
				continue
			}
			if end, ok := sentenceEnd(toks, ti, text, start, i); ok {
				add(model.TokenText, text[start:end])
				flush()
				start = end
				i = end - 1
			}
		}
		add(model.TokenText, text[start:])
	}
	flush()
	return out
}

// sentenceEnd decides whether the terminator at text[i] ends a sentence and returns the cut offset
func sentenceEnd(toks []model.DiffToken, ti int, text string, start, i int) (int, bool) {
	end := i + 1
	for end < len(text) && strings.IndexByte(`"')]`, text[end]) >= 0 {
		end++
	}
	if end >= len(text) || !isSpace(text[end]) {
		return 0, false
	}
	if text[i] == '.' && isAbbreviation(text[start:i]) {
		return 0, false
	}

	r, ok := nextRune(toks, ti, text[end:])
	if !ok {
		return end, true
	}
	return end, unicode.IsUpper(r) || unicode.IsDigit(r) || strings.ContainsRune(`"'([“‘`, r)
}

// nextRune finds the first non-space rune after rest, looking into following tokens
func nextRune(toks []model.DiffToken, ti int, rest string) (rune, bool) {
	if s := strings.TrimLeftFunc(rest, unicode.IsSpace); s != "" {
		r, _ := utf8.DecodeRuneInString(s)
		return r, true
	}
	for _, t := range toks[ti+1:] {
		if s := strings.TrimLeftFunc(t.Text, unicode.IsSpace); s != "" {
			r, _ := utf8.DecodeRuneInString(s)
			return r, true
		}
	}
	return 0, false
}

// isAbbreviation checks the word before a period against known abbreviations and single initials
func isAbbreviation(before string) bool {
	j := len(before)
	for j > 0 && (isLetter(before[j-1]) || before[j-1] == '.') {
		j--
	}
	word := strings.ToLower(before[j:])
	if word == "" {
		return false
	}
	if len(word) == 1 {
		return true
	}
	return abbreviations[word]
}

func hasContent(s Sentence) bool {
	for _, t := range s {
		if t.IsMarker() || strings.TrimSpace(t.Text) != "" {
			return true
		}
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
