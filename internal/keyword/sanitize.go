package keyword

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxKeywordWords caps the length of a sanitized keyword.
const MaxKeywordWords = 8

var (
	glyphReplacer   = strings.NewReplacer("™", "", "®", "", "©", "", "℠", "")
	hyphenReplacer  = strings.NewReplacer("-", " ", "‐", " ", "‑", " ", "‒", " ", "–", " ", "—", " ", "―", " ", "−", " ")
	bracketSpanRe   = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]|\{[^{}]*\}`)
	productCodeRe   = regexp.MustCompile(`^[a-z]+[0-9]+[a-z]+$`)
	apostropheRunes = "'’`"
)

// Sanitize turns an arbitrary string into a lowercase, space separated,
// API-safe keyword. It returns "" when nothing usable is left.
// Sanitize is idempotent.
func (n *Normalizer) Sanitize(s string) string {
	s = strings.ToLower(s)
	s = foldAccents(s)
	s = glyphReplacer.Replace(s)
	s = stripBracketSpans(s)
	s = hyphenReplacer.Replace(s)
	s = stripPunctuation(s)

	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, tok := range tokens {
		if productCodeRe.MatchString(tok) {
			continue
		}
		kept = append(kept, tok)
	}

	kept = n.trimStopwords(kept)
	if len(kept) > MaxKeywordWords {
		kept = n.trimStopwords(kept[:MaxKeywordWords])
	}
	return strings.Join(kept, " ")
}

// IsValid reports whether a sanitized keyword is worth sending to the
// provider or keeping in a result set.
func (n *Normalizer) IsValid(kw string) bool {
	kw = strings.TrimSpace(kw)
	if utf8.RuneCountInString(kw) < 2 {
		return false
	}
	if isNumeric(kw) {
		return false
	}
	if n.meaningless.has(kw) {
		return false
	}

	tokens := strings.Fields(kw)
	if len(tokens) > 2 {
		unique := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			unique[t] = struct{}{}
		}
		if float64(len(unique))/float64(len(tokens)) < 0.5 {
			return false
		}
	}
	return true
}

// trimStopwords drops stopwords from both ends while more than one token
// remains. Interior stopwords are kept.
func (n *Normalizer) trimStopwords(tokens []string) []string {
	for len(tokens) > 1 && n.stopwords.has(tokens[0]) {
		tokens = tokens[1:]
	}
	for len(tokens) > 1 && n.stopwords.has(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

func stripBracketSpans(s string) string {
	// Nested spans are removed from the inside out.
	for {
		out := bracketSpanRe.ReplaceAllString(s, " ")
		if out == s {
			return out
		}
		s = out
	}
}

func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case strings.ContainsRune(apostropheRunes, r):
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func foldAccents(s string) string {
	// Chains carry state, so one is built per call.
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isNonSpacingMark), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isNonSpacingMark(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

func isNumeric(s string) bool {
	digits := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits = true
		case unicode.IsSpace(r), r == '.', r == ',':
		default:
			return false
		}
	}
	return digits
}
