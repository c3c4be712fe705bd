package keyword

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
)

// Kind is the classification of a raw research input.
type Kind string

const (
	KindURL     Kind = "url"
	KindBranded Kind = "branded"
	KindTopic   Kind = "topic"
)

// Seed is the outcome of seed extraction.
type Seed struct {
	Input  string `json:"input"`
	Kind   Kind   `json:"kind"`
	Phrase string `json:"phrase"`
}

var (
	bracketedTextRe  = regexp.MustCompile(`[(\[{][^)\]}]*[)\]}]`)
	capitalizedRunRe = regexp.MustCompile(`\b\p{Lu}[\p{Ll}\d]+\s+\p{Lu}[\p{Ll}\d]+`)
	listNumberingRe  = regexp.MustCompile(`^\s*(?:\d+[.)]|#\d+|[-*•])\s+`)
	longDigitRunRe   = regexp.MustCompile(`\d{5,}`)
	modelCodeRe      = regexp.MustCompile(`^(?:[a-z]+\d+|\d+[a-z]+)$`)
	pageExtensionRe  = regexp.MustCompile(`(?i)\.(?:html?|php|aspx?|jsp)$`)
	slugSeparators   = strings.NewReplacer("-", " ", "_", " ", "+", " ", ".", " ")
)

// Classify decides whether input is a URL, a branded product name or a free
// form topic.
func (n *Normalizer) Classify(input string) Kind {
	if _, ok := parseAbsoluteURL(input); ok {
		return KindURL
	}
	if n.IsBranded(input) {
		return KindBranded
	}
	return KindTopic
}

// Extract classifies input and derives its seed phrase. URL handles and
// branded names are reduced to a category; topics are only cleaned up.
func (n *Normalizer) Extract(input string) Seed {
	input = strings.TrimSpace(input)
	seed := Seed{Input: input, Kind: n.Classify(input)}

	switch seed.Kind {
	case KindURL:
		u, _ := parseAbsoluteURL(input)
		seed.Phrase = n.ToCategory(urlHandle(u))
	case KindBranded:
		seed.Phrase = n.ToCategory(input)
	default:
		seed.Phrase = PreservePhrase(input)
	}
	return seed
}

// IsBranded reports whether s looks like a specific commercial product name
// rather than a generic search phrase. Any one heuristic is enough.
func (n *Normalizer) IsBranded(s string) bool {
	for _, w := range lowerWords(s) {
		if n.quality.has(w) {
			return true
		}
	}
	if strings.ContainsAny(s, "™®©℠") {
		return true
	}
	for _, tok := range strings.FieldsFunc(s, notAlnum) {
		if len(tok) >= 4 && hasLetter(tok) && hasDigit(tok) {
			return true
		}
	}
	if bracketedTextRe.MatchString(s) {
		return true
	}
	if capitalizedRunRe.MatchString(s) {
		return true
	}
	return len(strings.Fields(s)) > 4
}

// ToCategory reduces a noisy product phrase to a generic category phrase.
// The result is never empty.
func (n *Normalizer) ToCategory(phrase string) string {
	s := strings.ToLower(phrase)
	s = glyphReplacer.Replace(s)
	s = stripBracketSpans(s)
	s = longDigitRunRe.ReplaceAllString(s, " ")

	var tokens []string
	for _, tok := range strings.FieldsFunc(s, notAlnum) {
		switch {
		case len(tok) <= 2:
		case modelCodeRe.MatchString(tok):
		case isNumeric(tok):
		case n.brand.has(tok):
		default:
			tokens = append(tokens, tok)
		}
	}

	if category, ok := n.matchCategory(tokens); ok {
		return category
	}

	meaningful := tokens[:0]
	for _, tok := range tokens {
		if !n.fillers.has(tok) {
			meaningful = append(meaningful, tok)
		}
	}

	switch len(meaningful) {
	case 0:
		return n.fallback(phrase)
	case 1:
		return meaningful[0] + " system"
	default:
		return strings.Join(meaningful[len(meaningful)-2:], " ")
	}
}

func (n *Normalizer) matchCategory(tokens []string) (string, bool) {
	present := newWordSet(tokens)
	for _, rule := range n.tables.Categories {
		if len(rule.Terms) == 0 {
			continue
		}
		matched := true
		for _, term := range rule.Terms {
			if !present.has(term) {
				matched = false
				break
			}
		}
		if matched {
			return rule.Category, true
		}
	}
	return "", false
}

func (n *Normalizer) fallback(phrase string) string {
	if n.tables.FallbackMode == FallbackNeutral {
		if s := n.Sanitize(phrase); n.IsValid(s) {
			return s
		}
	}
	return n.tables.FallbackPhrase
}

// PreservePhrase lightly cleans a manual topic without dropping interior
// words.
func PreservePhrase(s string) string {
	s = glyphReplacer.Replace(s)
	s = stripBracketSpans(s)
	s = listNumberingRe.ReplaceAllString(s, "")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func parseAbsoluteURL(s string) (*url.URL, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " \t\n") {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, false
	}
	return u, true
}

// urlHandle returns the last non-empty path segment of u with separator
// punctuation turned into spaces. Bare hosts yield their leading label.
func urlHandle(u *url.URL) string {
	p := strings.TrimRight(u.EscapedPath(), "/")
	segment := path.Base(p)
	if segment == "." || segment == "/" || segment == "" {
		return hostHandle(u.Hostname())
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	segment = pageExtensionRe.ReplaceAllString(segment, "")
	return strings.Join(strings.Fields(slugSeparators.Replace(segment)), " ")
}

func hostHandle(host string) string {
	labels := strings.Split(host, ".")
	for _, l := range labels {
		switch l {
		case "www", "shop", "store", "m":
			continue
		}
		return l
	}
	return ""
}

func lowerWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), notAlnum)
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
