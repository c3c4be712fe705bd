package analyzer

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// maxSentences caps the example sentences kept per keyword.
const maxSentences = 3

// Match reports how often a keyword phrase occurs in a page.
type Match struct {
	Keyword   string   `json:"keyword"`
	Count     int      `json:"count"`
	Sentences []string `json:"sentences,omitempty"`
}

// Found reports whether the keyword occurs at least once.
func (m Match) Found() bool { return m.Count > 0 }

// PageText returns the text a reader or crawler sees: the title, the meta
// description and the body without scripts or styles.
func PageText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script, style, noscript, template, svg").Remove()

	parts := []string{
		doc.Find("title").First().Text(),
		doc.Find(`meta[name="description"]`).First().AttrOr("content", ""),
	}
	// Block elements end a sentence even without punctuation.
	doc.Find("body").Find("h1, h2, h3, h4, h5, h6, p, li, td, th, dt, dd, figcaption, blockquote").Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})

	var sb strings.Builder
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		sb.WriteString(p)
		if !strings.ContainsRune(".!?", rune(p[len(p)-1])) {
			sb.WriteByte('.')
		}
		sb.WriteByte(' ')
	}
	return strings.TrimSpace(sb.String()), nil
}

// Coverage counts whole-phrase, case-insensitive occurrences of each keyword
// in text. Every keyword is reported, in input order, so gaps show up with a
// zero Count.
func Coverage(text string, keywords []string) []Match {
	results := make([]Match, 0, len(keywords))
	if len(keywords) == 0 {
		return results
	}

	padded := " " + fold(text) + " "
	sentences := splitSentences(text)
	folded := make([]string, len(sentences))
	for i, s := range sentences {
		folded[i] = " " + fold(s) + " "
	}

	for _, kw := range keywords {
		phrase := fold(kw)
		m := Match{Keyword: kw}
		if phrase == "" {
			results = append(results, m)
			continue
		}
		needle := " " + phrase + " "
		m.Count = countPhrase(padded, needle)
		if m.Count > 0 {
			for i, fs := range folded {
				if strings.Contains(fs, needle) {
					m.Sentences = append(m.Sentences, sentences[i])
					if len(m.Sentences) == maxSentences {
						break
					}
				}
			}
		}
		results = append(results, m)
	}
	return results
}

// fold lowercases s and turns every run of non-alphanumerics into one space.
func fold(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}

// countPhrase counts needle in haystack. Consecutive matches share their
// separating space.
func countPhrase(haystack, needle string) int {
	count := 0
	for i := 0; ; {
		j := strings.Index(haystack[i:], needle)
		if j < 0 {
			return count
		}
		count++
		i += j + len(needle) - 1
	}
}

// splitSentences splits text on '.', '!' and '?', keeping the delimiter.
func splitSentences(text string) []string {
	if len(text) == 0 {
		return nil
	}

	// Estimate sentence count: roughly 1 sentence per 50 chars average
	sentences := make([]string, 0, max(len(text)/50, 1))
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
