package keyword

import "strings"

// minTermLen is the shortest token considered a main term.
const minTermLen = 3

// RelevanceFilter decides whether expansion candidates stay on topic with a
// base keyword.
type RelevanceFilter struct {
	terms []string
}

// NewRelevanceFilter extracts the main terms (tokens of three or more
// characters) from base.
func NewRelevanceFilter(base string) *RelevanceFilter {
	return &RelevanceFilter{terms: mainTerms(base)}
}

// Terms returns the main terms of the base keyword.
func (f *RelevanceFilter) Terms() []string {
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}

// Relevant reports whether candidate shares a token with the base keyword,
// where one token contains the other ("softener" and "softeners" match).
func (f *RelevanceFilter) Relevant(candidate string) bool {
	if len(f.terms) == 0 {
		return false
	}
	for _, tok := range mainTerms(candidate) {
		for _, term := range f.terms {
			if strings.Contains(tok, term) || strings.Contains(term, tok) {
				return true
			}
		}
	}
	return false
}

// Filter returns the candidates that are relevant and not already present,
// preserving order and stopping after limit matches (0 means no limit).
func (f *RelevanceFilter) Filter(candidates []string, present map[string]struct{}, limit int) []string {
	out := make([]string, 0, min(len(candidates), max(limit, 0)))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := present[c]; ok {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		if !f.Relevant(c) {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func mainTerms(s string) []string {
	var terms []string
	for _, tok := range lowerWords(s) {
		if len(tok) >= minTermLen {
			terms = append(terms, tok)
		}
	}
	return terms
}
