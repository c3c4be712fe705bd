package keyword

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Ranker orders a keyword list. Implementations return a new slice and
// leave the input untouched.
type Ranker interface {
	Name() string
	Rank(records []Record) []Record
}

// RankerFor looks up a ranker by name ("volume" or "content").
func RankerFor(name string) (Ranker, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ByVolume.Name():
		return ByVolume, nil
	case ByContentValue.Name():
		return ByContentValue, nil
	default:
		return nil, fmt.Errorf("keyword: unknown ranker %q", name)
	}
}

// ByVolume sorts by search volume, highest first.
var ByVolume Ranker = volumeRanker{}

// ByContentValue sorts by usefulness for article writing and keeps the first
// (seed) record in place.
var ByContentValue Ranker = contentRanker{}

type volumeRanker struct{}

func (volumeRanker) Name() string { return "volume" }

func (volumeRanker) Rank(records []Record) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Record) int {
		return b.SearchVolume - a.SearchVolume
	})
	return out
}

type contentRanker struct{}

func (contentRanker) Name() string { return "content" }

func (contentRanker) Rank(records []Record) []Record {
	out := slices.Clone(records)
	if len(out) < 2 {
		return out
	}
	rest := out[1:]
	slices.SortStableFunc(rest, func(a, b Record) int {
		sa, sb := ContentValue(a), ContentValue(b)
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})
	return out
}

var leadingNumberRe = regexp.MustCompile(`^\d+\s`)

// ContentValue scores how useful a keyword is as an article topic.
func ContentValue(r Record) float64 {
	score := float64(r.SearchVolume) / 1000
	score *= intentMultiplier(r.Intent)
	score *= 1 - r.Competition*0.3

	kw := r.Keyword
	if containsAny(kw, []string{"how to", "guide", "tips"}) {
		score *= 1.3
	}
	if containsAny(kw, []string{"best", "vs"}) || leadingNumberRe.MatchString(kw) {
		score *= 1.2
	}
	return score
}

func intentMultiplier(i Intent) float64 {
	switch i {
	case IntentInformational:
		return 1.5
	case IntentCommercial:
		return 1.2
	case IntentNavigational:
		return 0.7
	default:
		return 1.0
	}
}
