package keyword

import (
	"math"
	"strings"
)

// CompetitionLevel buckets the provider's competition index.
type CompetitionLevel string

const (
	CompetitionLow    CompetitionLevel = "Low"
	CompetitionMedium CompetitionLevel = "Medium"
	CompetitionHigh   CompetitionLevel = "High"
)

// Intent is a coarse classification of what the searcher wants.
type Intent string

const (
	IntentTransactional Intent = "Transactional"
	IntentInformational Intent = "Informational"
	IntentCommercial    Intent = "Commercial"
	IntentNavigational  Intent = "Navigational"
)

// TrendMonths is the length of the monthly volume series.
const TrendMonths = 12

// Record is a single researched keyword. Derived fields (CompetitionLevel,
// Intent, Difficulty) are only ever set by NewRecord.
type Record struct {
	Keyword          string           `json:"keyword"`
	SearchVolume     int              `json:"searchVolume"`
	CPC              float64          `json:"cpc"`
	Competition      float64          `json:"competition"`
	CompetitionLevel CompetitionLevel `json:"competitionLevel"`
	Intent           Intent           `json:"intent"`
	Trend            [TrendMonths]int `json:"trend"`
	Difficulty       int              `json:"difficulty"`
	Selected         bool             `json:"selected"`
}

// NewRecord builds a Record from an already sanitized keyword and raw metrics.
// Out-of-range metrics are clamped so derived scores stay in bounds.
func NewRecord(kw string, volume int, competition, cpc float64, monthly []int) Record {
	if volume < 0 {
		volume = 0
	}
	competition = clamp(competition, 0, 1)
	if cpc < 0 || math.IsNaN(cpc) {
		cpc = 0
	}

	return Record{
		Keyword:          kw,
		SearchVolume:     volume,
		CPC:              cpc,
		Competition:      competition,
		CompetitionLevel: CompetitionLevelFor(competition),
		Intent:           IntentOf(kw),
		Trend:            TrendFrom(monthly, volume),
		Difficulty:       Difficulty(volume, competition, cpc),
	}
}

// CompetitionLevelFor maps a competition index in [0,1] to its level.
func CompetitionLevelFor(competition float64) CompetitionLevel {
	switch {
	case competition < 0.33:
		return CompetitionLow
	case competition < 0.66:
		return CompetitionMedium
	default:
		return CompetitionHigh
	}
}

// Difficulty scores how hard a keyword is to rank for, from 0 to 100.
func Difficulty(volume int, competition, cpc float64) int {
	c := clamp(competition, 0, 1)
	v := math.Min(float64(max(volume, 0))/10000, 1)
	p := math.Min(math.Max(cpc, 0)/5, 1)
	if math.IsNaN(p) {
		p = 0
	}
	return int(math.Round(100 * (0.5*c + 0.3*v + 0.2*p)))
}

// TrendFrom returns the provider's monthly series when it is complete,
// otherwise the scalar volume repeated for every month.
func TrendFrom(monthly []int, volume int) [TrendMonths]int {
	var trend [TrendMonths]int
	if len(monthly) == TrendMonths {
		for i, v := range monthly {
			trend[i] = max(v, 0)
		}
		return trend
	}
	for i := range trend {
		trend[i] = volume
	}
	return trend
}

// IntentOf infers searcher intent from keyword text. Transactional cues win
// over informational, which win over commercial.
func IntentOf(kw string) Intent {
	switch {
	case containsAny(kw, transactionalCues):
		return IntentTransactional
	case containsAny(kw, informationalCues):
		return IntentInformational
	case containsAny(kw, commercialCues):
		return IntentCommercial
	default:
		return IntentNavigational
	}
}

var (
	transactionalCues = []string{"buy", "price", "cost", "shop"}
	informationalCues = []string{"how to", "guide", "tutorial"}
	commercialCues    = []string{"best", "vs", "review"}
)

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
