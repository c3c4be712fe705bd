package keyword

// CategoryRule maps a set of required terms to a canonical category phrase.
// A rule matches when every term appears among the phrase's tokens.
type CategoryRule struct {
	Terms    []string
	Category string
}

// FallbackMode selects what ToCategory returns when nothing meaningful is left.
type FallbackMode int

const (
	// FallbackNeutral returns the sanitized input phrase, and only uses the
	// fixed fallback phrase when that is empty too.
	FallbackNeutral FallbackMode = iota
	// FallbackFixed always returns the fixed fallback phrase.
	FallbackFixed
)

// Tables holds every word list the classifier, extractor and sanitizer
// consult. Use DefaultTables and adjust the copy rather than building one
// from scratch.
type Tables struct {
	// QualityModifiers mark a title as branded ("pro", "elite", ...).
	QualityModifiers []string
	// BrandModifiers are stripped during category extraction.
	BrandModifiers []string
	// Fillers are dropped from the token list before the last-two rule.
	Fillers []string
	// Stopwords are trimmed from the ends of a sanitized phrase.
	Stopwords []string
	// Meaningless keywords are rejected by IsValid.
	Meaningless []string
	// Categories is evaluated in order; the first full match wins.
	Categories []CategoryRule

	FallbackMode   FallbackMode
	FallbackPhrase string
}

// DefaultFallbackPhrase is the last-resort category.
const DefaultFallbackPhrase = "water treatment system"

// DefaultTables returns a fresh copy of the built-in tables with the neutral
// fallback.
func DefaultTables() Tables {
	return Tables{
		QualityModifiers: []string{"pro", "elite", "premium", "max", "plus", "ultra", "super", "advanced"},
		BrandModifiers: []string{
			"pro", "elite", "premium", "max", "plus", "ultra", "super", "advanced",
			"deluxe", "professional", "series", "edition", "model", "version", "gen",
			"generation", "mini", "lite", "classic", "original", "signature", "select",
			"ultimate", "essential", "essentials", "new", "xxl",
		},
		Fillers:     []string{"for", "with", "and", "the", "system", "unit", "device"},
		Stopwords:   []string{"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by"},
		Meaningless: []string{"item", "product", "thing", "stuff", "new", "old", "good", "bad", "big", "small", "cheap", "expensive", "free", "sale", "buy", "get"},
		Categories: []CategoryRule{
			{Terms: []string{"water", "softener"}, Category: "water softener"},
			{Terms: []string{"water", "filter"}, Category: "water filter"},
			{Terms: []string{"reverse", "osmosis"}, Category: "reverse osmosis system"},
			{Terms: []string{"water", "purifier"}, Category: "water purifier"},
			{Terms: []string{"air", "purifier"}, Category: "air purifier"},
			{Terms: []string{"air", "filter"}, Category: "air filter"},
			{Terms: []string{"water", "heater"}, Category: "water heater"},
			{Terms: []string{"shower", "filter"}, Category: "shower filter"},
			{Terms: []string{"coffee", "maker"}, Category: "coffee maker"},
			{Terms: []string{"espresso", "machine"}, Category: "espresso machine"},
			{Terms: []string{"robot", "vacuum"}, Category: "robot vacuum"},
			{Terms: []string{"vacuum", "cleaner"}, Category: "vacuum cleaner"},
			{Terms: []string{"running", "shoes"}, Category: "running shoes"},
			{Terms: []string{"yoga", "mat"}, Category: "yoga mat"},
			{Terms: []string{"cast", "iron", "skillet"}, Category: "cast iron skillet"},
			{Terms: []string{"standing", "desk"}, Category: "standing desk"},
			{Terms: []string{"office", "chair"}, Category: "office chair"},
			{Terms: []string{"wireless", "earbuds"}, Category: "wireless earbuds"},
			{Terms: []string{"dehumidifier"}, Category: "dehumidifier"},
			{Terms: []string{"humidifier"}, Category: "humidifier"},
		},
		FallbackMode:   FallbackNeutral,
		FallbackPhrase: DefaultFallbackPhrase,
	}
}

// LegacyTables behaves like DefaultTables but always falls back to the fixed
// water-treatment phrase.
func LegacyTables() Tables {
	t := DefaultTables()
	t.FallbackMode = FallbackFixed
	return t
}

type wordSet map[string]struct{}

func newWordSet(words []string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s wordSet) has(w string) bool {
	_, ok := s[w]
	return ok
}
