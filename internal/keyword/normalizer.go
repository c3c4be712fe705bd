package keyword

// Normalizer applies a fixed set of Tables. It is immutable once built and
// safe for concurrent use.
type Normalizer struct {
	tables      Tables
	quality     wordSet
	brand       wordSet
	fillers     wordSet
	stopwords   wordSet
	meaningless wordSet
}

// NewNormalizer compiles the given tables. An empty FallbackPhrase is
// replaced with DefaultFallbackPhrase so ToCategory never returns "".
func NewNormalizer(t Tables) *Normalizer {
	if t.FallbackPhrase == "" {
		t.FallbackPhrase = DefaultFallbackPhrase
	}
	return &Normalizer{
		tables:      t,
		quality:     newWordSet(t.QualityModifiers),
		brand:       newWordSet(t.BrandModifiers),
		fillers:     newWordSet(t.Fillers),
		stopwords:   newWordSet(t.Stopwords),
		meaningless: newWordSet(t.Meaningless),
	}
}

// Tables returns the tables the normalizer was built from.
func (n *Normalizer) Tables() Tables {
	return n.tables
}

var defaultNormalizer = NewNormalizer(DefaultTables())

// Default returns the normalizer built from DefaultTables.
func Default() *Normalizer {
	return defaultNormalizer
}

// Sanitize normalizes s using the default tables.
func Sanitize(s string) string { return defaultNormalizer.Sanitize(s) }

// IsValid reports whether kw is usable using the default tables.
func IsValid(kw string) bool { return defaultNormalizer.IsValid(kw) }

// ToCategory reduces a branded phrase to a category using the default tables.
func ToCategory(phrase string) string { return defaultNormalizer.ToCategory(phrase) }

// ExtractSeed derives the seed phrase for input using the default tables.
func ExtractSeed(input string) string { return defaultNormalizer.Extract(input).Phrase }
