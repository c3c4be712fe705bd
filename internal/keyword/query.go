package keyword

import "strings"

const (
	// MaxQueryWords is the longest phrase the provider accepts.
	MaxQueryWords = 5
	// MaxProviderBatch is the most keywords sent in one volume lookup.
	MaxProviderBatch = 25
)

// variationTemplates expand a base phrase; "%s" is replaced by the base.
var variationTemplates = []string{
	"%s",
	// commercial
	"%s reviews",
	"best %s",
	"%s price",
	"buy %s",
	// informational
	"%s guide",
	"%s benefits",
	"%s features",
	// research
	"top %s",
	"%s brands",
	"%s problems",
}

// BuildVariations expands a seed into the query phrases sent to the volume
// lookup. Every phrase has at most MaxQueryWords words and the list holds at
// most MaxProviderBatch entries.
func (n *Normalizer) BuildVariations(seed string) []string {
	words := strings.Fields(n.Sanitize(seed))
	if len(words) == 0 {
		return nil
	}
	if len(words) > MaxQueryWords {
		words = words[:MaxQueryWords]
	}
	base := strings.Join(words, " ")

	seen := make(map[string]struct{}, len(variationTemplates))
	out := make([]string, 0, len(variationTemplates))
	for _, tmpl := range variationTemplates {
		q := strings.Replace(tmpl, "%s", base, 1)
		if len(strings.Fields(q)) > MaxQueryWords {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == MaxProviderBatch {
			break
		}
	}
	return out
}

// BuildVariations expands seed using the default tables.
func BuildVariations(seed string) []string { return defaultNormalizer.BuildVariations(seed) }
