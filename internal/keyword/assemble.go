package keyword

// Row is raw keyword data as a provider returns it. Nil metrics mean the
// provider did not report them.
type Row struct {
	Keyword      string
	SearchVolume *int
	Competition  *float64
	CPC          *float64
	Monthly      []int
}

// Assemble converts provider rows into records. Rows whose keyword does not
// survive sanitization and validation are dropped, as are rows whose keyword
// is already in exclude or earlier in rows. A missing volume becomes 0.
func (n *Normalizer) Assemble(rows []Row, exclude map[string]struct{}) []Record {
	seen := make(map[string]struct{}, len(rows))
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		kw := n.Sanitize(row.Keyword)
		if !n.IsValid(kw) {
			continue
		}
		if _, dup := exclude[kw]; dup {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}

		out = append(out, NewRecord(kw, deref(row.SearchVolume), derefFloat(row.Competition), derefFloat(row.CPC), row.Monthly))
	}
	return out
}

// Assemble converts rows using the default tables.
func Assemble(rows []Row) []Record { return defaultNormalizer.Assemble(rows, nil) }

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
