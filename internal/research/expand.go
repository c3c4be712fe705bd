package research

import (
	"context"
	"slices"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/metrics"
	"github.com/FranksOps/sprig/internal/provider"
)

// expand grows records with suggestion and idea rounds anchored on the
// first record. Round failures are logged and skipped.
func (s *Service) expand(ctx context.Context, records []keyword.Record, res *Result) []keyword.Record {
	if len(records) == 0 || len(records) >= s.cfg.MaxResults {
		return records
	}

	seed := records[0].Keyword
	filter := keyword.NewRelevanceFilter(seed)
	present := make(map[string]struct{}, s.cfg.MaxResults)
	for _, r := range records {
		present[r.Keyword] = struct{}{}
	}

	added, err := s.suggestionRound(ctx, seed, filter, present)
	if err != nil {
		s.roundFailed("suggestions", seed, err)
	} else {
		records, res.SuggestionsAdded = s.merge(records, added, present)
	}

	if len(records) >= s.cfg.MinBeforeIdeas {
		return records
	}

	added, err = s.ideaRound(ctx, seed, filter, present)
	if err != nil {
		s.roundFailed("ideas", seed, err)
	} else {
		records, res.IdeasAdded = s.merge(records, added, present)
	}
	return records
}

// suggestionRound fetches suggestions, keeps relevant new ones and looks up
// their metrics.
func (s *Service) suggestionRound(ctx context.Context, seed string, filter *keyword.RelevanceFilter, present map[string]struct{}) ([]keyword.Record, error) {
	rows, err := s.provider.Suggestions(ctx, seed, s.cfg.Language, s.cfg.Location, s.cfg.SuggestionLimit)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(rows))
	for _, row := range rows {
		if kw := s.norm.Sanitize(row.Keyword); s.norm.IsValid(kw) {
			candidates = append(candidates, kw)
		}
	}
	candidates = filter.Filter(candidates, present, s.cfg.CandidateLimit)
	if len(candidates) == 0 {
		return nil, nil
	}

	var volume []keyword.Row
	for batch := range slices.Chunk(candidates, keyword.MaxProviderBatch) {
		got, err := s.provider.SearchVolume(ctx, batch, s.cfg.Language, s.cfg.Location)
		if err != nil {
			return nil, err
		}
		volume = append(volume, got...)
	}
	return s.norm.Assemble(volume, present), nil
}

// ideaRound fetches ideas, which carry their own metrics, and keeps the
// relevant new ones.
func (s *Service) ideaRound(ctx context.Context, seed string, filter *keyword.RelevanceFilter, present map[string]struct{}) ([]keyword.Record, error) {
	rows, err := s.provider.Ideas(ctx, seed, s.cfg.Language, s.cfg.Location, provider.AnyVolume, s.cfg.IdeaLimit)
	if err != nil {
		return nil, err
	}

	// Only new, valid, relevant ideas count toward the candidate cap.
	kept := make([]keyword.Row, 0, min(len(rows), s.cfg.CandidateLimit))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		kw := s.norm.Sanitize(row.Keyword)
		if !s.norm.IsValid(kw) || !filter.Relevant(kw) {
			continue
		}
		if _, dup := present[kw]; dup {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		kept = append(kept, row)
		if len(kept) == s.cfg.CandidateLimit {
			break
		}
	}
	return s.norm.Assemble(kept, present), nil
}

// merge appends unseen records until the set reaches MaxResults and reports
// how many were added.
func (s *Service) merge(records, added []keyword.Record, present map[string]struct{}) ([]keyword.Record, int) {
	n := 0
	for _, r := range added {
		if len(records) >= s.cfg.MaxResults {
			break
		}
		if _, dup := present[r.Keyword]; dup {
			continue
		}
		present[r.Keyword] = struct{}{}
		records = append(records, r)
		n++
	}
	return records, n
}

func (s *Service) roundFailed(round, seed string, err error) {
	metrics.ExpansionFailures.WithLabelValues(round).Inc()
	s.logger.Warn("expansion round failed", "round", round, "seed", seed, "err", err)
}
