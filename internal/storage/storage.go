package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/research"
)

// Run is one archived research invocation.
type Run struct {
	ID               string           `json:"id"`
	Input            string           `json:"input"`
	Kind             keyword.Kind     `json:"kind"`
	Seed             string           `json:"seed"`
	Rank             string           `json:"rank"`
	Keywords         []keyword.Record `json:"keywords"`
	Variations       []string         `json:"variations"`
	SuggestionsAdded int              `json:"suggestionsAdded"`
	IdeasAdded       int              `json:"ideasAdded"`
	CreatedAt        time.Time        `json:"createdAt"`
	Duration         time.Duration    `json:"duration"`
	Error            string           `json:"error,omitempty"`
}

// Failed reports whether the run ended in an error.
func (r *Run) Failed() bool {
	return r.Error != ""
}

// NewRun archives the outcome of a research call. res may be nil when err
// is set; the seed is then re-derived from input.
func NewRun(input string, res *research.Result, err error) *Run {
	run := &Run{
		ID:        uuid.New().String(),
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
	if res != nil {
		run.Kind = res.Seed.Kind
		run.Seed = res.Seed.Phrase
		run.Rank = res.Ranker
		run.Keywords = res.Keywords
		run.Variations = res.Variations
		run.SuggestionsAdded = res.SuggestionsAdded
		run.IdeasAdded = res.IdeasAdded
		run.Duration = res.Duration
	} else {
		seed := keyword.Default().Extract(input)
		run.Kind = seed.Kind
		run.Seed = seed.Phrase
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Input  string
	Failed *bool
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether run passes the non-paging filter fields.
func (f Filter) Match(run *Run) bool {
	if f.Input != "" && run.Input != f.Input {
		return false
	}
	if f.Failed != nil && run.Failed() != *f.Failed {
		return false
	}
	if f.Since != nil && run.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to runs already ordered newest first.
func (f Filter) Page(runs []*Run) []*Run {
	if f.Offset > 0 {
		if f.Offset >= len(runs) {
			return []*Run{}
		}
		runs = runs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(runs) {
		runs = runs[:f.Limit]
	}
	return runs
}

// Backend archives runs.
type Backend interface {
	Save(ctx context.Context, run *Run) error
	// Query returns matching runs, newest first.
	Query(ctx context.Context, filter Filter) ([]*Run, error)
	Close() error
}
