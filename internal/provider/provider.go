package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/sprig/internal/keyword"
)

var (
	// ErrMissingCredentials is returned at construction when the login or
	// password is empty.
	ErrMissingCredentials = errors.New("provider: credentials are missing")
	// ErrInvalidBaseURL is returned at construction for a malformed base URL.
	ErrInvalidBaseURL = errors.New("provider: base url is invalid")
	// ErrBatchTooLarge is returned when a volume lookup exceeds the per-call
	// keyword cap.
	ErrBatchTooLarge = errors.New("provider: keyword batch exceeds provider limit")
)

// VolumeRange bounds the search volume of keyword ideas.
type VolumeRange struct {
	Min int
	Max int
}

// AnyVolume accepts every idea regardless of volume.
var AnyVolume = VolumeRange{Min: 0, Max: 1_000_000_000}

// Provider abstracts a quota-metered keyword data service. Implementations
// must be safe for concurrent use.
type Provider interface {
	// SearchVolume looks up metrics for up to keyword.MaxProviderBatch
	// keywords in one call.
	SearchVolume(ctx context.Context, keywords []string, language string, location int) ([]keyword.Row, error)
	// Suggestions returns broader lexical neighbors of seed.
	Suggestions(ctx context.Context, seed string, language string, location int, limit int) ([]keyword.Row, error)
	// Ideas returns alternate candidates for seed with metrics attached.
	Ideas(ctx context.Context, seed string, language string, location int, volume VolumeRange, limit int) ([]keyword.Row, error)
}

// StatusError reports a non-success answer from the provider, either at the
// HTTP layer or in the response envelope.
type StatusError struct {
	Endpoint   string
	HTTPStatus int
	Code       int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("provider %s: http %d: %s", e.Endpoint, e.HTTPStatus, e.Message)
}
