package filter

import (
	"context"
	"fmt"
	"time"

	"podnotes/pkg/domain"
)

// Filter defines the interface for episode filtering
type Filter interface {
	ShouldKeep(ctx context.Context, ep domain.Episode) (bool, error)
}

// FilterEpisodes applies all filters to a list of episodes, keeping order
func FilterEpisodes(ctx context.Context, episodes []domain.Episode, filters ...Filter) ([]domain.Episode, error) {
	filtered := make([]domain.Episode, 0, len(episodes))

	for _, ep := range episodes {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, ep)
			if err != nil {
				return nil, fmt.Errorf("filter error for episode %s: %w", ep.ID, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, ep)
		}
	}

	return filtered, nil
}

// EligibleFilter drops soft-deleted episodes, episodes of deleted shows and
// episodes whose show has no feed URL
type EligibleFilter struct{}

// NewEligibleFilter creates a new eligibility filter
func NewEligibleFilter() *EligibleFilter {
	return &EligibleFilter{}
}

// ShouldKeep returns false if the episode cannot be sent to a provider
func (f *EligibleFilter) ShouldKeep(ctx context.Context, ep domain.Episode) (bool, error) {
	if ep.Show != nil && ep.Show.DeletedAt != nil {
		return false, nil
	}
	return ep.Eligible(), nil
}

// AlreadyTranscribedFilter filters out episodes that already have a transcript row
type AlreadyTranscribedFilter struct {
	transcribed map[string]bool
}

// NewAlreadyTranscribedFilter creates a new already-transcribed filter
func NewAlreadyTranscribedFilter(transcribed map[string]bool) *AlreadyTranscribedFilter {
	return &AlreadyTranscribedFilter{
		transcribed: transcribed,
	}
}

// ShouldKeep returns false if the episode id is in the transcribed set
func (f *AlreadyTranscribedFilter) ShouldKeep(ctx context.Context, ep domain.Episode) (bool, error) {
	return !f.transcribed[ep.ID], nil
}

// PublishedSinceFilter keeps episodes published at or after a cutoff
type PublishedSinceFilter struct {
	cutoff time.Time
}

// NewPublishedSinceFilter creates a new lookback filter
func NewPublishedSinceFilter(cutoff time.Time) *PublishedSinceFilter {
	return &PublishedSinceFilter{cutoff: cutoff}
}

// ShouldKeep returns false if the episode was published before the cutoff
func (f *PublishedSinceFilter) ShouldKeep(ctx context.Context, ep domain.Episode) (bool, error) {
	return !ep.PublishedAt.Before(f.cutoff), nil
}
