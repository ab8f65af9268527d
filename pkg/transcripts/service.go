package transcripts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"podnotes/pkg/domain"
)

// Provider looks up an existing transcript for an episode.
type Provider interface {
	Name() string
	FetchTranscript(ctx context.Context, feedURL, guid string) (domain.TranscriptResult, error)
}

// Config selects the primary provider by name. Empty picks the first one given.
type Config struct {
	Primary string
}

// Service checks eligibility and delegates to exactly one provider, picked
// once at construction.
type Service struct {
	provider Provider
	logger   *slog.Logger
}

var (
	ErrNoProviders     = errors.New("transcripts: at least one provider is required")
	ErrUnknownProvider = errors.New("transcripts: unknown provider")
)

// NotEligibleMessage is the error message for episodes that cannot be looked up.
const NotEligibleMessage = "not eligible"

// NewService creates a service bound to the configured primary provider.
func NewService(cfg Config, logger *slog.Logger, providers ...Provider) (*Service, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	want := strings.TrimSpace(cfg.Primary)
	if want == "" {
		return &Service{provider: providers[0], logger: logger}, nil
	}
	for _, p := range providers {
		if p != nil && p.Name() == want {
			return &Service{provider: p, logger: logger}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, want)
}

// ProviderName reports the selected provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Eligible reports whether ep can be looked up at all.
func Eligible(ep domain.Episode) bool {
	return ep.Eligible()
}

// Lookup returns the provider result for ep. It never returns nil. Every
// result carries a source, and a provider failure becomes an ErrorResult with
// no credits.
func (s *Service) Lookup(ctx context.Context, ep domain.Episode) domain.TranscriptResult {
	name := s.provider.Name()
	if !Eligible(ep) {
		return domain.ErrorResult{ResultMeta: domain.ResultMeta{Source: name}, Message: NotEligibleMessage}
	}

	result, err := s.provider.FetchTranscript(ctx, ep.FeedURL(), ep.GUID)
	if err != nil {
		s.logger.Debug("TranscriptService: provider error", "provider", name, "episode_id", ep.ID, "error", err)
		return domain.ErrorResult{ResultMeta: domain.ResultMeta{Source: name}, Message: err.Error()}
	}
	if result == nil {
		return domain.ErrorResult{ResultMeta: domain.ResultMeta{Source: name}, Message: "provider returned no result"}
	}

	meta := result.Meta()
	if meta.Source == "" {
		meta.Source = name
		result = domain.WithMeta(result, meta)
	}
	return result
}
