package transcripts

import (
	"context"
	"errors"
	"testing"
	"time"

	"podnotes/pkg/domain"
)

type stubProvider struct {
	name   string
	result domain.TranscriptResult
	err    error
	calls  int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchTranscript(ctx context.Context, feedURL, guid string) (domain.TranscriptResult, error) {
	p.calls++
	return p.result, p.err
}

func eligibleEpisode() domain.Episode {
	return domain.Episode{ID: "ep-1", GUID: "guid-1", Show: &domain.Show{ID: "show-1", RSSURL: "https://feed"}}
}

func TestNewService_SelectsPrimaryOnce(t *testing.T) {
	a := &stubProvider{name: "a", result: domain.NotFound{}}
	b := &stubProvider{name: "b", result: domain.NotFound{}}

	svc, err := NewService(Config{Primary: "b"}, nil, a, b)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.ProviderName() != "b" {
		t.Errorf("ProviderName = %q, want b", svc.ProviderName())
	}
	svc.Lookup(context.Background(), eligibleEpisode())
	if a.calls != 0 || b.calls != 1 {
		t.Errorf("calls a=%d b=%d, want 0 and 1", a.calls, b.calls)
	}

	if _, err := NewService(Config{Primary: "c"}, nil, a, b); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
	if _, err := NewService(Config{}, nil); !errors.Is(err, ErrNoProviders) {
		t.Errorf("err = %v, want ErrNoProviders", err)
	}
}

func TestLookup_IneligibleSkipsProvider(t *testing.T) {
	p := &stubProvider{name: "taddy", result: domain.Full{Text: "x"}}
	svc, _ := NewService(Config{}, nil, p)

	deleted := time.Now()
	cases := []domain.Episode{
		{ID: "no-show", GUID: "g"},
		{ID: "empty-feed", GUID: "g", Show: &domain.Show{RSSURL: "  "}},
		{ID: "deleted", GUID: "g", DeletedAt: &deleted, Show: &domain.Show{RSSURL: "https://feed"}},
	}
	for _, ep := range cases {
		got := svc.Lookup(context.Background(), ep)
		errRes, ok := got.(domain.ErrorResult)
		if !ok || errRes.Message != NotEligibleMessage {
			t.Errorf("%s: result = %#v, want not eligible error", ep.ID, got)
		}
		if errRes.Source != "taddy" || errRes.CreditsConsumed != 0 {
			t.Errorf("%s: meta = %+v", ep.ID, errRes.ResultMeta)
		}
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times, want 0", p.calls)
	}
}

func TestLookup_ProviderErrorBecomesErrorResult(t *testing.T) {
	p := &stubProvider{name: "taddy", err: errors.New("taddy getPodcastSeries: HTTP 429: slow down")}
	svc, _ := NewService(Config{}, nil, p)

	got := svc.Lookup(context.Background(), eligibleEpisode())
	errRes, ok := got.(domain.ErrorResult)
	if !ok {
		t.Fatalf("result = %T, want ErrorResult", got)
	}
	if errRes.Message != "taddy getPodcastSeries: HTTP 429: slow down" {
		t.Errorf("Message = %q", errRes.Message)
	}
	if errRes.Source != "taddy" || errRes.CreditsConsumed != 0 {
		t.Errorf("meta = %+v", errRes.ResultMeta)
	}
}

func TestLookup_DefaultsSourceAndKeepsCredits(t *testing.T) {
	p := &stubProvider{name: "taddy", result: domain.Full{ResultMeta: domain.ResultMeta{CreditsConsumed: 3}, Text: "hi", WordCount: 1}}
	svc, _ := NewService(Config{}, nil, p)

	got := svc.Lookup(context.Background(), eligibleEpisode())
	full, ok := got.(domain.Full)
	if !ok {
		t.Fatalf("result = %T, want Full", got)
	}
	if full.Source != "taddy" || full.CreditsConsumed != 3 {
		t.Errorf("meta = %+v, want source taddy and 3 credits", full.ResultMeta)
	}
}
