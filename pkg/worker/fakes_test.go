package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"podnotes/pkg/domain"
)

func episode(id string) domain.Episode {
	return domain.Episode{
		ID:       id,
		ShowID:   "show-1",
		GUID:     "guid-" + id,
		AudioURL: "https://cdn.example.com/" + id + ".mp3",
		Title:    "Episode " + id,
		Show:     &domain.Show{ID: "show-1", RSSURL: "https://feeds.example.com/rss"},
	}
}

func episodes(ids ...string) []domain.Episode {
	out := make([]domain.Episode, len(ids))
	for i, id := range ids {
		out[i] = episode(id)
	}
	return out
}

type fakeEpisodes struct {
	mu        sync.Mutex
	needing   []domain.Episode
	broadened []domain.Episode
	recent    []domain.Episode
	err       error

	needingCalls, broadenedCalls, recentCalls int
}

func (f *fakeEpisodes) QueryEpisodesNeedingTranscripts(ctx context.Context, lookback time.Duration, limit int) ([]domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.needingCalls++
	return f.needing, f.err
}

func (f *fakeEpisodes) QueryEpisodesBroadened(ctx context.Context, lookback time.Duration, limit int) ([]domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadenedCalls++
	return f.broadened, f.err
}

func (f *fakeEpisodes) QueryRecentlyTranscribed(ctx context.Context, n int) ([]domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	return f.recent, f.err
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	acquires int
	releases int
}

func (f *fakeLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	f.acquires++
	return true, nil
}

func (f *fakeLocker) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.releases++
	return nil
}

// scriptedLookup returns a fixed result per episode id, NotFound otherwise.
type scriptedLookup struct {
	mu      sync.Mutex
	results map[string]domain.TranscriptResult
	calls   []string
}

func (s *scriptedLookup) Lookup(ctx context.Context, ep domain.Episode) domain.TranscriptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ep.ID)
	if r, ok := s.results[ep.ID]; ok {
		return r
	}
	return domain.NotFound{ResultMeta: domain.ResultMeta{Source: "taddy"}}
}

func (s *scriptedLookup) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeTranscriber struct {
	mu     sync.Mutex
	urls   []string
	result domain.FallbackResult
}

func (f *fakeTranscriber) TranscribeEpisode(ctx context.Context, audioURL string) domain.FallbackResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, audioURL)
	return f.result
}

func (f *fakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

type fakeResolver struct {
	url string
	err error

	mu    sync.Mutex
	calls int
}

func (f *fakeResolver) ResolveAudioURL(ctx context.Context, feedURL, guid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.url, f.err
}

func (f *fakeResolver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memRecords enforces the episode_id unique constraint the way Postgres does.
type memRecords struct {
	mu        sync.Mutex
	rows      map[string]domain.TranscriptRecord
	inserts   int
	insertErr error
}

func newMemRecords() *memRecords {
	return &memRecords{rows: make(map[string]domain.TranscriptRecord)}
}

func (m *memRecords) Insert(ctx context.Context, rec domain.TranscriptRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return "", m.insertErr
	}
	if _, ok := m.rows[rec.EpisodeID]; ok {
		return "", &pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "transcripts_episode_id_key"`}
	}
	m.rows[rec.EpisodeID] = rec
	return "id-" + rec.EpisodeID, nil
}

func (m *memRecords) Update(ctx context.Context, episodeID string, patch domain.TranscriptPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[episodeID]
	if !ok {
		return errors.New("not found")
	}
	rec.CurrentStatus = patch.CurrentStatus
	rec.StoragePath = patch.StoragePath
	rec.WordCount = patch.WordCount
	rec.Source = patch.Source
	switch {
	case patch.ClearErrorDetails:
		rec.ErrorDetails = nil
	case patch.ErrorDetails != nil:
		rec.ErrorDetails = patch.ErrorDetails
	}
	m.rows[episodeID] = rec
	return nil
}

func (m *memRecords) Get(episodeID string) (domain.TranscriptRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[episodeID]
	return rec, ok
}

func (m *memRecords) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemFiles() *memFiles {
	return &memFiles{objects: make(map[string][]byte)}
}

func (m *memFiles) Upload(ctx context.Context, path string, data []byte, contentType string, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.objects[path] = data
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	summary domain.WorkerSummary
	runErr  error
	calls   int
}

func (f *fakeHistory) RecordRun(ctx context.Context, startedAt time.Time, summary domain.WorkerSummary, runErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.summary = summary
	f.runErr = runErr
	return nil
}
