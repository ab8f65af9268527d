// Package worker runs the transcript acquisition job: it takes the run lock,
// selects episodes, drives the provider chain over them in bounded batches and
// aggregates a summary.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"podnotes/pkg/domain"
	"podnotes/pkg/lock"
	"podnotes/pkg/logging"
	"podnotes/pkg/persistence"
)

// EpisodeSource selects candidate episodes.
type EpisodeSource interface {
	QueryEpisodesNeedingTranscripts(ctx context.Context, lookback time.Duration, limit int) ([]domain.Episode, error)
	QueryEpisodesBroadened(ctx context.Context, lookback time.Duration, limit int) ([]domain.Episode, error)
	QueryRecentlyTranscribed(ctx context.Context, n int) ([]domain.Episode, error)
}

// TranscriptLookup is the primary provider chain.
type TranscriptLookup interface {
	Lookup(ctx context.Context, ep domain.Episode) domain.TranscriptResult
}

// Transcriber transcribes audio directly.
type Transcriber interface {
	TranscribeEpisode(ctx context.Context, audioURL string) domain.FallbackResult
}

// AudioResolver finds an episode's audio URL when the row has none.
type AudioResolver interface {
	ResolveAudioURL(ctx context.Context, feedURL, guid string) (string, error)
}

// Persister writes transcript blobs and status rows.
type Persister interface {
	StoreTranscriptFile(ctx context.Context, ep domain.Episode, text string) (string, error)
	RecordTranscript(ctx context.Context, rec domain.TranscriptRecord) (persistence.Outcome, error)
}

// RunRecorder keeps a history of finished runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, startedAt time.Time, summary domain.WorkerSummary, runErr error) error
}

// FallbackSource tags results produced by direct audio transcription.
const FallbackSource = "fallback"

// Config holds the knobs for a TranscriptWorker.
type Config struct {
	Lookback    time.Duration
	MaxRequests int
	Concurrency int
	BatchSize   int
	BatchPause  time.Duration

	UseLock bool
	LockKey string

	// LastN > 0 reprocesses the N most recently transcribed episodes.
	LastN int

	FallbackEnabled bool
	// MaxFallbacksPerRun <= 0 means no limit.
	MaxFallbacksPerRun int
	FallbackStatuses   []domain.Kind
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Lookback:           24 * time.Hour,
		MaxRequests:        15,
		Concurrency:        10,
		BatchSize:          50,
		BatchPause:         2 * time.Second,
		UseLock:            true,
		LockKey:            "transcript_worker",
		FallbackEnabled:    true,
		MaxFallbacksPerRun: 50,
		FallbackStatuses:   []domain.Kind{domain.KindNoMatch, domain.KindNotFound, domain.KindError, domain.KindProcessing},
	}
}

// Deps are the collaborators of a TranscriptWorker. Fallback, Resolver and
// History are optional.
type Deps struct {
	Episodes    EpisodeSource
	Locker      lock.Locker
	Transcripts TranscriptLookup
	Fallback    Transcriber
	Resolver    AudioResolver
	Persister   Persister
	History     RunRecorder
	Logger      *slog.Logger
}

var (
	ErrMissingDependency = errors.New("worker: missing dependency")
	ErrInvalidConfig     = errors.New("worker: invalid config")
)

// TranscriptWorker acquires transcripts for recent episodes.
type TranscriptWorker struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	fallbackOn map[domain.Kind]bool
	state      atomic.Int32

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newRunID func() string
}

// New validates cfg and deps.
func New(cfg Config, deps Deps) (*TranscriptWorker, error) {
	switch {
	case deps.Episodes == nil:
		return nil, fmt.Errorf("%w: episode source", ErrMissingDependency)
	case deps.Transcripts == nil:
		return nil, fmt.Errorf("%w: transcript lookup", ErrMissingDependency)
	case deps.Persister == nil:
		return nil, fmt.Errorf("%w: persister", ErrMissingDependency)
	case cfg.UseLock && deps.Locker == nil:
		return nil, fmt.Errorf("%w: locker", ErrMissingDependency)
	}
	switch {
	case cfg.MaxRequests <= 0:
		return nil, fmt.Errorf("%w: max requests must be positive", ErrInvalidConfig)
	case cfg.Concurrency <= 0:
		return nil, fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	case cfg.BatchSize <= 0:
		return nil, fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	case cfg.UseLock && cfg.LockKey == "":
		return nil, fmt.Errorf("%w: lock key is required", ErrInvalidConfig)
	}

	fallbackOn := make(map[domain.Kind]bool, len(cfg.FallbackStatuses))
	for _, k := range cfg.FallbackStatuses {
		fallbackOn[k] = true
	}

	return &TranscriptWorker{
		cfg:        cfg,
		deps:       deps,
		logger:     logging.OrDiscard(deps.Logger),
		fallbackOn: fallbackOn,
		now:        time.Now,
		sleep:      sleepCtx,
		newRunID:   uuid.NewString,
	}, nil
}

// State returns the state of the current or most recent run.
func (w *TranscriptWorker) State() State {
	return State(w.state.Load())
}

func (w *TranscriptWorker) setState(s State) {
	w.state.Store(int32(s))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
