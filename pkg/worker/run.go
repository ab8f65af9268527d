package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"podnotes/pkg/concurrency"
	"podnotes/pkg/domain"
	"podnotes/pkg/quota"
)

// run is the state private to one Run call. Nothing in it survives the run.
type run struct {
	id     string
	logger *slog.Logger

	breaker quota.Breaker

	fallbackAttempts      atomic.Int64
	fallbackSuccesses     atomic.Int64
	fallbackFailures      atomic.Int64
	fallbackSkippedBudget atomic.Int64
}

// Run executes one worker run. A lock held by another run is not an error:
// the summary comes back with LockNotAcquired set. Lock and query failures
// abort the run. Per-episode failures only show up in the summary counts.
func (w *TranscriptWorker) Run(ctx context.Context) (summary domain.WorkerSummary, err error) {
	started := w.now()
	r := &run{id: w.newRunID()}
	r.logger = w.logger.With("run_id", r.id, "component", "transcript_worker")
	summary.RunID = r.id

	w.setState(StateIdle)
	defer func() {
		if err != nil {
			w.setState(StateFailed)
			r.logger.Error("TranscriptWorker: run failed", "error", err)
		} else {
			w.setState(StateDone)
		}
		w.recordHistory(ctx, r, started, summary, err)
	}()

	if w.cfg.UseLock {
		w.setState(StateLockAcquisition)
		ok, lockErr := w.deps.Locker.TryAcquire(ctx, w.cfg.LockKey)
		if lockErr != nil {
			summary.TotalElapsedMs = w.since(started)
			return summary, fmt.Errorf("acquire lock %q: %w", w.cfg.LockKey, lockErr)
		}
		if !ok {
			r.logger.Info("TranscriptWorker: lock held by another run, exiting", "lock_key", w.cfg.LockKey)
			summary.LockNotAcquired = true
			summary.TotalElapsedMs = w.since(started)
			return summary, nil
		}
		defer func() {
			if relErr := w.deps.Locker.Release(context.WithoutCancel(ctx), w.cfg.LockKey); relErr != nil {
				r.logger.Error("TranscriptWorker: failed to release lock", "lock_key", w.cfg.LockKey, "error", relErr)
			}
		}()
	}

	w.setState(StateQuerying)
	episodes, err := w.selectEpisodes(ctx, r)
	if err != nil {
		summary.TotalElapsedMs = w.since(started)
		return summary, err
	}
	if len(episodes) > w.cfg.MaxRequests {
		r.logger.Info("TranscriptWorker: capping candidates", "found", len(episodes), "max_requests", w.cfg.MaxRequests)
		episodes = episodes[:w.cfg.MaxRequests]
	}
	r.logger.Info("TranscriptWorker: starting run", "episodes", len(episodes), "concurrency", w.cfg.Concurrency, "batch_size", w.cfg.BatchSize)

	results := make([]domain.EpisodeProcessingResult, len(episodes))
	for i, ep := range episodes {
		results[i] = domain.EpisodeProcessingResult{EpisodeID: ep.ID, Status: domain.StatusSkipped}
	}

	w.setState(StateDispatching)
	dispatchErr := w.dispatch(ctx, r, episodes, results)

	w.setState(StateAggregating)
	summary = aggregate(r, results, w.since(started))

	r.logger.Info("TranscriptWorker: run complete",
		"total", summary.TotalEpisodes,
		"processed", summary.ProcessedEpisodes,
		"available", summary.AvailableTranscripts,
		"errors", summary.ErrorCount,
		"skipped", summary.SkippedEpisodes,
		"fallback_attempts", summary.FallbackAttempts,
		"quota_exhausted", summary.QuotaExhausted,
		"elapsed_ms", summary.TotalElapsedMs)

	if dispatchErr != nil {
		return summary, fmt.Errorf("dispatch: %w", dispatchErr)
	}
	return summary, nil
}

func (w *TranscriptWorker) selectEpisodes(ctx context.Context, r *run) ([]domain.Episode, error) {
	if w.cfg.LastN > 0 {
		r.logger.Info("TranscriptWorker: last-N mode, reprocessing recent transcripts", "n", w.cfg.LastN)
		episodes, err := w.deps.Episodes.QueryRecentlyTranscribed(ctx, w.cfg.LastN)
		if err != nil {
			return nil, fmt.Errorf("query recently transcribed: %w", err)
		}
		return episodes, nil
	}

	episodes, err := w.deps.Episodes.QueryEpisodesNeedingTranscripts(ctx, w.cfg.Lookback, w.cfg.MaxRequests)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	if len(episodes) > 0 {
		return episodes, nil
	}

	broadened, err := w.deps.Episodes.QueryEpisodesBroadened(ctx, w.cfg.Lookback, w.cfg.MaxRequests)
	if err != nil {
		return nil, fmt.Errorf("query episodes broadened: %w", err)
	}
	if len(broadened) > 0 {
		r.logger.Error(fmt.Sprintf("TranscriptWorker: episode join returned no rows but broadened query found %d", len(broadened)),
			"count", len(broadened))
	}
	return broadened, nil
}

// dispatch fills results batch by batch. Batches after a breaker trip are not
// started, and their episodes stay skipped.
func (w *TranscriptWorker) dispatch(ctx context.Context, r *run, episodes []domain.Episode, results []domain.EpisodeProcessingResult) error {
	total := len(episodes)
	for start := 0; start < total; start += w.cfg.BatchSize {
		if start > 0 {
			if r.breaker.Tripped() {
				r.logger.Warn("TranscriptWorker: quota exhausted, skipping remaining batches",
					"remaining", total-start, "reason", r.breaker.Reason())
				return nil
			}
			if err := w.sleep(ctx, w.cfg.BatchPause); err != nil {
				return err
			}
		}

		end := min(start+w.cfg.BatchSize, total)
		batch := episodes[start:end]

		pool, err := concurrency.NewPool[domain.Episode, domain.EpisodeProcessingResult](min(w.cfg.Concurrency, len(batch)))
		if err != nil {
			return err
		}

		offset := start
		res := pool.Process(ctx, batch, func(ctx context.Context, ep domain.Episode, _ int) (domain.EpisodeProcessingResult, error) {
			return w.processEpisode(ctx, r, ep), nil
		}, w.progressLogger(r, offset, total))

		for i := range batch {
			if taskErr := res.Errors[i]; taskErr != nil {
				results[offset+i] = taskFailure(batch[i], taskErr)
				continue
			}
			results[offset+i] = res.Results[i]
		}
	}
	return ctx.Err()
}

// taskFailure converts a pool-level error into an episode result. Items the
// pool never started because the context ended stay skipped.
func taskFailure(ep domain.Episode, err error) domain.EpisodeProcessingResult {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.EpisodeProcessingResult{EpisodeID: ep.ID, Status: domain.StatusSkipped, Error: err.Error()}
	}
	return domain.EpisodeProcessingResult{EpisodeID: ep.ID, Status: domain.KindError, Error: err.Error()}
}

// progressLogger logs each time the run crosses another 10% and on the last item.
func (w *TranscriptWorker) progressLogger(r *run, offset, total int) concurrency.ProgressFunc {
	lastBucket := -1
	if total > 0 {
		lastBucket = offset * 10 / total
	}
	return func(p concurrency.Progress) {
		done := offset + p.Completed
		bucket := done * 10 / total
		if bucket == lastBucket && done != total {
			return
		}
		lastBucket = bucket
		r.logger.Info("TranscriptWorker: progress",
			"completed", done,
			"total", total,
			"active", p.Active,
			"percent", fmt.Sprintf("%.0f", float64(done)*100/float64(total)),
			"eta", p.EstimatedRemaining.Round(time.Second).String())
	}
}

func (w *TranscriptWorker) recordHistory(ctx context.Context, r *run, started time.Time, summary domain.WorkerSummary, runErr error) {
	if w.deps.History == nil {
		return
	}
	if err := w.deps.History.RecordRun(context.WithoutCancel(ctx), started, summary, runErr); err != nil {
		r.logger.Warn("TranscriptWorker: failed to record run history", "error", err)
	}
}

func (w *TranscriptWorker) since(t time.Time) int64 {
	return w.now().Sub(t).Milliseconds()
}
