package worker

import (
	"context"
	"fmt"
	"strings"

	"podnotes/pkg/domain"
)

// processEpisode runs the provider chain for one episode and persists the
// outcome. It never returns an error: failures land in the result.
func (w *TranscriptWorker) processEpisode(ctx context.Context, r *run, ep domain.Episode) (res domain.EpisodeProcessingResult) {
	started := w.now()
	res = domain.EpisodeProcessingResult{EpisodeID: ep.ID}
	defer func() { res.ElapsedMs = w.since(started) }()

	if r.breaker.Tripped() {
		res.Status = domain.StatusSkipped
		return res
	}

	result := w.deps.Transcripts.Lookup(ctx, ep)
	meta := result.Meta()
	res.Source = meta.Source
	res.CreditsConsumed = meta.CreditsConsumed

	switch v := result.(type) {
	case domain.Full:
		w.persistText(ctx, r, ep, &res, domain.KindFull, v.Text, &v.WordCount, meta.Source)
	case domain.Partial:
		r.logger.Debug("TranscriptWorker: partial transcript", "episode_id", ep.ID, "reason", v.Reason)
		w.persistText(ctx, r, ep, &res, domain.KindPartial, v.Text, &v.WordCount, meta.Source)
	case domain.ErrorResult:
		if r.breaker.Observe(v.Message) {
			r.logger.Warn("TranscriptWorker: quota exhausted, suppressing further primary calls",
				"episode_id", ep.ID, "error", v.Message)
		}
		w.handleUnavailable(ctx, r, ep, &res, domain.KindError, v.Message)
	case domain.NoMatch:
		w.handleUnavailable(ctx, r, ep, &res, domain.KindNoMatch, v.Reason)
	case domain.NotFound:
		w.handleUnavailable(ctx, r, ep, &res, domain.KindNotFound, "")
	case domain.Processing:
		w.handleUnavailable(ctx, r, ep, &res, domain.KindProcessing, "")
	default:
		res.Status = domain.KindError
		res.Error = fmt.Sprintf("unhandled transcript result %T", result)
	}
	return res
}

// persistText uploads the transcript, then records it. A failed upload means
// no row is written. wordCount is nil when the source does not report one.
func (w *TranscriptWorker) persistText(ctx context.Context, r *run, ep domain.Episode, res *domain.EpisodeProcessingResult, kind domain.Kind, text string, wordCount *int, source string) {
	path, err := w.deps.Persister.StoreTranscriptFile(ctx, ep, text)
	if err != nil {
		r.logger.Error("TranscriptWorker: failed to store transcript", "episode_id", ep.ID, "error", err)
		res.Status = domain.KindError
		res.Error = err.Error()
		return
	}

	rec := domain.TranscriptRecord{
		EpisodeID:     ep.ID,
		InitialStatus: kind,
		CurrentStatus: kind,
		StoragePath:   path,
		WordCount:     wordCount,
		Source:        source,
	}
	if !w.record(ctx, r, res, rec) {
		return
	}

	res.Status = kind
	res.StoragePath = path
	res.WordCount = rec.WordCount
	res.Source = source
}

// handleUnavailable deals with a primary outcome that carries no text. It
// tries the fallback when policy allows, else records the primary outcome.
func (w *TranscriptWorker) handleUnavailable(ctx context.Context, r *run, ep domain.Episode, res *domain.EpisodeProcessingResult, kind domain.Kind, detail string) {
	if !w.fallbackWanted(r, ep, kind) {
		w.recordPrimary(ctx, r, ep, res, kind, detail)
		return
	}

	if !r.fallbackBudgetLeft(w.cfg.MaxFallbacksPerRun) {
		w.skipForBudget(ctx, r, ep, res, kind, detail)
		return
	}

	audioURL, err := w.audioURL(ctx, ep)
	if err != nil {
		r.logger.Warn("TranscriptWorker: no audio for fallback", "episode_id", ep.ID, "error", err)
		w.recordPrimary(ctx, r, ep, res, kind, detail)
		return
	}

	// Another episode may have taken the last unit while the feed was read.
	if !r.reserveFallback(w.cfg.MaxFallbacksPerRun) {
		w.skipForBudget(ctx, r, ep, res, kind, detail)
		return
	}

	fb := w.deps.Fallback.TranscribeEpisode(ctx, audioURL)
	if fb.Success {
		r.fallbackSuccesses.Add(1)
		r.logger.Info("TranscriptWorker: fallback transcription succeeded",
			"episode_id", ep.ID, "primary_status", kind, "file_size_mb", fb.FileSizeMB, "processing_ms", fb.ProcessingTimeMs)
		w.persistText(ctx, r, ep, res, domain.KindFull, fb.Transcript, nil, FallbackSource)
		return
	}

	r.fallbackFailures.Add(1)
	msg := fmt.Sprintf("Primary: %s; Fallback: %s", kind, fb.Error)
	r.logger.Warn("TranscriptWorker: fallback transcription failed", "episode_id", ep.ID, "error", msg)

	rec := domain.TranscriptRecord{
		EpisodeID:     ep.ID,
		InitialStatus: domain.KindError,
		CurrentStatus: domain.KindError,
		Source:        FallbackSource,
		ErrorDetails:  &msg,
	}
	if !w.record(ctx, r, res, rec) {
		return
	}
	res.Status = kind
	res.Source = FallbackSource
	res.Error = msg
}

func (w *TranscriptWorker) skipForBudget(ctx context.Context, r *run, ep domain.Episode, res *domain.EpisodeProcessingResult, kind domain.Kind, detail string) {
	r.fallbackSkippedBudget.Add(1)
	r.logger.Warn("TranscriptWorker: fallback budget exhausted, keeping primary outcome",
		"episode_id", ep.ID, "max_fallbacks_per_run", w.cfg.MaxFallbacksPerRun, "status", kind)
	w.recordPrimary(ctx, r, ep, res, kind, detail)
}

func (w *TranscriptWorker) recordPrimary(ctx context.Context, r *run, ep domain.Episode, res *domain.EpisodeProcessingResult, kind domain.Kind, detail string) {
	rec := domain.TranscriptRecord{
		EpisodeID:     ep.ID,
		InitialStatus: kind,
		CurrentStatus: kind,
		Source:        res.Source,
	}
	if kind == domain.KindError && detail != "" {
		d := detail
		rec.ErrorDetails = &d
	}
	if !w.record(ctx, r, res, rec) {
		return
	}
	res.Status = kind
	if kind == domain.KindError {
		res.Error = detail
	}
}

// record writes rec. On failure it marks res as an error and returns false.
func (w *TranscriptWorker) record(ctx context.Context, r *run, res *domain.EpisodeProcessingResult, rec domain.TranscriptRecord) bool {
	outcome, err := w.deps.Persister.RecordTranscript(ctx, rec)
	if err != nil {
		r.logger.Error("TranscriptWorker: failed to record transcript", "episode_id", rec.EpisodeID, "error", err)
		res.Status = domain.KindError
		res.Error = err.Error()
		return false
	}
	r.logger.Debug("TranscriptWorker: recorded transcript", "episode_id", rec.EpisodeID, "status", rec.CurrentStatus, "outcome", outcome.String())
	return true
}

func (w *TranscriptWorker) fallbackWanted(r *run, ep domain.Episode, kind domain.Kind) bool {
	return w.cfg.FallbackEnabled &&
		w.deps.Fallback != nil &&
		w.fallbackOn[kind] &&
		ep.Eligible() &&
		!r.breaker.Tripped()
}

func (w *TranscriptWorker) audioURL(ctx context.Context, ep domain.Episode) (string, error) {
	if u := strings.TrimSpace(ep.AudioURL); u != "" {
		return u, nil
	}
	if w.deps.Resolver == nil {
		return "", fmt.Errorf("episode %s has no audio url", ep.ID)
	}
	return w.deps.Resolver.ResolveAudioURL(ctx, ep.FeedURL(), ep.GUID)
}

func (r *run) fallbackBudgetLeft(limit int) bool {
	return limit <= 0 || r.fallbackAttempts.Load() < int64(limit)
}

// reserveFallback takes one unit of the per-run budget. limit <= 0 is unlimited.
func (r *run) reserveFallback(limit int) bool {
	if limit <= 0 {
		r.fallbackAttempts.Add(1)
		return true
	}
	for {
		cur := r.fallbackAttempts.Load()
		if cur >= int64(limit) {
			return false
		}
		if r.fallbackAttempts.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}
