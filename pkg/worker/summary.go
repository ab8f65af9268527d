package worker

import "podnotes/pkg/domain"

// aggregate tallies per-episode results. Skipped episodes count toward the
// total only.
func aggregate(r *run, results []domain.EpisodeProcessingResult, elapsedMs int64) domain.WorkerSummary {
	s := domain.WorkerSummary{
		RunID:                 r.id,
		TotalEpisodes:         len(results),
		FallbackAttempts:      int(r.fallbackAttempts.Load()),
		FallbackSuccesses:     int(r.fallbackSuccesses.Load()),
		FallbackFailures:      int(r.fallbackFailures.Load()),
		FallbackSkippedBudget: int(r.fallbackSkippedBudget.Load()),
		QuotaExhausted:        r.breaker.Tripped(),
		TotalElapsedMs:        elapsedMs,
	}

	var processingMs int64
	for _, res := range results {
		s.CreditsConsumed += res.CreditsConsumed
		if res.Status == domain.StatusSkipped {
			s.SkippedEpisodes++
			continue
		}
		s.ProcessedEpisodes++
		processingMs += res.ElapsedMs

		switch res.Status {
		case domain.KindFull, domain.KindPartial:
			s.AvailableTranscripts++
		case domain.KindProcessing:
			s.ProcessingCount++
		case domain.KindNotFound:
			s.NotFoundCount++
		case domain.KindNoMatch:
			s.NoMatchCount++
		case domain.KindError:
			s.ErrorCount++
		}
	}
	if s.ProcessedEpisodes > 0 {
		s.AverageProcessingTimeMs = processingMs / int64(s.ProcessedEpisodes)
	}
	return s
}
