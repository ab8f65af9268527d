package domain

import "time"

// StatusSkipped marks an episode that was never started because the quota
// circuit breaker had already tripped. It is never persisted.
const StatusSkipped Kind = "skipped"

// EpisodeProcessingResult is produced once per episode per run.
type EpisodeProcessingResult struct {
	EpisodeID       string `json:"episode_id"`
	Status          Kind   `json:"status"`
	StoragePath     string `json:"storage_path,omitempty"`
	WordCount       *int   `json:"word_count,omitempty"`
	Source          string `json:"source,omitempty"`
	Error           string `json:"error,omitempty"`
	CreditsConsumed int    `json:"credits_consumed,omitempty"`
	ElapsedMs       int64  `json:"elapsed_ms"`
}

// WorkerSummary aggregates a single worker run.
type WorkerSummary struct {
	RunID string `json:"run_id,omitempty"`

	TotalEpisodes        int `json:"total_episodes"`
	ProcessedEpisodes    int `json:"processed_episodes"`
	SkippedEpisodes      int `json:"skipped_episodes"`
	AvailableTranscripts int `json:"available_transcripts"`
	ProcessingCount      int `json:"processing_count"`
	NotFoundCount        int `json:"not_found_count"`
	NoMatchCount         int `json:"no_match_count"`
	ErrorCount           int `json:"error_count"`

	FallbackAttempts      int `json:"fallback_attempts"`
	FallbackSuccesses     int `json:"fallback_successes"`
	FallbackFailures      int `json:"fallback_failures"`
	FallbackSkippedBudget int `json:"fallback_skipped_budget"`

	QuotaExhausted  bool `json:"quota_exhausted"`
	LockNotAcquired bool `json:"lock_not_acquired,omitempty"`
	CreditsConsumed int  `json:"credits_consumed"`

	TotalElapsedMs          int64 `json:"total_elapsed_ms"`
	AverageProcessingTimeMs int64 `json:"average_processing_time_ms"`
}

// TotalElapsed returns the run duration.
func (s WorkerSummary) TotalElapsed() time.Duration {
	return time.Duration(s.TotalElapsedMs) * time.Millisecond
}
