package domain

import "time"

// TranscriptFile is the blob payload written to object storage for an episode
// that has transcript text. It is serialized as one JSON line and gzipped.
type TranscriptFile struct {
	EpisodeID  string    `json:"episode_id"`
	ShowID     string    `json:"show_id"`
	Transcript string    `json:"transcript"`
	CreatedAt  time.Time `json:"created_at"`
}

// TranscriptRecord is the persisted status row, unique on EpisodeID.
type TranscriptRecord struct {
	ID            string `json:"id,omitempty"`
	EpisodeID     string `json:"episode_id"`
	InitialStatus Kind   `json:"initial_status"`
	CurrentStatus Kind   `json:"current_status"`
	// StoragePath is empty unless the status is full or partial.
	StoragePath  string  `json:"storage_path"`
	WordCount    *int    `json:"word_count"`
	Source       string  `json:"source"`
	ErrorDetails *string `json:"error_details"`
}

// TranscriptPatch is applied to an existing record in overwrite mode.
type TranscriptPatch struct {
	CurrentStatus Kind
	StoragePath   string
	WordCount     *int
	Source        string
	// ErrorDetails replaces the stored details when non-nil.
	ErrorDetails *string
	// ClearErrorDetails nulls the stored details. It wins over ErrorDetails.
	ClearErrorDetails bool
}
