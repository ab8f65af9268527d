// Package persistence writes transcript blobs and status rows. Status rows are
// inserted optimistically: a unique violation on episode_id means another run
// already recorded the episode, which is not an error.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"podnotes/pkg/domain"
	"podnotes/pkg/storage"
)

// RecordStore is the relational side of persistence.
type RecordStore interface {
	// Insert creates a row and returns its id.
	Insert(ctx context.Context, rec domain.TranscriptRecord) (string, error)
	// Update patches the row for episodeID.
	Update(ctx context.Context, episodeID string, patch domain.TranscriptPatch) error
}

// Outcome describes what RecordTranscript did.
type Outcome int

const (
	Inserted Outcome = iota
	AlreadyRecorded
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyRecorded:
		return "already_recorded"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique-constraint conflict, either
// as a pgx error or in the "(23505) duplicate key ..." text form PostgREST uses.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "("+uniqueViolationCode+")")
}

// Writer persists transcript files and records.
type Writer struct {
	files     storage.Uploader
	records   RecordStore
	overwrite bool
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Writer.
type Option func(*Writer)

// WithOverwrite turns conflicting inserts into explicit updates.
func WithOverwrite(overwrite bool) Option {
	return func(w *Writer) { w.overwrite = overwrite }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter creates a Writer.
func NewWriter(files storage.Uploader, records RecordStore, opts ...Option) *Writer {
	w := &Writer{
		files:   files,
		records: records,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Overwrite reports whether conflicts are resolved by updating.
func (w *Writer) Overwrite() bool { return w.overwrite }

// StoreTranscriptFile uploads the gzipped transcript for ep and returns its
// storage path. The upload always overwrites, so retrying is safe.
func (w *Writer) StoreTranscriptFile(ctx context.Context, ep domain.Episode, text string) (string, error) {
	showID := ep.ShowID
	if showID == "" && ep.Show != nil {
		showID = ep.Show.ID
	}
	if showID == "" || ep.ID == "" {
		return "", fmt.Errorf("store transcript: episode %q has no show id", ep.ID)
	}

	data, err := storage.EncodeTranscriptFile(domain.TranscriptFile{
		EpisodeID:  ep.ID,
		ShowID:     showID,
		Transcript: text,
		CreatedAt:  w.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("store transcript: %w", err)
	}

	path := storage.TranscriptPath(showID, ep.ID)
	if err := w.files.Upload(ctx, path, data, storage.TranscriptContentType, true); err != nil {
		return "", fmt.Errorf("store transcript: %w", err)
	}
	return path, nil
}

// RecordTranscript inserts the status row for rec.EpisodeID. On a unique
// violation it either reports AlreadyRecorded or, in overwrite mode, updates
// the existing row. Any other error is returned.
func (w *Writer) RecordTranscript(ctx context.Context, rec domain.TranscriptRecord) (Outcome, error) {
	if rec.InitialStatus == "" {
		rec.InitialStatus = rec.CurrentStatus
	}

	id, err := w.records.Insert(ctx, rec)
	if err == nil {
		w.logger.Debug("Persistence: transcript recorded",
			"episode_id", rec.EpisodeID, "id", id, "status", rec.CurrentStatus)
		return Inserted, nil
	}
	if !IsUniqueViolation(err) {
		return Inserted, fmt.Errorf("record transcript %s: %w", rec.EpisodeID, err)
	}

	if !w.overwrite {
		w.logger.Info("Persistence: transcript already recorded, skipping",
			"episode_id", rec.EpisodeID, "status", rec.CurrentStatus)
		return AlreadyRecorded, nil
	}

	if err := w.records.Update(ctx, rec.EpisodeID, patchFor(rec)); err != nil {
		return Updated, fmt.Errorf("overwrite transcript %s: %w", rec.EpisodeID, err)
	}
	w.logger.Info("Persistence: transcript overwritten",
		"episode_id", rec.EpisodeID, "status", rec.CurrentStatus)
	return Updated, nil
}

// patchFor clears error details on any non-error status. An error status
// replaces them only when new details are present.
func patchFor(rec domain.TranscriptRecord) domain.TranscriptPatch {
	patch := domain.TranscriptPatch{
		CurrentStatus: rec.CurrentStatus,
		StoragePath:   rec.StoragePath,
		WordCount:     rec.WordCount,
		Source:        rec.Source,
	}
	if rec.CurrentStatus != domain.KindError {
		patch.ClearErrorDetails = true
		return patch
	}
	if rec.ErrorDetails != nil && *rec.ErrorDetails != "" {
		patch.ErrorDetails = rec.ErrorDetails
	}
	return patch
}
