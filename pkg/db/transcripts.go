package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"podnotes/pkg/domain"
)

// ErrRecordNotFound is returned when an update matches no transcript row.
var ErrRecordNotFound = errors.New("db: transcript record not found")

// TranscriptStore writes transcript status rows over SQL. Inserts surface the
// driver's unique violation (*pgconn.PgError, code 23505) unchanged.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore needs a direct SQL connection.
func NewTranscriptStore(p DBProvider) (*TranscriptStore, error) {
	db, err := sqlDB(p)
	if err != nil {
		return nil, err
	}
	return &TranscriptStore{db: db}, nil
}

const insertTranscriptQuery = `INSERT INTO transcripts
  (episode_id, initial_status, current_status, storage_path, word_count, source, error_details)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7)
RETURNING id`

// Insert creates the row for rec.EpisodeID.
func (s *TranscriptStore) Insert(ctx context.Context, rec domain.TranscriptRecord) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, insertTranscriptQuery,
		rec.EpisodeID,
		string(rec.InitialStatus),
		string(rec.CurrentStatus),
		rec.StoragePath,
		nullableInt(rec.WordCount),
		rec.Source,
		nullableString(rec.ErrorDetails),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert transcript: %w", err)
	}
	return id, nil
}

// Update patches the row for episodeID. error_details is only touched when
// the patch clears or replaces it.
func (s *TranscriptStore) Update(ctx context.Context, episodeID string, patch domain.TranscriptPatch) error {
	sets := []string{
		"current_status = $1",
		"storage_path = NULLIF($2, '')",
		"word_count = $3",
		"source = NULLIF($4, '')",
		"updated_at = now()",
	}
	args := []any{string(patch.CurrentStatus), patch.StoragePath, nullableInt(patch.WordCount), patch.Source}

	switch {
	case patch.ClearErrorDetails:
		sets = append(sets, "error_details = NULL")
	case patch.ErrorDetails != nil:
		args = append(args, *patch.ErrorDetails)
		sets = append(sets, fmt.Sprintf("error_details = $%d", len(args)))
	}
	args = append(args, episodeID)

	query := fmt.Sprintf("UPDATE transcripts SET %s WHERE episode_id = $%d AND deleted_at IS NULL",
		strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update transcript %s: %w", episodeID, ErrRecordNotFound)
	}
	return nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
