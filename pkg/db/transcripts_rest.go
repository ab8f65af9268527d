package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"

	"podnotes/pkg/domain"
)

const transcriptsTable = "transcripts"

// RESTTable is the PostgREST surface the REST store needs. Errors carry the
// PostgREST "(code) message" form, so unique violations read "(23505) ...".
type RESTTable interface {
	Insert(ctx context.Context, row map[string]any) ([]byte, error)
	UpdateWhere(ctx context.Context, column, value string, patch map[string]any) ([]byte, error)
}

// RESTTranscriptStore writes transcript rows through PostgREST. It serves
// deployments that only have the Supabase URL and service key.
type RESTTranscriptStore struct {
	table RESTTable
}

// NewRESTTranscriptStore wraps table.
func NewRESTTranscriptStore(table RESTTable) (*RESTTranscriptStore, error) {
	if table == nil {
		return nil, errors.New("db: rest table is nil")
	}
	return &RESTTranscriptStore{table: table}, nil
}

// Insert creates the row and returns its id from the representation.
func (s *RESTTranscriptStore) Insert(ctx context.Context, rec domain.TranscriptRecord) (string, error) {
	row := map[string]any{
		"episode_id":     rec.EpisodeID,
		"initial_status": string(rec.InitialStatus),
		"current_status": string(rec.CurrentStatus),
		"storage_path":   emptyAsNil(rec.StoragePath),
		"word_count":     rec.WordCount,
		"source":         emptyAsNil(rec.Source),
		"error_details":  rec.ErrorDetails,
	}
	body, err := s.table.Insert(ctx, row)
	if err != nil {
		return "", fmt.Errorf("insert transcript: %w", err)
	}

	var created []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode inserted transcript: %w", err)
	}
	if len(created) == 0 {
		return "", nil
	}
	return created[0].ID, nil
}

// Update patches the row for episodeID.
func (s *RESTTranscriptStore) Update(ctx context.Context, episodeID string, patch domain.TranscriptPatch) error {
	body := map[string]any{
		"current_status": string(patch.CurrentStatus),
		"storage_path":   emptyAsNil(patch.StoragePath),
		"word_count":     patch.WordCount,
		"source":         emptyAsNil(patch.Source),
	}
	switch {
	case patch.ClearErrorDetails:
		body["error_details"] = nil
	case patch.ErrorDetails != nil:
		body["error_details"] = *patch.ErrorDetails
	}

	resp, err := s.table.UpdateWhere(ctx, "episode_id", episodeID, body)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	var updated []json.RawMessage
	if err := json.Unmarshal(resp, &updated); err == nil && len(updated) == 0 {
		return fmt.Errorf("update transcript %s: %w", episodeID, ErrRecordNotFound)
	}
	return nil
}

func emptyAsNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// supabaseTable adapts the SDK query builder to RESTTable.
type supabaseTable struct {
	client *supabase.Client
	name   string
}

// TranscriptsTable returns the transcripts table of an initialized SDK client.
func (c *SupabaseClient) TranscriptsTable() (RESTTable, error) {
	if c.supabaseSDK == nil {
		return nil, errors.New("db: supabase SDK is not initialized")
	}
	return &supabaseTable{client: c.supabaseSDK, name: transcriptsTable}, nil
}

// The SDK builders take no context, so cancellation is only checked up front.
func (t *supabaseTable) Insert(ctx context.Context, row map[string]any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := t.client.From(t.name).Insert(row, false, "", "representation", "").Execute()
	return body, err
}

// UpdateWhere only touches live rows; soft-deleted rows are left alone.
func (t *supabaseTable) UpdateWhere(ctx context.Context, column, value string, patch map[string]any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := t.client.From(t.name).Update(patch, "representation", "").
		Eq(column, value).
		Is("deleted_at", "null").
		Execute()
	return body, err
}
