package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"podnotes/pkg/domain"
	"podnotes/pkg/filter"
)

// broadenedScanFactor bounds how many raw rows the broadened query reads per
// requested candidate before filtering in memory.
const broadenedScanFactor = 10

// EpisodeStore runs the episode selection queries.
type EpisodeStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewEpisodeStore needs a direct SQL connection.
func NewEpisodeStore(p DBProvider) (*EpisodeStore, error) {
	db, err := sqlDB(p)
	if err != nil {
		return nil, err
	}
	return &EpisodeStore{db: db, now: time.Now}, nil
}

const episodeColumns = `e.id, e.show_id, COALESCE(e.guid, ''), COALESCE(e.episode_url, ''),
	COALESCE(e.title, ''), e.pub_date, e.deleted_at,
	s.id, COALESCE(s.title, ''), COALESCE(s.rss_url, ''), s.deleted_at`

const needingTranscriptsQuery = `SELECT ` + episodeColumns + `
FROM episodes e
JOIN shows s ON s.id = e.show_id
WHERE e.deleted_at IS NULL
  AND s.deleted_at IS NULL
  AND COALESCE(s.rss_url, '') <> ''
  AND e.pub_date >= $1
  AND NOT EXISTS (
    SELECT 1 FROM transcripts t
    WHERE t.episode_id = e.id AND t.deleted_at IS NULL
  )
ORDER BY e.pub_date DESC
LIMIT $2`

// QueryEpisodesNeedingTranscripts returns episodes published within lookback
// that have a show feed URL and no live transcript row, newest first.
func (s *EpisodeStore) QueryEpisodesNeedingTranscripts(ctx context.Context, lookback time.Duration, limit int) ([]domain.Episode, error) {
	cutoff := s.now().Add(-lookback)
	rows, err := s.db.QueryContext(ctx, needingTranscriptsQuery, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query episodes needing transcripts: %w", err)
	}
	return scanJoinedEpisodes(rows)
}

const recentlyTranscribedQuery = `SELECT ` + episodeColumns + `
FROM transcripts t
JOIN episodes e ON e.id = t.episode_id
JOIN shows s ON s.id = e.show_id
WHERE t.deleted_at IS NULL
ORDER BY t.created_at DESC
LIMIT $1`

// QueryRecentlyTranscribed returns the episodes of the n most recent
// transcript rows, for reprocessing regardless of existing rows.
func (s *EpisodeStore) QueryRecentlyTranscribed(ctx context.Context, n int) ([]domain.Episode, error) {
	rows, err := s.db.QueryContext(ctx, recentlyTranscribedQuery, n)
	if err != nil {
		return nil, fmt.Errorf("query recently transcribed episodes: %w", err)
	}
	return scanJoinedEpisodes(rows)
}

// QueryEpisodesBroadened reads episodes, shows and transcript ids with
// separate unjoined queries and applies the selection rules in memory. It
// yields the same candidates as QueryEpisodesNeedingTranscripts when the
// join works.
func (s *EpisodeStore) QueryEpisodesBroadened(ctx context.Context, lookback time.Duration, limit int) ([]domain.Episode, error) {
	cutoff := s.now().Add(-lookback)

	episodes, err := s.recentEpisodes(ctx, cutoff, limit*broadenedScanFactor)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		return nil, nil
	}

	showIDs := make([]string, 0, len(episodes))
	episodeIDs := make([]string, 0, len(episodes))
	seen := make(map[string]bool)
	for _, ep := range episodes {
		episodeIDs = append(episodeIDs, ep.ID)
		if !seen[ep.ShowID] {
			seen[ep.ShowID] = true
			showIDs = append(showIDs, ep.ShowID)
		}
	}

	shows, err := s.showsByID(ctx, showIDs)
	if err != nil {
		return nil, err
	}
	for i := range episodes {
		if show, ok := shows[episodes[i].ShowID]; ok {
			episodes[i].Show = &show
		}
	}

	transcribed, err := s.transcribedEpisodeIDs(ctx, episodeIDs)
	if err != nil {
		return nil, err
	}

	kept, err := filter.FilterEpisodes(ctx, episodes,
		filter.NewEligibleFilter(),
		filter.NewPublishedSinceFilter(cutoff),
		filter.NewAlreadyTranscribedFilter(transcribed),
	)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, nil
}

func (s *EpisodeStore) recentEpisodes(ctx context.Context, cutoff time.Time, limit int) ([]domain.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, show_id, COALESCE(guid, ''), COALESCE(episode_url, ''),
	COALESCE(title, ''), pub_date, deleted_at
FROM episodes
WHERE pub_date >= $1
ORDER BY pub_date DESC
LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []domain.Episode
	for rows.Next() {
		var (
			ep      domain.Episode
			deleted sql.NullTime
		)
		if err := rows.Scan(&ep.ID, &ep.ShowID, &ep.GUID, &ep.AudioURL, &ep.Title, &ep.PublishedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.DeletedAt = nullTime(deleted)
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return out, nil
}

func (s *EpisodeStore) showsByID(ctx context.Context, ids []string) (map[string]domain.Show, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, COALESCE(title, ''), COALESCE(rss_url, ''), deleted_at
FROM shows WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query shows: %w", err)
	}
	defer rows.Close()

	shows := make(map[string]domain.Show, len(ids))
	for rows.Next() {
		var (
			show    domain.Show
			deleted sql.NullTime
		)
		if err := rows.Scan(&show.ID, &show.Title, &show.RSSURL, &deleted); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		show.DeletedAt = nullTime(deleted)
		shows[show.ID] = show
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shows: %w", err)
	}
	return shows, nil
}

func (s *EpisodeStore) transcribedEpisodeIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT episode_id FROM transcripts
WHERE deleted_at IS NULL AND episode_id::text = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query transcribed episodes: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transcribed episode: %w", err)
		}
		set[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcribed episodes: %w", err)
	}
	return set, nil
}

func scanJoinedEpisodes(rows *sql.Rows) ([]domain.Episode, error) {
	defer rows.Close()

	var out []domain.Episode
	for rows.Next() {
		var (
			ep             domain.Episode
			show           domain.Show
			epDel, showDel sql.NullTime
		)
		if err := rows.Scan(
			&ep.ID, &ep.ShowID, &ep.GUID, &ep.AudioURL, &ep.Title, &ep.PublishedAt, &epDel,
			&show.ID, &show.Title, &show.RSSURL, &showDel,
		); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.DeletedAt = nullTime(epDel)
		show.DeletedAt = nullTime(showDel)
		ep.Show = &show
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return out, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
