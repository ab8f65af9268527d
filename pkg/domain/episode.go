package domain

import (
	"strings"
	"time"
)

// Show is the podcast an episode belongs to. Only the fields the transcript
// pipeline reads are modelled here.
type Show struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	RSSURL    string     `json:"rss_url"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Episode is a read-only view of an episode row joined to its show.
type Episode struct {
	ID          string     `json:"id"`
	ShowID      string     `json:"show_id"`
	GUID        string     `json:"guid"`
	AudioURL    string     `json:"episode_url"`
	Title       string     `json:"title"`
	PublishedAt time.Time  `json:"pub_date"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`

	// Show is nil when the join to the owning show could not be resolved.
	Show *Show `json:"show,omitempty"`
}

// FeedURL returns the trimmed RSS URL of the owning show, or "" when unknown.
func (e Episode) FeedURL() string {
	if e.Show == nil {
		return ""
	}
	return strings.TrimSpace(e.Show.RSSURL)
}

// Eligible reports whether the episode may be sent to a transcript provider:
// it must not be soft-deleted and its show must carry a feed URL.
func (e Episode) Eligible() bool {
	if e.DeletedAt != nil {
		return false
	}
	return e.FeedURL() != ""
}
