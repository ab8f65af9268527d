// Package feeds reads podcast RSS feeds to find episode audio enclosures.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEpisodeNotInFeed = errors.New("episode guid not found in feed")
	ErrNoEnclosure      = errors.New("feed item has no audio enclosure")
)

// EnclosureResolver maps (feed URL, episode GUID) to the audio enclosure URL.
// Each feed is fetched at most once per resolver, including failed fetches,
// so a resolver should live for a single worker run.
type EnclosureResolver struct {
	client *http.Client
	logger *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	feeds map[string]feedEntry
}

type feedEntry struct {
	enclosures map[string]string // guid -> audio url
	err        error
}

// NewEnclosureResolver uses client for feed requests. A nil client falls
// back to gofeed's default.
func NewEnclosureResolver(client *http.Client, logger *slog.Logger) *EnclosureResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EnclosureResolver{
		client: client,
		logger: logger,
		feeds:  make(map[string]feedEntry),
	}
}

// ResolveAudioURL returns the enclosure URL of the item whose GUID matches.
func (r *EnclosureResolver) ResolveAudioURL(ctx context.Context, feedURL, guid string) (string, error) {
	feedURL = strings.TrimSpace(feedURL)
	guid = strings.TrimSpace(guid)
	if feedURL == "" || guid == "" {
		return "", fmt.Errorf("resolve enclosure: feed url and guid are required")
	}

	entry := r.load(ctx, feedURL)
	if entry.err != nil {
		return "", entry.err
	}
	audioURL, ok := entry.enclosures[guid]
	if !ok {
		return "", ErrEpisodeNotInFeed
	}
	if audioURL == "" {
		return "", ErrNoEnclosure
	}
	return audioURL, nil
}

func (r *EnclosureResolver) load(ctx context.Context, feedURL string) feedEntry {
	r.mu.Lock()
	entry, ok := r.feeds[feedURL]
	r.mu.Unlock()
	if ok {
		return entry
	}

	v, _, _ := r.group.Do(feedURL, func() (any, error) {
		r.mu.Lock()
		entry, ok := r.feeds[feedURL]
		r.mu.Unlock()
		if ok {
			return entry, nil
		}

		entry = r.fetch(ctx, feedURL)
		r.mu.Lock()
		r.feeds[feedURL] = entry
		r.mu.Unlock()
		return entry, nil
	})
	return v.(feedEntry)
}

func (r *EnclosureResolver) fetch(ctx context.Context, feedURL string) feedEntry {
	// gofeed.Parser keeps per-parse state, so each fetch gets its own.
	fp := gofeed.NewParser()
	if r.client != nil {
		fp.Client = r.client
	}

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		r.logger.Warn("EnclosureResolver: failed to parse feed", "feed_url", feedURL, "error", err)
		return feedEntry{err: fmt.Errorf("parse feed %s: %w", feedURL, err)}
	}

	enclosures := make(map[string]string, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		guid := strings.TrimSpace(item.GUID)
		if guid == "" {
			continue
		}
		enclosures[guid] = audioEnclosure(item)
	}
	r.logger.Debug("EnclosureResolver: parsed feed", "feed_url", feedURL, "items", len(enclosures))
	return feedEntry{enclosures: enclosures}
}

// audioEnclosure prefers an audio/* enclosure and otherwise takes the first one.
func audioEnclosure(item *gofeed.Item) string {
	first := ""
	for _, enc := range item.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		if first == "" {
			first = strings.TrimSpace(enc.URL)
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return strings.TrimSpace(enc.URL)
		}
	}
	return first
}
