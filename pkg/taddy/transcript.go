package taddy

import (
	"context"
	"fmt"
	"strings"

	"podnotes/pkg/content"
	"podnotes/pkg/domain"
)

// Episode transcription states reported by Taddy.
const (
	statusCompleted       = "COMPLETED"
	statusProcessing      = "PROCESSING"
	statusFailed          = "FAILED"
	statusNotTranscribing = "NOT_TRANSCRIBING"
)

// A transcript whose last segment ends before this share of the episode
// duration is reported as partial.
const completeCoverage = 0.9

const seriesQuery = `query getPodcastSeries($rssUrl: String) {
  getPodcastSeries(rssUrl: $rssUrl) { uuid name }
}`

const episodeQuery = `query getPodcastEpisode($guid: String, $seriesUuidForLookup: ID) {
  getPodcastEpisode(guid: $guid, seriesUuidForLookup: $seriesUuidForLookup) {
    uuid name duration taddyTranscribeStatus
  }
}`

const transcriptQuery = `query getEpisodeTranscript($uuid: ID, $useOnDemandCreditsIfNeeded: Boolean) {
  getEpisodeTranscript(uuid: $uuid, useOnDemandCreditsIfNeeded: $useOnDemandCreditsIfNeeded) {
    id text speaker startTimecode endTimecode
  }
}`

type series struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type episode struct {
	UUID            string `json:"uuid"`
	Name            string `json:"name"`
	Duration        int    `json:"duration"` // seconds
	TranscribeState string `json:"taddyTranscribeStatus"`
}

type segment struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Speaker       string `json:"speaker"`
	StartTimecode int64  `json:"startTimecode"` // milliseconds
	EndTimecode   int64  `json:"endTimecode"`
}

// lookup accumulates per-call cost as requests succeed.
type lookup struct {
	c        *Client
	requests int
}

func (l *lookup) meta() domain.ResultMeta {
	credits := 0
	if l.c.cfg.Tier == TierBusiness {
		credits = l.requests
	}
	return domain.ResultMeta{Source: SourceName, CreditsConsumed: credits}
}

func (l *lookup) query(ctx context.Context, op, q string, vars map[string]any, out any) error {
	if err := l.c.query(ctx, op, q, vars, out); err != nil {
		return err
	}
	l.requests++
	return nil
}

// FetchTranscript resolves the transcript for the episode identified by the
// show's feed URL and the episode GUID. Transport and API failures are
// returned as errors. Provider-side outcomes (no match, not found, processing,
// failed) are returned as result variants.
func (c *Client) FetchTranscript(ctx context.Context, feedURL, guid string) (domain.TranscriptResult, error) {
	l := &lookup{c: c}

	var seriesData struct {
		Series *series `json:"getPodcastSeries"`
	}
	if err := l.query(ctx, "getPodcastSeries", seriesQuery, map[string]any{"rssUrl": feedURL}, &seriesData); err != nil {
		return nil, err
	}
	if seriesData.Series == nil || seriesData.Series.UUID == "" {
		return domain.NoMatch{ResultMeta: l.meta(), Reason: "podcast series not found for feed"}, nil
	}

	var episodeData struct {
		Episode *episode `json:"getPodcastEpisode"`
	}
	vars := map[string]any{"guid": guid, "seriesUuidForLookup": seriesData.Series.UUID}
	if err := l.query(ctx, "getPodcastEpisode", episodeQuery, vars, &episodeData); err != nil {
		return nil, err
	}
	ep := episodeData.Episode
	if ep == nil || ep.UUID == "" {
		return domain.NoMatch{ResultMeta: l.meta(), Reason: "episode not found in series"}, nil
	}

	business := c.cfg.Tier == TierBusiness
	switch strings.ToUpper(ep.TranscribeState) {
	case statusFailed:
		return domain.ErrorResult{ResultMeta: l.meta(), Message: "transcription failed at provider"}, nil
	case statusProcessing:
		if business {
			return domain.Processing{ResultMeta: l.meta()}, nil
		}
		return domain.NotFound{ResultMeta: l.meta()}, nil
	case statusCompleted:
		return l.transcript(ctx, ep, false)
	default:
		if !business {
			return domain.NotFound{ResultMeta: l.meta()}, nil
		}
		return l.transcript(ctx, ep, true)
	}
}

func (l *lookup) transcript(ctx context.Context, ep *episode, onDemand bool) (domain.TranscriptResult, error) {
	var data struct {
		Segments []segment `json:"getEpisodeTranscript"`
	}
	vars := map[string]any{"uuid": ep.UUID, "useOnDemandCreditsIfNeeded": onDemand}
	if err := l.query(ctx, "getEpisodeTranscript", transcriptQuery, vars, &data); err != nil {
		return nil, err
	}

	segs := make([]content.Segment, 0, len(data.Segments))
	var lastEnd int64
	for _, s := range data.Segments {
		segs = append(segs, content.Segment{Speaker: s.Speaker, Text: s.Text})
		if s.EndTimecode > lastEnd {
			lastEnd = s.EndTimecode
		}
	}
	text := content.JoinSegments(segs)
	if text == "" {
		// An on-demand request was accepted but nothing is ready yet.
		if onDemand {
			return domain.Processing{ResultMeta: l.meta()}, nil
		}
		return domain.NotFound{ResultMeta: l.meta()}, nil
	}

	words := content.WordCount(text)
	if ep.Duration > 0 {
		coverage := float64(lastEnd) / float64(ep.Duration*1000)
		if coverage < completeCoverage {
			return domain.Partial{
				ResultMeta: l.meta(),
				Text:       text,
				WordCount:  words,
				Reason:     fmt.Sprintf("transcript covers %d%% of episode", int(coverage*100)),
			}, nil
		}
	}
	return domain.Full{ResultMeta: l.meta(), Text: text, WordCount: words}, nil
}
