package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Segment is one timed utterance of a provider transcript.
type Segment struct {
	Speaker string
	Text    string
}

// NormalizeTranscriptText turns provider text that may carry HTML markup
// (<p>, <br>, entities) into plain text with collapsed whitespace.
//
// Plain text is returned trimmed and whitespace-collapsed without parsing.
// If parsing fails the raw text is used instead.
func NormalizeTranscriptText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !looksLikeHTML(raw) {
		return collapseWhitespace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseWhitespace(raw)
	}

	// Block-level breaks would otherwise glue words together.
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("p, div, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})

	return collapseWhitespace(doc.Text())
}

// JoinSegments renders segments one per line as "Speaker: text". Segments
// with no text after normalization are dropped.
func JoinSegments(segments []Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := NormalizeTranscriptText(seg.Text)
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(seg.Speaker)
		if speaker != "" {
			text = speaker + ": " + text
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// WordCount is a whitespace token count.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func looksLikeHTML(s string) bool {
	return (strings.Contains(s, "<") && strings.Contains(s, ">")) || strings.Contains(s, "&")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
