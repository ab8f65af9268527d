package content

import "testing"

func TestNormalizeTranscriptText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"plain text", "  welcome   to\nthe show ", "welcome to the show"},
		{"paragraphs", "<p>Hello there.</p><p>General Kenobi.</p>", "Hello there. General Kenobi."},
		{"line breaks", "first line<br>second line<br/>third", "first line second line third"},
		{"entities", "rock &amp; roll", "rock & roll"},
		{"nested markup", "<div><em>so</em> <strong>much</strong> markup</div>", "so much markup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTranscriptText(tt.in); got != tt.want {
				t.Errorf("NormalizeTranscriptText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJoinSegments(t *testing.T) {
	segments := []Segment{
		{Speaker: "Host", Text: "<p>Welcome back.</p>"},
		{Speaker: "", Text: "music plays"},
		{Speaker: "Guest", Text: "   "},
		{Speaker: " Guest ", Text: "Thanks for having me."},
	}

	want := "Host: Welcome back.\nmusic plays\nGuest: Thanks for having me."
	if got := JoinSegments(segments); got != want {
		t.Errorf("JoinSegments = %q, want %q", got, want)
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("Host: Welcome back.\nGuest:  thanks "); got != 5 {
		t.Errorf("WordCount = %d, want 5", got)
	}
	if got := WordCount(""); got != 0 {
		t.Errorf("WordCount(\"\") = %d, want 0", got)
	}
}
