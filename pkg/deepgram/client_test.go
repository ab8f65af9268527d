package deepgram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeDeepgram serves audio HEAD requests under /audio and the listen API.
type fakeDeepgram struct {
	contentLength string
	listenStatus  int
	listenBody    string

	listenCalls atomic.Int32
	gotQuery    atomic.Value
	gotAuth     atomic.Value
	gotURL      atomic.Value
}

func (f *fakeDeepgram) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/audio"):
			if f.contentLength != "" {
				w.Header().Set("Content-Length", f.contentLength)
			}
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/v1/listen":
			f.listenCalls.Add(1)
			f.gotQuery.Store(r.URL.RawQuery)
			f.gotAuth.Store(r.Header.Get("Authorization"))
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			f.gotURL.Store(body["url"])
			status := f.listenStatus
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			w.Write([]byte(f.listenBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, maxMB float64) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "dg-key", MaxFileSizeMB: maxMB})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

const okListen = `{"results":{"channels":[{"alternatives":[{"transcript":" hello from the fallback "}]}]}}`

func TestTranscribeEpisode_Success(t *testing.T) {
	f := &fakeDeepgram{contentLength: strconv.Itoa(10 * bytesPerMB), listenBody: okListen}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	audioURL := srv.URL + "/audio/ep.mp3"
	got := newTestClient(t, srv, 200).TranscribeEpisode(context.Background(), audioURL)

	if !got.Success {
		t.Fatalf("Success = false, error %q", got.Error)
	}
	if got.Transcript != "hello from the fallback" {
		t.Errorf("Transcript = %q", got.Transcript)
	}
	if got.FileSizeMB != 10 {
		t.Errorf("FileSizeMB = %v, want 10", got.FileSizeMB)
	}
	if got.ProcessingTimeMs < 0 {
		t.Errorf("ProcessingTimeMs = %d", got.ProcessingTimeMs)
	}
	if auth := f.gotAuth.Load(); auth != "Token dg-key" {
		t.Errorf("Authorization = %v", auth)
	}
	if u := f.gotURL.Load(); u != audioURL {
		t.Errorf("submitted url = %v, want %s", u, audioURL)
	}
	query, _ := f.gotQuery.Load().(string)
	for _, want := range []string{"diarize=true", "filler_words=false", "model=nova-2"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %s", query, want)
		}
	}
}

func TestTranscribeEpisode_SizeGuardSkipsTranscription(t *testing.T) {
	f := &fakeDeepgram{contentLength: strconv.Itoa(300 * bytesPerMB), listenBody: okListen}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	got := newTestClient(t, srv, 200).TranscribeEpisode(context.Background(), srv.URL+"/audio/huge.mp3")

	if got.Success {
		t.Fatal("oversized audio must not succeed")
	}
	if !strings.Contains(got.Error, "file too large") {
		t.Errorf("Error = %q, want file size error", got.Error)
	}
	if got.FileSizeMB != 300 {
		t.Errorf("FileSizeMB = %v, want 300", got.FileSizeMB)
	}
	if n := f.listenCalls.Load(); n != 0 {
		t.Errorf("listen called %d times, want 0", n)
	}
}

func TestTranscribeEpisode_MissingContentLength(t *testing.T) {
	f := &fakeDeepgram{listenBody: okListen}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	got := newTestClient(t, srv, 200).TranscribeEpisode(context.Background(), srv.URL+"/audio/ep.mp3")

	if got.Success || !strings.Contains(got.Error, "Content-Length") {
		t.Errorf("result = %+v, want Content-Length error", got)
	}
	if n := f.listenCalls.Load(); n != 0 {
		t.Errorf("listen called %d times, want 0", n)
	}
}

type stubDoer func(*http.Request) (*http.Response, error)

func (s stubDoer) Do(req *http.Request) (*http.Response, error) { return s(req) }

func TestTranscribeEpisode_UnparsableContentLength(t *testing.T) {
	f := &fakeDeepgram{listenBody: okListen}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	audio := stubDoer(func(req *http.Request) (*http.Response, error) {
		h := http.Header{}
		h.Set("Content-Length", "lots")
		return &http.Response{StatusCode: http.StatusOK, Header: h, Body: io.NopCloser(strings.NewReader("")), ContentLength: -1}, nil
	})
	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "dg-key"}, WithAudioClient(audio))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got := c.TranscribeEpisode(context.Background(), "https://cdn.example.com/ep.mp3")
	if got.Success || !strings.Contains(got.Error, "bad Content-Length") {
		t.Errorf("result = %+v, want bad Content-Length error", got)
	}
	if n := f.listenCalls.Load(); n != 0 {
		t.Errorf("listen called %d times, want 0", n)
	}
}

func TestTranscribeEpisode_RejectsNonHTTPURL(t *testing.T) {
	f := &fakeDeepgram{}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	for _, raw := range []string{"ftp://host/ep.mp3", "not a url", ""} {
		got := newTestClient(t, srv, 200).TranscribeEpisode(context.Background(), raw)
		if got.Success || got.Error == "" {
			t.Errorf("TranscribeEpisode(%q) = %+v, want failure", raw, got)
		}
	}
}

func TestTranscribeEpisode_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"rate limited", http.StatusTooManyRequests, "too many", ErrMsgRateLimited},
		{"gateway timeout", http.StatusGatewayTimeout, "", ErrMsgTimeout},
		{"bad request", http.StatusBadRequest, "bad audio", "HTTP 400: bad audio"},
		{"no transcript", http.StatusOK, `{"results":{"channels":[]}}`, "no transcript in response"},
		{"no results", http.StatusOK, `{}`, "no transcript in response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeDeepgram{contentLength: "1024", listenStatus: tt.status, listenBody: tt.body}
			srv := httptest.NewServer(f.handler())
			defer srv.Close()

			got := newTestClient(t, srv, 200).TranscribeEpisode(context.Background(), srv.URL+"/audio/ep.mp3")
			if got.Success {
				t.Fatal("expected failure")
			}
			if got.Error != tt.want {
				t.Errorf("Error = %q, want %q", got.Error, tt.want)
			}
			if got.FileSizeMB <= 0 {
				t.Errorf("FileSizeMB = %v, want it populated", got.FileSizeMB)
			}
		})
	}
}
