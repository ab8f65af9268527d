package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSetsHeadersPerType(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	tests := []struct {
		name       string
		client     *HTTPClient
		wantUA     string
		wantAccept string
	}{
		{"api", NewClient(APIClient), DefaultUserAgent, "application/json"},
		{"api custom ua", NewClient(APIClient, WithUserAgent("tester/2")), "tester/2", "application/json"},
		{"feed", NewClient(FeedClient), "curl/8.7.1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.client.Get(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			resp.Body.Close()
			if gotUA != tt.wantUA {
				t.Errorf("User-Agent = %q, want %q", gotUA, tt.wantUA)
			}
			if gotAccept != tt.wantAccept {
				t.Errorf("Accept = %q, want %q", gotAccept, tt.wantAccept)
			}
		})
	}
}

func TestStandardClientAppliesHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := NewClient(FeedClient).Standard().Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if gotUA != "curl/8.7.1" {
		t.Errorf("User-Agent = %q, want curl/8.7.1", gotUA)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	resp, err := NewClient(APIClient).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	got := StatusError(resp).Error()
	if !strings.HasPrefix(got, "HTTP 429: slow down") {
		t.Errorf("StatusError = %q", got)
	}
}
