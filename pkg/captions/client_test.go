package captions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(context.Context) error {
	l.calls.Add(1)
	return nil
}

func pageWithTrack(baseURL string) string {
	return `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"` +
		baseURL + `/api/timedtext?v=abc12345678&lang=en","name":{"simpleText":"English"},"vssId":".en","languageCode":"en","isTranslatable":true,"trackName":""}],"audioTracks":[{"captionTrackIndices":[0]}]}}};</script></html>`
}

const twoLineTranscript = `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0.5" dur="1.25">Hello World</text><text start="1.75" dur="2">It&amp;#39;s ME</text></transcript>`

func TestFetchStatusPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("v") {
		case "throttled00":
			w.WriteHeader(http.StatusTooManyRequests)
		case "missing0000":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("the-error"))
		default:
			_, _ = w.Write([]byte("response-data"))
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	ctx := context.Background()

	page, err := client.FetchVideoPage(ctx, "abc12345678")
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if page != "response-data" {
		t.Fatalf("page = %q, want %q", page, "response-data")
	}

	if _, err := client.FetchVideoPage(ctx, "throttled00"); !errors.Is(err, ErrThrottling) {
		t.Fatalf("err = %v, want ErrThrottling", err)
	}
	if _, err := client.FetchTranscript(ctx, srv.URL+"/api/timedtext?v=throttled00"); !errors.Is(err, ErrThrottling) {
		t.Fatalf("transcript err = %v, want ErrThrottling", err)
	}

	_, err = client.FetchVideoPage(ctx, "missing0000")
	if !errors.Is(err, ErrUnknownUpstream) {
		t.Fatalf("err = %v, want ErrUnknownUpstream", err)
	}
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %T", err)
	}
	if upstream.StatusCode != http.StatusNotFound || upstream.Body != "the-error" {
		t.Fatalf("upstream = %+v", upstream)
	}
	if Retryable(err) {
		t.Fatalf("unknown upstream error must not be retryable")
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := maxTranscriptBytes
		if r.URL.Query().Get("v") == "toolarge000" {
			n++
		}
		_, _ = w.Write([]byte(strings.Repeat("a", n)))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	ctx := context.Background()

	body, err := client.FetchTranscript(ctx, srv.URL+"/api/timedtext?v=fits0000000")
	if err != nil {
		t.Fatalf("fetch at limit: %v", err)
	}
	if len(body) != maxTranscriptBytes {
		t.Fatalf("len(body) = %d, want %d", len(body), maxTranscriptBytes)
	}
	if _, err := client.FetchTranscript(ctx, srv.URL+"/api/timedtext?v=toolarge000"); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("err = %v, want ErrResponseTooLarge", err)
	}
	if Retryable(ErrResponseTooLarge) {
		t.Fatalf("oversized responses must not be retried")
	}
}

func TestExtract(t *testing.T) {
	limiter := &countingLimiter{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/watch":
			_, _ = fmt.Fprint(w, pageWithTrack(srv.URL))
		case "/api/timedtext":
			if r.URL.Query().Get("lang") != "en" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = fmt.Fprint(w, twoLineTranscript)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, UserAgent: "test-agent", Limiter: limiter})
	res, err := client.Extract(context.Background(), "abc12345678")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Lang != "en" {
		t.Fatalf("lang = %q, want %q", res.Lang, "en")
	}
	want := []Line{
		{From: "0.5", Duration: "1.25", Text: "Hello World"},
		{From: "1.75", Duration: "2", Text: "It's ME"},
	}
	if len(res.Lines) != len(want) {
		t.Fatalf("len(lines) = %d, want %d", len(res.Lines), len(want))
	}
	for i := range want {
		if res.Lines[i] != want[i] {
			t.Fatalf("lines[%d] = %+v, want %+v", i, res.Lines[i], want[i])
		}
	}
	if !strings.Contains(res.Transcript, "<transcript>") {
		t.Fatalf("raw transcript not returned: %q", res.Transcript)
	}
	if got := limiter.calls.Load(); got != 2 {
		t.Fatalf("limiter calls = %d, want 2", got)
	}
}

func TestExtractWithoutCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>no captions here</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Extract(context.Background(), "abc12345678")
	if !errors.Is(err, ErrMissingCaptionsField) {
		t.Fatalf("err = %v, want ErrMissingCaptionsField", err)
	}
}
