package captions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"yourarch/internal/util"
)

const (
	defaultBaseURL        = "https://www.youtube.com"
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultAcceptLanguage = "en-US,en;q=0.9"
	defaultTimeout        = 30 * time.Second

	maxPageBytes       = 6 << 20
	maxTranscriptBytes = 2 << 20
)

// Limiter paces outbound requests. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	Limiter        Limiter
	HTTPClient     *http.Client
}

// Client fetches watch pages and transcripts from the video platform.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	userAgent      string
	acceptLanguage string
	limiter        Limiter
}

// Result is the outcome of a successful extraction.
type Result struct {
	Lang  string
	Lines []Line
	// Transcript is the raw payload the lines were parsed from.
	Transcript string
}

// NewClient builds a Client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	acceptLanguage := strings.TrimSpace(cfg.AcceptLanguage)
	if acceptLanguage == "" {
		acceptLanguage = defaultAcceptLanguage
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		userAgent:      userAgent,
		acceptLanguage: acceptLanguage,
		limiter:        cfg.Limiter,
	}
}

// FetchVideoPage downloads the watch page for videoID.
func (c *Client) FetchVideoPage(ctx context.Context, videoID string) (string, error) {
	pageURL := c.baseURL + "/watch?v=" + url.QueryEscape(videoID)
	return c.get(ctx, pageURL, maxPageBytes)
}

// FetchTranscript downloads a caption track.
func (c *Client) FetchTranscript(ctx context.Context, trackURL string) (string, error) {
	return c.get(ctx, trackURL, maxTranscriptBytes)
}

// Extract runs the whole pipeline for one video: page, tracks, language,
// track URL, transcript, lines.
func (c *Client) Extract(ctx context.Context, videoID string) (Result, error) {
	logger := util.LoggerFromContext(ctx)

	page, err := c.FetchVideoPage(ctx, videoID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch video page: %w", err)
	}
	tracks, err := ExtractCaptionTracks(page)
	if err != nil {
		return Result{}, err
	}
	lang, err := ChooseLanguage(tracks)
	if err != nil {
		return Result{}, err
	}
	trackURL, err := ResolveCaptionURL(tracks, lang)
	if err != nil {
		return Result{}, err
	}
	logger.Debug("caption track resolved", "tracks", len(tracks), "lang", lang)

	transcript, err := c.FetchTranscript(ctx, trackURL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch transcript: %w", err)
	}
	lines := ParseLines(transcript)
	logger.Debug("transcript parsed", "lines", len(lines), "bytes", len(transcript))
	return Result{Lang: lang, Lines: lines, Transcript: transcript}, nil
}

func (c *Client) get(ctx context.Context, target string, limit int64) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for request slot: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", c.acceptLanguage)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return "", ErrThrottling
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &UpstreamError{URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("GET %s: over %d bytes: %w", target, limit, ErrResponseTooLarge)
	}
	return string(body), nil
}
