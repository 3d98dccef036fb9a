package sessionize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "schedview/internal/log"
	"schedview/internal/model"
)

// LoadError is the terminal failure of a schedule load. It is never
// retried; the caller surfaces it to the user as-is.
type LoadError struct {
	// URL is already redacted.
	URL string
	// Status is the HTTP status code, or 0 for transport/decode failures.
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("load schedule from %s: HTTP status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("load schedule from %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Fetcher retrieves the schedule document from a single endpoint.
type Fetcher struct {
	client   *http.Client
	url      string
	location *time.Location
}

// NewFetcher creates a Fetcher for url. Timestamps without an offset are
// interpreted in loc. A zero timeout leaves the deadline to ctx and the
// transport.
func NewFetcher(url string, loc *time.Location, timeout time.Duration) *Fetcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		url:      strings.TrimSpace(url),
		location: loc,
	}
}

// Fetch performs exactly one GET and decodes the body into a Document.
// Transport errors, non-2xx statuses and undecodable bodies all yield a
// *LoadError.
func (f *Fetcher) Fetch(ctx context.Context) (*model.Document, error) {
	redacted := redactURL(f.url)
	if f.url == "" {
		return nil, &LoadError{URL: redacted, Err: errors.New("source URL is empty")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &LoadError{URL: redacted, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	appLog.Info("schedule fetch start", "url", redacted)
	started := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &LoadError{URL: redacted, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, &LoadError{URL: redacted, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{URL: redacted, Err: fmt.Errorf("read body: %w", err)}
	}

	doc, err := Parse(body, f.location)
	if err != nil {
		return nil, &LoadError{URL: redacted, Err: err}
	}

	appLog.Info("schedule fetch success",
		"url", redacted,
		"status", resp.StatusCode,
		"rooms", len(doc.Rooms()),
		"sessions", len(doc.Sessions()),
		"speakers", len(doc.Speakers()),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return doc, nil
}

// redactURL keeps scheme and host only; event-data URLs embed the event
// key in the path.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	scheme, rest, ok := strings.Cut(u, "://")
	if !ok || scheme == "" {
		return "url://...(redacted)"
	}
	host, _, _ := strings.Cut(rest, "/")
	host, _, _ = strings.Cut(host, "?")
	return scheme + "://" + host + redactedSuffix
}
