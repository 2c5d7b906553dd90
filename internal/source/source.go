package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrUnavailable wraps every failure to retrieve or read the backing resource.
var ErrUnavailable = errors.New("source unavailable")

// Source yields the raw records of one load cycle. A nil error with zero
// records means the input was genuinely empty.
type Source interface {
	Records(ctx context.Context) ([]RawRecord, error)
	Name() string
}

// Fetcher retrieves the delimited text as a single blob.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// FileFetcher reads a local file.
type FileFetcher struct {
	Path string
}

func (f FileFetcher) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return string(data), nil
}

// HTTPFetcher downloads the resource with a GET request.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

const defaultHTTPTimeout = 30 * time.Second

func (f HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", f.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch %s: status %d", f.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

// NewFetcher picks an HTTPFetcher for http(s) locations and a FileFetcher otherwise.
func NewFetcher(location string, timeout time.Duration) Fetcher {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		return HTTPFetcher{URL: location, Client: &http.Client{Timeout: timeout}}
	}
	return FileFetcher{Path: location}
}

// CSVSource parses delimited text obtained from a Fetcher.
type CSVSource struct {
	Fetcher   Fetcher
	Separator rune
	Label     string
}

// NewCSVSource builds a CSVSource for a path or URL.
func NewCSVSource(location string, sep rune, timeout time.Duration) *CSVSource {
	return &CSVSource{
		Fetcher:   NewFetcher(location, timeout),
		Separator: sep,
		Label:     location,
	}
}

func (s *CSVSource) Name() string {
	if s.Label != "" {
		return "csv:" + s.Label
	}
	return "csv"
}

func (s *CSVSource) Records(ctx context.Context) ([]RawRecord, error) {
	if s.Fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", ErrUnavailable)
	}
	text, err := s.Fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return Parse(text, s.Separator), nil
}

// StaticSource serves a fixed record set.
type StaticSource []RawRecord

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Records(ctx context.Context) ([]RawRecord, error) {
	return append([]RawRecord(nil), s...), nil
}

// LoadOrEmpty collapses any failure into an empty record sequence, for callers
// that treat "could not read" and "nothing there" the same way.
func LoadOrEmpty(ctx context.Context, src Source) []RawRecord {
	records, err := src.Records(ctx)
	if err != nil {
		return nil
	}
	return records
}
