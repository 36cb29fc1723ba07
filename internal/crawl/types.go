// Package crawl implements the per-job fetch-and-extract pipeline.
package crawl

import (
	"context"
	"time"
)

// Job is one request's unit of work: a start-URL set plus domain scope.
// Immutable once submitted.
type Job struct {
	StartURLs      []string `json:"start_urls"`
	AllowedDomains []string `json:"allowed_domains"`
}

// Status is the terminal state reported for a job.
type Status string

// Outcome status values returned to API callers.
const (
	StatusFinished Status = "finished"
	StatusError    Status = "error"
)

// PageResult holds the extracted text for one fetched page. The JSON
// field is named html for wire compatibility; it carries plain text.
type PageResult struct {
	URL  string `json:"url"`
	Text string `json:"html"`
}

// Outcome is the terminal value produced for one job.
type Outcome struct {
	Status  Status       `json:"status"`
	Results []PageResult `json:"results"`
	Message string       `json:"message,omitempty"`
}

// Page is the raw fetch result for a single URL.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves a single page. Implementations: colly for plain
// HTTP, chromedp for rendered chromium fetches.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}
