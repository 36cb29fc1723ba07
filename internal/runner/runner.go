// Package runner executes crawl jobs inside a worker process and
// defines the parent/worker wire protocol.
//
// A worker reads newline-delimited JSON requests from stdin and writes
// one JSON response per job to stdout, handling one job at a time. The
// complete result set travels back as the response value; no state is
// shared across the process boundary.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mfeit/textcrawler/internal/crawl"
)

// Request is one job handed to a worker over its stdin pipe.
type Request struct {
	ID             string   `json:"id"`
	StartURLs      []string `json:"start_urls"`
	AllowedDomains []string `json:"allowed_domains"`
}

// Response carries a job's complete result set back over stdout.
type Response struct {
	ID      string             `json:"id"`
	Results []crawl.PageResult `json:"results"`
	Err     string             `json:"error,omitempty"`
}

// JobFunc executes one crawl job and returns its accumulated results.
type JobFunc func(ctx context.Context, job crawl.Job) []crawl.PageResult

// NewJobFunc wraps a crawler into the runner contract: any crawl
// failure is logged and yields empty results rather than propagating,
// so a single bad job never kills the worker process.
func NewJobFunc(crawler *crawl.Crawler, logger *zap.Logger) JobFunc {
	return func(ctx context.Context, job crawl.Job) []crawl.PageResult {
		results, err := crawler.Run(ctx, job)
		if err != nil {
			logger.Error("crawl failed", zap.Error(err))
			return []crawl.PageResult{}
		}
		if results == nil {
			results = []crawl.PageResult{}
		}
		return results
	}
}

// Serve runs the worker loop until the input stream closes. Stream
// corruption is fatal to the loop; the pool replaces the process.
func Serve(ctx context.Context, in io.Reader, out io.Writer, run JobFunc, logger *zap.Logger) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("decode job request: %w", err)
		}
		logger.Info("job received",
			zap.String("job_id", req.ID),
			zap.Int("start_urls", len(req.StartURLs)),
		)

		resp := execute(ctx, req, run, logger)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode job response: %w", err)
		}
	}
}

// execute runs one job, converting panics into an empty-result
// response so the serve loop keeps the process alive.
func execute(ctx context.Context, req Request, run JobFunc, logger *zap.Logger) (resp Response) {
	resp = Response{ID: req.ID, Results: []crawl.PageResult{}}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("job panicked", zap.String("job_id", req.ID), zap.Any("panic", rec))
			resp.Results = []crawl.PageResult{}
			resp.Err = fmt.Sprintf("job panicked: %v", rec)
		}
	}()

	results := run(ctx, crawl.Job{
		StartURLs:      req.StartURLs,
		AllowedDomains: req.AllowedDomains,
	})
	if results != nil {
		resp.Results = results
	}
	return resp
}
