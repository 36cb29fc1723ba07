package crawl

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mfeit/textcrawler/internal/extract"
)

// Config bounds one crawl run.
type Config struct {
	MaxDepth    int
	Parallelism int
}

// Crawler walks pages breadth-first from a job's start URLs, extracting
// text from every in-scope page. Traversal state is an explicit
// frontier of (url, depth) waves with a visited set.
type Crawler struct {
	fetcher Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Crawler.
func New(fetcher Fetcher, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Run fetches the job's reachable, in-scope pages up to the depth limit
// and returns their extracted text in completion order. Individual page
// failures are logged and skipped; only context cancellation aborts the
// run.
func (c *Crawler) Run(ctx context.Context, job Job) ([]PageResult, error) {
	if len(job.StartURLs) == 0 {
		return nil, fmt.Errorf("no start urls")
	}

	visited := make(map[string]struct{}, len(job.StartURLs))
	frontier := make([]string, 0, len(job.StartURLs))
	for _, u := range job.StartURLs {
		if _, dup := visited[u]; dup {
			continue
		}
		visited[u] = struct{}{}
		frontier = append(frontier, u)
	}

	results := make([]PageResult, 0, len(frontier))
	for depth := 0; depth <= c.cfg.MaxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("crawl canceled: %w", err)
		}
		followLinks := depth < c.cfg.MaxDepth
		next := c.crawlWave(ctx, job, frontier, followLinks, visited, &results)
		frontier = next
	}
	return results, nil
}

// crawlWave fetches one depth level of the frontier with bounded
// parallelism and returns the next level's deduplicated URLs.
func (c *Crawler) crawlWave(
	ctx context.Context,
	job Job,
	frontier []string,
	followLinks bool,
	visited map[string]struct{},
	results *[]PageResult,
) []string {
	var (
		mu   sync.Mutex
		next []string
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, c.cfg.Parallelism)

	for _, pageURL := range frontier {
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			links, result, err := c.processPage(ctx, job, pageURL, followLinks)
			if err != nil {
				c.logger.Warn("page processing failed",
					zap.String("url", pageURL),
					zap.Error(err),
				)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			*results = append(*results, result)
			for _, link := range links {
				if _, dup := visited[link]; dup {
					continue
				}
				visited[link] = struct{}{}
				next = append(next, link)
			}
		}(pageURL)
	}
	wg.Wait()
	return next
}

func (c *Crawler) processPage(
	ctx context.Context,
	job Job,
	pageURL string,
	followLinks bool,
) ([]string, PageResult, error) {
	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, PageResult{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	text, err := extract.Text(string(page.Body))
	if err != nil {
		return nil, PageResult{}, fmt.Errorf("extract %s: %w", pageURL, err)
	}

	var links []string
	if followLinks {
		links, err = ExtractLinks(page.URL, page.Body, job.AllowedDomains)
		if err != nil {
			c.logger.Warn("link extraction failed",
				zap.String("url", page.URL),
				zap.Error(err),
			)
			links = nil
		}
	}

	c.logger.Debug("page processed",
		zap.String("url", page.URL),
		zap.Int("status", page.StatusCode),
		zap.Int("links", len(links)),
	)
	return links, PageResult{URL: page.URL, Text: text}, nil
}
