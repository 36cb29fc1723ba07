package crawl

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyConfig controls collector behavior for the plain HTTP fetcher.
type CollyConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyFetcher fetches single pages using a cloned Colly collector per
// request.
type CollyFetcher struct {
	cfg           CollyConfig
	baseCollector *colly.Collector
}

// NewCollyFetcher builds a CollyFetcher with a pooled HTTP transport.
func NewCollyFetcher(cfg CollyConfig) *CollyFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &CollyFetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET using Colly.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	var (
		page     Page
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		page = Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Page{}, fmt.Errorf("colly visit failed: %w", err)
		}
		if fetchErr != nil {
			return Page{}, fmt.Errorf("colly response failed: %w", fetchErr)
		}
	}
	return page, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
