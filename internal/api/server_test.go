package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mfeit/textcrawler/internal/crawl"
)

// fakePool records submissions and serves canned outcomes.
type fakePool struct {
	mu         sync.Mutex
	submitted  []crawl.Job
	outcome    crawl.Outcome
	refreshErr error
	refreshed  int
	live       bool
}

func (f *fakePool) Submit(_ context.Context, job crawl.Job) crawl.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, job)
	return f.outcome
}

func (f *fakePool) Refresh() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return f.refreshErr
}

func (f *fakePool) Live() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

func (f *fakePool) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func doRequest(t *testing.T, pool *fakePool, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	server := NewServer(pool, zap.NewNop())
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Crawl_Succeeds(t *testing.T) {
	t.Parallel()

	pool := &fakePool{outcome: crawl.Outcome{
		Status: crawl.StatusFinished,
		Results: []crawl.PageResult{
			{URL: "http://example.test/a", Text: "long enough extracted line"},
		},
	}}
	rec := doRequest(t, pool, http.MethodPost, "/crawl",
		`{"start_urls":["http://example.test/a"],"allowed_domains":["example.test"]}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status  string `json:"status"`
		Results []struct {
			URL  string `json:"url"`
			HTML string `json:"html"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "finished", resp.Status)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "http://example.test/a", resp.Results[0].URL)
	require.Equal(t, "long enough extracted line", resp.Results[0].HTML)

	require.Equal(t, 1, pool.submissions())
	require.Equal(t, crawl.Job{
		StartURLs:      []string{"http://example.test/a"},
		AllowedDomains: []string{"example.test"},
	}, pool.submitted[0])
}

func TestServer_Crawl_InvalidJSON(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	rec := doRequest(t, pool, http.MethodPost, "/crawl", "{invalid")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"error"`)
	require.Contains(t, rec.Body.String(), "invalid JSON payload")
	require.Zero(t, pool.submissions())
}

func TestServer_Crawl_MissingStartURLs(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	rec := doRequest(t, pool, http.MethodPost, "/crawl", `{"start_urls":[]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "start_urls must be provided")
	require.Zero(t, pool.submissions())
}

func TestServer_Crawl_PoolErrorOutcomePassesThrough(t *testing.T) {
	t.Parallel()

	pool := &fakePool{outcome: crawl.Outcome{
		Status:  crawl.StatusError,
		Results: []crawl.PageResult{},
		Message: "worker failed: pipe closed",
	}}
	rec := doRequest(t, pool, http.MethodPost, "/crawl",
		`{"start_urls":["http://example.test/a"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"error"`)
	require.Contains(t, rec.Body.String(), `"results":[]`)
	require.Contains(t, rec.Body.String(), "worker failed")
}

func TestServer_RefreshResources_Succeeds(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	rec := doRequest(t, pool, http.MethodPost, "/refresh_resources", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "refreshed_and_restarted")
	require.Equal(t, 1, pool.refreshed)
}

func TestServer_RefreshResources_Failure(t *testing.T) {
	t.Parallel()

	pool := &fakePool{refreshErr: errors.New("recreate worker pool: spawn refused")}
	rec := doRequest(t, pool, http.MethodPost, "/refresh_resources", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"error"`)
	require.Contains(t, rec.Body.String(), "spawn refused")
}

func TestServer_Readyz_ReflectsPoolState(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, &fakePool{live: true}, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, &fakePool{live: false}, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, &fakePool{}, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestServer_RequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, &fakePool{live: true}, http.MethodGet, "/healthz", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
