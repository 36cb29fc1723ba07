package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObservationsBeforeInitAreNoOps(t *testing.T) {
	// Must not panic with collectors unset.
	ObserveJob("finished", time.Second)
	SetPoolWorkers(4)
	ObserveRefresh("error")
	ObserveHTTPRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
}

func TestInitAndScrape(t *testing.T) {
	Init()
	Init() // idempotent

	ObserveJob("finished", 2*time.Second)
	SetPoolWorkers(8)
	ObserveRefresh("refreshed_and_restarted")
	ObserveHTTPRequest(http.MethodPost, "/crawl", http.StatusOK, 150*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "crawl_jobs_total")
	require.Contains(t, body, "pool_workers 8")
	require.Contains(t, body, "pool_refreshes_total")
	require.Contains(t, body, "http_requests_total")
}
