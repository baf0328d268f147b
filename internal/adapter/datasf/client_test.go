package datasf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, pageSize, maxTotal int) *Client {
	return NewClient(Options{
		BaseURL:         baseURL,
		AppToken:        testToken,
		Timeout:         5 * time.Second,
		PageSize:        pageSize,
		MaxTotalRecords: maxTotal,
		Scope:           domain.DefaultScope(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func makeRows(offset, n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"incident_date":         "2023-05-01T00:00:00.000",
			"incident_datetime":     "2023-05-01T14:30:00.000",
			"analysis_neighborhood": "Mission",
			"incident_category":     fmt.Sprintf("Category %d", offset+i),
			"incident_day_of_week":  "Monday",
			"latitude":              "37.76",
			"longitude":             "-122.42",
		}
	}
	return rows
}

// pagedServer serves total rows in pages according to $limit and $offset.
func pagedServer(t *testing.T, total int, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		limit, err := strconv.Atoi(q.Get("$limit"))
		require.NoError(t, err)
		offset, err := strconv.Atoi(q.Get("$offset"))
		require.NoError(t, err)

		n := max(0, min(limit, total-offset))
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(makeRows(offset, n)))
	}))
}

func TestClient_Extract_Paginates(t *testing.T) {
	var requests atomic.Int64
	srv := pagedServer(t, 250, &requests)
	defer srv.Close()

	c := testClient(srv.URL, 100, 10000)
	raws, err := c.Extract(context.Background())
	require.NoError(t, err)

	assert.Len(t, raws, 250)
	assert.EqualValues(t, 3, requests.Load(), "stops after the short third page")
	assert.Equal(t, "Category 0", raws[0].Category)
	assert.Equal(t, "Category 249", raws[249].Category)
	assert.Equal(t, "Mission", raws[10].Neighborhood)
	assert.InDelta(t, 3, testutil.ToFloat64(c.metrics.PagesFetched), 0)
	assert.InDelta(t, 250, testutil.ToFloat64(c.metrics.RecordsFetched), 0)
}

func TestClient_Extract_ExactMultipleEndsOnEmptyPage(t *testing.T) {
	var requests atomic.Int64
	srv := pagedServer(t, 200, &requests)
	defer srv.Close()

	c := testClient(srv.URL, 100, 10000)
	raws, err := c.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, raws, 200)
	assert.EqualValues(t, 3, requests.Load())
}

func TestClient_Extract_RespectsCeiling(t *testing.T) {
	var requests atomic.Int64
	srv := pagedServer(t, 1000, &requests)
	defer srv.Close()

	c := testClient(srv.URL, 100, 250)
	raws, err := c.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, raws, 250)
	assert.EqualValues(t, 3, requests.Load())
}

func TestClient_Extract_QueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, testToken, r.Header.Get("X-App-Token"))
		assert.Equal(t, ":id", q.Get("$order"))
		assert.Equal(t, "0", q.Get("$offset"))
		assert.Equal(t, "50", q.Get("$limit"))
		assert.Equal(t,
			"incident_date between '2018-01-01T00:00:00' and '2025-12-31T23:59:59'",
			q.Get("$where"))
		assert.Contains(t, q.Get("$select"), "analysis_neighborhood")
		assert.Contains(t, q.Get("$select"), "incident_datetime")

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 50, 1000)
	raws, err := c.Extract(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestClient_Extract_NumericCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[{"incident_date":"2024-02-03T00:00:00.000","analysis_neighborhood":"Mission","incident_category":"Assault","latitude":37.7599,"longitude":-122.4148,"point":{"type":"Point"}}]`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 50, 1000)
	raws, err := c.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "37.7599", raws[0].Latitude)
	assert.Equal(t, "-122.4148", raws[0].Longitude)
}

func TestClient_Extract_MidPaginationFailureDiscardsEverything(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("$offset"))
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(makeRows(offset, 100)))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 100, 10000)
	raws, err := c.Extract(context.Background())
	require.Error(t, err)
	assert.Nil(t, raws)
	assert.Contains(t, err.Error(), "status 504")
	assert.Contains(t, err.Error(), "offset 100")
	assert.EqualValues(t, 2, requests.Load())
}

func TestClient_Extract_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"error": true`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 100, 1000)
	_, err := c.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Extract_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Invalid app_token specified"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 100, 1000)
	_, err := c.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "Invalid app_token")
}

func TestClient_Extract_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(srv.URL, 100, 1000)
	_, err := c.Extract(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_Describe(t *testing.T) {
	c := testClient("https://data.sfgov.org/resource/wg3w-h783.json", 100, 1000)
	assert.Equal(t, "datasf:https://data.sfgov.org/resource/wg3w-h783.json", c.Describe())
}
