//go:build datasf

package datasf

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the live DataSF API. DATASF_APP_TOKEN is optional but
// avoids throttling.
// Run with: go test -tags=datasf ./internal/adapter/datasf/ -v -count=1

func TestSmoke_ExtractFirstPage(t *testing.T) {
	c := NewClient(Options{
		BaseURL:         "https://data.sfgov.org/resource/wg3w-h783.json",
		AppToken:        os.Getenv("DATASF_APP_TOKEN"),
		Timeout:         30 * time.Second,
		PageSize:        200,
		MaxTotalRecords: 200,
		Scope:           domain.DefaultScope(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	raws, err := c.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 200)

	incidents, dropped := domain.Normalize(raws, domain.DefaultScope())
	assert.NotEmpty(t, incidents)
	t.Logf("retained %d, dropped %v", len(incidents), dropped)
}
