package datasf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
)

// selectColumns is the column projection pushed to the API.
var selectColumns = []string{
	"incident_date",
	"incident_datetime",
	"analysis_neighborhood",
	"incident_category",
	"incident_day_of_week",
	"latitude",
	"longitude",
}

// sodaTimestamp is the SODA floating timestamp layout used in $where clauses.
const sodaTimestamp = "2006-01-02T15:04:05"

// Options configures a Client.
type Options struct {
	BaseURL         string
	AppToken        string
	Timeout         time.Duration
	PageSize        int
	MaxTotalRecords int
	Scope           domain.Scope
}

// Client pages through the DataSF incident reports dataset.
// It implements pipeline.Extractor.
type Client struct {
	baseURL    string
	appToken   string
	httpClient *http.Client
	pageSize   int
	maxTotal   int
	scope      domain.Scope
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a DataSF SODA client.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:  opts.BaseURL,
		appToken: opts.AppToken,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		pageSize: opts.PageSize,
		maxTotal: opts.MaxTotalRecords,
		scope:    opts.Scope,
		logger:   logger,
		metrics:  metrics,
	}
}

// Describe identifies the source for cache keys and logs.
func (c *Client) Describe() string {
	return "datasf:" + c.baseURL
}

// Extract fetches every record in scope, one page at a time, in server
// order. Paging stops at the first short or empty page, or once
// MaxTotalRecords have been read. Any page failure discards everything
// fetched so far.
func (c *Client) Extract(ctx context.Context) ([]domain.RawIncident, error) {
	var all []domain.RawIncident
	page := 0

	for {
		limit := min(c.pageSize, c.maxTotal-len(all))
		if limit <= 0 {
			c.logger.Warn("record ceiling reached, stopping pagination", "max_total_records", c.maxTotal)
			break
		}

		offset := len(all)
		rows, err := c.fetchPage(ctx, offset, limit)
		if err != nil {
			return nil, fmt.Errorf("page %d at offset %d: %w", page, offset, err)
		}
		page++
		all = append(all, rows...)

		c.logger.Debug("page fetched", "page", page, "offset", offset, "records", len(rows))

		if len(rows) < limit {
			break
		}
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, offset, limit int) ([]domain.RawIncident, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(offset, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datasf request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("datasf API error: status %d: %s", resp.StatusCode, body)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.metrics.PageFetchDuration.Observe(time.Since(start).Seconds())
	c.metrics.PagesFetched.Inc()
	c.metrics.RecordsFetched.Add(float64(len(rows)))

	out := make([]domain.RawIncident, len(rows))
	for i, row := range rows {
		out[i] = domain.RawIncidentFromFields(stringifyRow(row))
	}
	return out, nil
}

// pageURL builds the SODA query for one page. The scope is pushed down on
// incident_date and rows are ordered by the internal row id so offsets are
// stable between requests.
func (c *Client) pageURL(offset, limit int) string {
	end := c.scope.End.Add(24*time.Hour - time.Second)
	where := fmt.Sprintf("incident_date between '%s' and '%s'",
		c.scope.Start.Format(sodaTimestamp), end.Format(sodaTimestamp))

	params := url.Values{
		"$select": {strings.Join(selectColumns, ",")},
		"$where":  {where},
		"$order":  {":id"},
		"$limit":  {strconv.Itoa(limit)},
		"$offset": {strconv.Itoa(offset)},
	}
	return c.baseURL + "?" + params.Encode()
}

// stringifyRow flattens a decoded SODA row to string values. Nested values
// (such as the point geometry column) are skipped.
func stringifyRow(row map[string]any) map[string]string {
	fields := make(map[string]string, len(row))
	for k, v := range row {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		}
	}
	return fields
}
