package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/sf-incident-analytics/internal/adapter/csvfile"
	"github.com/couchcryptid/sf-incident-analytics/internal/dashboard"
	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
)

// Dashboard is the view model the API serves.
type Dashboard interface {
	Options(ctx context.Context) (*dashboard.OptionsResult, error)
	View(ctx context.Context, q dashboard.Query) (*dashboard.ViewResult, error)
	Filtered(ctx context.Context, q dashboard.Query) ([]domain.Incident, domain.Predicates, error)
	Forecast(ctx context.Context) (*dashboard.ForecastResult, error)
	Refresh(ctx context.Context) (*dashboard.SnapshotInfo, error)
}

// selectAllValue selects every value of a multiselect parameter.
const selectAllValue = "*"

type handlers struct {
	dash   Dashboard
	logger *slog.Logger
}

func (h *handlers) options(w http.ResponseWriter, r *http.Request) {
	res, err := h.dash.Options(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.dash.View(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) forecast(w http.ResponseWriter, r *http.Request) {
	res, err := h.dash.Forecast(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) neighborhoods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.AnalysisNeighborhoods())
}

func (h *handlers) exportCSV(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	incidents, _, err := h.dash.Filtered(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sf_incidents_filtered.csv"`)
	if err := csvfile.WriteIncidents(w, incidents); err != nil {
		h.logger.Error("csv export failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
	}
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.dash.Refresh(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeError maps domain errors to status codes.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidPredicates):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientHistory):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, domain.ErrNoIncidents):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// parseQuery reads predicate overrides. Range bounds are integers.
// Multiselect parameters repeat (?category=A&category=B); a parameter given
// only empty values selects nothing, and "*" selects everything.
func parseQuery(v url.Values) (dashboard.Query, error) {
	var q dashboard.Query
	var err error

	for _, f := range []struct {
		name string
		dst  **int
	}{
		{"year_from", &q.YearFrom},
		{"year_to", &q.YearTo},
		{"hour_from", &q.HourFrom},
		{"hour_to", &q.HourTo},
	} {
		if *f.dst, err = parseIntParam(v, f.name); err != nil {
			return dashboard.Query{}, err
		}
	}

	if q.Neighborhoods, err = parseSelection(v, "neighborhood", nil); err != nil {
		return dashboard.Query{}, err
	}
	if q.Categories, err = parseSelection(v, "category", nil); err != nil {
		return dashboard.Query{}, err
	}
	if q.Weekdays, err = parseSelection(v, "weekday", canonicalWeekday); err != nil {
		return dashboard.Query{}, err
	}
	return q, nil
}

func canonicalWeekday(s string) (string, error) {
	w, ok := domain.CanonicalWeekday(s)
	if !ok {
		return "", fmt.Errorf("%w: unknown weekday %q", domain.ErrInvalidPredicates, s)
	}
	return w, nil
}

func parseIntParam(v url.Values, name string) (*int, error) {
	if !v.Has(name) {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.Get(name)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidPredicates, name)
	}
	return &n, nil
}

// parseSelection reads a multiselect parameter. canon, when non-nil, maps
// each value to its canonical spelling or rejects it.
func parseSelection(v url.Values, name string, canon func(string) (string, error)) (*domain.Selection, error) {
	raw, ok := v[name]
	if !ok {
		return nil, nil
	}
	values := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == selectAllValue {
			sel := domain.SelectAll()
			return &sel, nil
		}
		if s == "" {
			continue
		}
		if canon != nil {
			c, err := canon(s)
			if err != nil {
				return nil, err
			}
			s = c
		}
		values = append(values, s)
	}
	sel := domain.SelectOnly(values...)
	return &sel, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
