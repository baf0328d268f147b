// Package csvfile reads incident extracts from CSV files and writes the
// normalized CSV export.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
)

// Reader is an offline incident source backed by a CSV file. It accepts both
// the DataSF export headers ("Incident Date", "Analysis Neighborhood", ...)
// and the normalized export written by WriteIncidents. It implements
// pipeline.Extractor.
type Reader struct {
	path   string
	logger *slog.Logger
}

// NewReader creates a Reader for path.
func NewReader(path string, logger *slog.Logger) *Reader {
	return &Reader{path: path, logger: logger}
}

// Describe identifies the source for cache keys and logs.
func (r *Reader) Describe() string {
	return "file:" + r.path
}

// Extract reads every row of the file.
func (r *Reader) Extract(ctx context.Context) ([]domain.RawIncident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open incidents file: %w", err)
	}
	defer f.Close()

	raws, err := ReadIncidents(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	r.logger.Info("incidents file read", "path", r.path, "rows", len(raws))
	return raws, nil
}

// ReadIncidents parses CSV rows into raw incidents. Columns are matched by
// header name; unknown columns are ignored. A file without a date column is
// rejected.
func ReadIncidents(src io.Reader) ([]domain.RawIncident, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	hasDate := false
	for i, h := range header {
		columns[i] = h
		if domain.CanonicalField(h) == domain.FieldOccurredDate {
			hasDate = true
		}
	}
	if !hasDate {
		return nil, errors.New("no incident date column in header")
	}

	var raws []domain.RawIncident
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(raws)+2, err)
		}

		fields := make(map[string]string, len(columns))
		for i, name := range columns {
			if i < len(row) {
				fields[name] = row[i]
			}
		}
		raws = append(raws, domain.RawIncidentFromFields(fields))
	}
	return raws, nil
}
