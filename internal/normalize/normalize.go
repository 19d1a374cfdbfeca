// Package normalize turns raw CSV rows into storable metric records.
//
// The policy is lossy-but-available: a malformed numeric cell zeroes
// that metric instead of rejecting the row. Only the date is fatal,
// since it is half of the natural key.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/kpimon/internal/database"
)

// ErrFormat means a raw row cannot be keyed (unparseable date).
var ErrFormat = errors.New("format error")

// Row maps column names to raw cell values as read from the input file.
type Row map[string]string

// Normalize coerces a raw row into a MetricRecord.
//
// The date may be any unambiguous calendar-date string and comes out as
// canonical YYYY-MM-DD; an unparseable or missing date returns ErrFormat.
// Numeric cells that fail to parse become 0. Integer metrics are
// truncated toward zero after coercion. content_id, title and category
// pass through untouched.
func Normalize(raw Row) (database.MetricRecord, error) {
	date, err := canonicalDate(raw["date"])
	if err != nil {
		return database.MetricRecord{}, err
	}

	return database.MetricRecord{
		Date:        date,
		ContentID:   raw["content_id"],
		Title:       raw["title"],
		Category:    raw["category"],
		Impressions: int64(coerceFloat(raw["impressions"])),
		Clicks:      int64(coerceFloat(raw["clicks"])),
		Conversions: int64(coerceFloat(raw["conversions"])),
		AvgDwellSec: coerceFloat(raw["avg_dwell_sec"]),
		BounceRate:  coerceFloat(raw["bounce_rate"]),
	}, nil
}

// NormalizeAll normalizes every row, failing fast on the first bad date.
// Nothing is handed to the store until the whole file has normalized, so
// a single bad date among many rows fails the run with zero mutations.
func NormalizeAll(rows []Row) ([]database.MetricRecord, error) {
	recs := make([]database.MetricRecord, 0, len(rows))
	for i, raw := range rows {
		rec, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func canonicalDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: missing date", ErrFormat)
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable date %q", ErrFormat, s)
	}
	return t.Format("2006-01-02"), nil
}

// coerceFloat parses a numeric cell, substituting 0 on failure or
// absence. Deliberate leniency, not an error path. ParseFloat accepts
// "NaN" and "Inf"; those count as failures too, so non-finite values
// never reach the store or the integer truncation.
func coerceFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
