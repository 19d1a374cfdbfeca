package database

import "errors"

// Sentinel errors for the failure classes the pipeline distinguishes.
// Callers match with errors.Is; wrapped messages carry the cause.
var (
	// ErrSchema means the schema script could not be applied.
	ErrSchema = errors.New("schema error")
	// ErrStore means a transaction against the store failed.
	ErrStore = errors.New("store error")
)

// MetricRecord is one day of engagement metrics for one piece of content.
// (Date, ContentID) is the natural key; Date is canonical YYYY-MM-DD.
type MetricRecord struct {
	Date        string
	ContentID   string
	Title       string
	Category    string
	Impressions int64
	Clicks      int64
	Conversions int64
	AvgDwellSec float64
	BounceRate  float64
}

// KPIRow is a MetricRecord plus the derived ratio metrics, as read from
// the v_content_kpi view. CTR and ConversionRate are 0 when their
// denominators are 0.
type KPIRow struct {
	MetricRecord
	CTR            float64
	ConversionRate float64
}

// Filter narrows a KPI query. Zero values mean "no filter" for that
// predicate; predicates compose conjunctively.
type Filter struct {
	From     string // inclusive lower date bound, YYYY-MM-DD
	To       string // inclusive upper date bound, YYYY-MM-DD
	Category string // exact category match
	Title    string // case-insensitive substring match on title
}

// Stats summarizes the current store contents.
type Stats struct {
	Rows       int
	Contents   int
	Categories int
	FirstDate  string
	LastDate   string
}
