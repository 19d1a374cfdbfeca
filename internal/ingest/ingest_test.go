package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/TobiSchelling/kpimon/internal/database"
	"github.com/TobiSchelling/kpimon/internal/normalize"
)

const twoRowCSV = `date,content_id,title,category,impressions,clicks,conversions,avg_dwell_sec,bounce_rate
2025-09-01,A101,Coffee,Lifestyle,1000,100,10,60.0,0.40
2025-09-01,A102,Cameras,Electronics,500,50,5,45.0,0.30
`

func testOptions(t *testing.T, csv string) Options {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "raw_metrics.csv")
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		t.Fatalf("writing csv: %v", err)
	}
	return Options{CSVPath: csvPath, DBPath: filepath.Join(dir, "content_kpi.db")}
}

func queryAll(t *testing.T, opts Options) []database.KPIRow {
	t.Helper()
	db, err := database.Open(opts.DBPath, "")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer db.Close()
	rows, err := db.KPIRows(database.Filter{})
	if err != nil {
		t.Fatalf("querying kpi view: %v", err)
	}
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	opts := testOptions(t, twoRowCSV)

	n, err := Run(opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 ingested rows, got %d", n)
	}

	rows := queryAll(t, opts)
	if len(rows) != 2 {
		t.Fatalf("expected 2 kpi rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.CTR != 0.10 || r.ConversionRate != 0.10 {
			t.Errorf("%s: expected ctr=0.10 and conversion_rate=0.10, got %v/%v",
				r.ContentID, r.CTR, r.ConversionRate)
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	opts := testOptions(t, twoRowCSV)

	if _, err := Run(opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := queryAll(t, opts)

	if _, err := Run(opts); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := queryAll(t, opts)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-running ingest changed stored state")
	}
}

func TestRunReplacesChangedRow(t *testing.T) {
	opts := testOptions(t, twoRowCSV)
	if _, err := Run(opts); err != nil {
		t.Fatalf("first run: %v", err)
	}

	updated := `date,content_id,title,category,impressions,clicks,conversions,avg_dwell_sec,bounce_rate
2025-09-01,A101,Coffee,Lifestyle,2000,400,40,55.0,0.35
`
	if err := os.WriteFile(opts.CSVPath, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewriting csv: %v", err)
	}
	if _, err := Run(opts); err != nil {
		t.Fatalf("second run: %v", err)
	}

	rows := queryAll(t, opts)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (A101 replaced, A102 kept), got %d", len(rows))
	}
	for _, r := range rows {
		if r.ContentID == "A101" && r.Impressions != 2000 {
			t.Errorf("expected A101 replaced with new values, got impressions=%d", r.Impressions)
		}
	}
}

func TestRunBadDateCommitsNothing(t *testing.T) {
	// Fail-fast at the file level: one bad date among valid rows fails
	// the run before any store mutation.
	csv := `date,content_id,title,category,impressions,clicks,conversions,avg_dwell_sec,bounce_rate
2025-09-01,A101,Coffee,Lifestyle,1000,100,10,60.0,0.40
never,A102,Cameras,Electronics,500,50,5,45.0,0.30
`
	opts := testOptions(t, csv)

	_, err := Run(opts)
	if !errors.Is(err, normalize.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}

	rows := queryAll(t, opts)
	if len(rows) != 0 {
		t.Errorf("expected no committed rows, got %d", len(rows))
	}
}

func TestRunLenientNumericIngests(t *testing.T) {
	csv := `date,content_id,title,category,impressions,clicks,conversions,avg_dwell_sec,bounce_rate
2025-09-01,A101,Coffee,Lifestyle,1000,n/a,10,60.0,0.40
`
	opts := testOptions(t, csv)

	n, err := Run(opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 ingested row, got %d", n)
	}

	rows := queryAll(t, opts)
	if len(rows) != 1 || rows[0].Clicks != 0 {
		t.Errorf("expected clicks coerced to 0, got %+v", rows)
	}
	if rows[0].CTR != 0 {
		t.Errorf("expected ctr=0 after coercion, got %v", rows[0].CTR)
	}
}

func TestRunMissingCSV(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(Options{
		CSVPath: filepath.Join(dir, "nope.csv"),
		DBPath:  filepath.Join(dir, "content_kpi.db"),
	})
	if err == nil {
		t.Error("expected error for missing csv")
	}
}
