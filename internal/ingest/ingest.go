// Package ingest runs the one-shot batch pipeline:
// raw CSV -> normalize -> upsert into the store.
package ingest

import (
	"log"

	"github.com/TobiSchelling/kpimon/internal/database"
	"github.com/TobiSchelling/kpimon/internal/normalize"
)

// Options configures a single ingestion run. Paths are explicit here;
// defaults live at the CLI/config boundary, never inside the pipeline.
type Options struct {
	CSVPath    string
	DBPath     string
	SchemaPath string
}

// Run ingests the raw metrics file into the store and returns the count
// of records processed.
//
// The whole file is normalized before the store is touched, so a
// normalization failure commits nothing. The batch itself runs in one
// transaction and rolls back on store failure. The store handle is
// closed on every exit path. No retries; a run either completes or
// fails.
func Run(opts Options) (int, error) {
	rows, err := normalize.ReadFile(opts.CSVPath)
	if err != nil {
		return 0, err
	}

	recs, err := normalize.NormalizeAll(rows)
	if err != nil {
		return 0, err
	}

	db, err := database.Open(opts.DBPath, opts.SchemaPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	n, err := db.Ingest(recs)
	if err != nil {
		return 0, err
	}
	log.Printf("ingested %d records from %s", n, opts.CSVPath)
	return n, nil
}
