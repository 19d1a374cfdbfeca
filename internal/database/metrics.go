package database

import (
	"database/sql"
	"fmt"
)

// Upsert replaces any stored row sharing the record's (date, content_id)
// key, then inserts the record, inside a single transaction.
func (db *DB) Upsert(rec MetricRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin upsert: %v", ErrStore, err)
	}
	if err := upsertTx(tx, rec); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit upsert: %v", ErrStore, err)
	}
	return nil
}

// Ingest replaces-or-inserts every record in one transaction, in input
// order. A later record with the same (date, content_id) as an earlier
// one in the same batch wins. On any failure the whole batch rolls back
// and the store is left as it was before the call. Returns the number of
// records processed.
func (db *DB) Ingest(recs []MetricRecord) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin ingest: %v", ErrStore, err)
	}
	for _, rec := range recs {
		if err := upsertTx(tx, rec); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit ingest: %v", ErrStore, err)
	}
	return len(recs), nil
}

// upsertTx is the delete-then-insert at the heart of the pipeline.
// Replacement, not accumulation: re-ingesting a file yields the same
// final state as ingesting it once.
func upsertTx(tx *sql.Tx, rec MetricRecord) error {
	if _, err := tx.Exec(
		"DELETE FROM content_daily WHERE date = ? AND content_id = ?",
		rec.Date, rec.ContentID,
	); err != nil {
		return fmt.Errorf("%w: deleting %s/%s: %v", ErrStore, rec.Date, rec.ContentID, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO content_daily
		(date, content_id, title, category, impressions, clicks, conversions, avg_dwell_sec, bounce_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Date, rec.ContentID, rec.Title, rec.Category,
		rec.Impressions, rec.Clicks, rec.Conversions, rec.AvgDwellSec, rec.BounceRate,
	); err != nil {
		return fmt.Errorf("%w: inserting %s/%s: %v", ErrStore, rec.Date, rec.ContentID, err)
	}
	return nil
}

// KPIRows reads the derived KPI view, applying the filter's predicates
// conjunctively. The view is computed from current table state on every
// read; there is no caching here.
func (db *DB) KPIRows(f Filter) ([]KPIRow, error) {
	query := `SELECT date, content_id, title, category, impressions, clicks, conversions,
		avg_dwell_sec, bounce_rate, ctr, conversion_rate
		FROM v_content_kpi WHERE 1=1`
	var args []any
	if f.From != "" {
		query += " AND date >= ?"
		args = append(args, f.From)
	}
	if f.To != "" {
		query += " AND date <= ?"
		args = append(args, f.To)
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.Title != "" {
		query += " AND instr(lower(title), lower(?)) > 0"
		args = append(args, f.Title)
	}
	query += " ORDER BY date, content_id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying kpi view: %v", ErrStore, err)
	}
	defer rows.Close()

	var out []KPIRow
	for rows.Next() {
		var r KPIRow
		if err := rows.Scan(&r.Date, &r.ContentID, &r.Title, &r.Category,
			&r.Impressions, &r.Clicks, &r.Conversions,
			&r.AvgDwellSec, &r.BounceRate, &r.CTR, &r.ConversionRate); err != nil {
			return nil, fmt.Errorf("%w: scanning kpi row: %v", ErrStore, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading kpi rows: %v", ErrStore, err)
	}
	return out, nil
}

// Categories returns the distinct categories present in the store,
// sorted, for filter dropdowns.
func (db *DB) Categories() ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT DISTINCT category FROM content_daily WHERE category != '' ORDER BY category",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying categories: %v", ErrStore, err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("%w: scanning category: %v", ErrStore, err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetStats returns summary counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	var first, last sql.NullString
	err := db.conn.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT content_id), COUNT(DISTINCT category),
		MIN(date), MAX(date) FROM content_daily`,
	).Scan(&s.Rows, &s.Contents, &s.Categories, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("%w: querying stats: %v", ErrStore, err)
	}
	s.FirstDate = first.String
	s.LastDate = last.String
	return &s, nil
}
