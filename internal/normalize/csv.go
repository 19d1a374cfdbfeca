package normalize

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Columns is the canonical column order of the raw metrics file. The
// reader keys cells by header name, so input column order does not
// matter; this order is what the sample generator and exports use.
var Columns = []string{
	"date", "content_id", "title", "category",
	"impressions", "clicks", "conversions", "avg_dwell_sec", "bounce_rate",
}

// ReadFile reads a raw metrics CSV into header-keyed rows. The header
// row is required; cells beyond the header width are dropped and short
// rows leave the missing columns empty (coerced to 0 downstream).
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metrics file: %w", err)
	}
	defer f.Close()
	return readRows(f)
}

func readRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty metrics file, header row required", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrFormat, err)
	}

	var rows []Row
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading row: %v", ErrFormat, err)
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(cells) {
				row[name] = cells[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
