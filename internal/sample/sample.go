// Package sample writes a synthetic raw metrics CSV with a fixed shape
// (catalog and date span) and randomized metric values.
package sample

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/TobiSchelling/kpimon/internal/normalize"
)

type catalogItem struct {
	ContentID string
	Title     string
	Category  string
}

var catalog = []catalogItem{
	{"A101", "10 Tips to Brew Coffee", "Lifestyle"},
	{"A102", "Best Cameras 2025", "Electronics"},
	{"A103", "Healthy Breakfast Ideas", "Lifestyle"},
	{"A104", "Travel Hacks Europe", "Travel"},
	{"A105", "Beginner’s Guide to Python", "Education"},
}

// Options controls the sample file's shape.
type Options struct {
	OutPath string
	Start   time.Time
	Days    int
	Seed    int64 // 0 seeds from the clock
}

// DefaultOptions matches the canonical sample: 30 days from 2025-09-01.
func DefaultOptions(outPath string) Options {
	return Options{
		OutPath: outPath,
		Start:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		Days:    30,
	}
}

// Write generates the sample CSV and returns the number of data rows.
// One row per catalog item per day; clicks derive from impressions and
// conversions from clicks so the ratios land in realistic ranges.
func Write(opts Options) (int, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	if err := os.MkdirAll(filepath.Dir(opts.OutPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(opts.OutPath)
	if err != nil {
		return 0, fmt.Errorf("creating sample file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(normalize.Columns); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	count := 0
	for d := 0; d < opts.Days; d++ {
		day := opts.Start.AddDate(0, 0, d).Format("2006-01-02")
		for _, item := range catalog {
			impressions := 400 + rng.Intn(1801)
			clicks := int(float64(impressions) * (0.08 + rng.Float64()*0.14))
			conversions := int(float64(clicks) * (0.07 + rng.Float64()*0.13))
			dwell := 25 + rng.Float64()*65
			bounce := 0.25 + rng.Float64()*0.35

			row := []string{
				day, item.ContentID, item.Title, item.Category,
				strconv.Itoa(impressions),
				strconv.Itoa(clicks),
				strconv.Itoa(conversions),
				strconv.FormatFloat(round(dwell, 1), 'f', 1, 64),
				strconv.FormatFloat(round(bounce, 2), 'f', 2, 64),
			}
			if err := w.Write(row); err != nil {
				return 0, fmt.Errorf("writing row: %w", err)
			}
			count++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flushing sample file: %w", err)
	}
	return count, nil
}

func round(f float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int(f*shift+0.5)) / shift
}
