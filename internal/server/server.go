package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/kpimon/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

//go:embed about.md
var aboutMarkdown []byte

var md = goldmark.New()

// Server is the read-only dashboard over the KPI view.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// Summary aggregates the filtered rows for the KPI tiles. Overall CTR
// and conversion rate follow the same zero-denominator rule as the
// per-row metrics.
type Summary struct {
	Impressions    int64
	Clicks         int64
	Conversions    int64
	CTR            float64
	ConversionRate float64
	AvgDwellSec    float64
	BounceRate     float64
}

// Trend is the CTR-over-time line chart, precomputed as SVG polyline
// points. Points is empty when there are fewer than two dates.
type Trend struct {
	Points string
	First  string
	Last   string
}

// CategoryBar is one row of the impressions-by-category bar chart.
// Width is a percentage of the largest category, preformatted.
type CategoryBar struct {
	Category    string
	Impressions int64
	Width       string
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"pct": func(f float64) string {
			return fmt.Sprintf("%.1f%%", f*100)
		},
		"dec1": func(f float64) string {
			return fmt.Sprintf("%.1f", f)
		},
	}

	// Parse base template first, then clone it per page so each page
	// gets its own {{define "content"}}.
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "about.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/about", s.handleAbout)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	filter := database.Filter{
		From:     r.URL.Query().Get("from"),
		To:       r.URL.Query().Get("to"),
		Category: r.URL.Query().Get("category"),
		Title:    r.URL.Query().Get("q"),
	}

	rows, err := s.db.KPIRows(filter)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	categories, err := s.db.Categories()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Rows":         rows,
		"Summary":      summarize(rows),
		"Categories":   categories,
		"Filter":       filter,
		"Trend":        ctrTrend(rows),
		"CategoryBars": categoryBars(rows),
	})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, "about.html", map[string]any{
		"Body": renderMarkdown(string(aboutMarkdown)),
	})
}

func (s *Server) render(w http.ResponseWriter, page string, data map[string]any) {
	tmpl, ok := s.pages[page]
	if !ok {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("rendering %s: %v", page, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func summarize(rows []database.KPIRow) Summary {
	var s Summary
	var dwell, bounce float64
	for _, r := range rows {
		s.Impressions += r.Impressions
		s.Clicks += r.Clicks
		s.Conversions += r.Conversions
		dwell += r.AvgDwellSec
		bounce += r.BounceRate
	}
	if s.Impressions > 0 {
		s.CTR = float64(s.Clicks) / float64(s.Impressions)
	}
	if s.Clicks > 0 {
		s.ConversionRate = float64(s.Conversions) / float64(s.Clicks)
	}
	if len(rows) > 0 {
		s.AvgDwellSec = dwell / float64(len(rows))
		s.BounceRate = bounce / float64(len(rows))
	}
	return s
}

// ctrTrend averages CTR per date and scales the series into polyline
// points for a 600x200 viewBox. Rows arrive sorted by date, so dates
// group sequentially.
func ctrTrend(rows []database.KPIRow) Trend {
	var dates []string
	var means []float64
	var sum float64
	var n int
	flush := func(date string) {
		if n > 0 {
			dates = append(dates, date)
			means = append(means, sum/float64(n))
		}
		sum, n = 0, 0
	}
	cur := ""
	for _, r := range rows {
		if r.Date != cur {
			flush(cur)
			cur = r.Date
		}
		sum += r.CTR
		n++
	}
	flush(cur)

	if len(dates) < 2 {
		return Trend{}
	}

	max := means[0]
	for _, m := range means {
		if m > max {
			max = m
		}
	}
	if max == 0 {
		max = 1
	}

	const w, h, pad = 600.0, 200.0, 10.0
	var b strings.Builder
	for i, m := range means {
		x := pad + float64(i)/float64(len(means)-1)*(w-2*pad)
		y := h - pad - m/max*(h-2*pad)
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.1f,%.1f", x, y)
	}
	return Trend{Points: b.String(), First: dates[0], Last: dates[len(dates)-1]}
}

// categoryBars totals impressions per category, largest first.
func categoryBars(rows []database.KPIRow) []CategoryBar {
	totals := make(map[string]int64)
	for _, r := range rows {
		if r.Category != "" {
			totals[r.Category] += r.Impressions
		}
	}
	if len(totals) == 0 {
		return nil
	}

	bars := make([]CategoryBar, 0, len(totals))
	var max int64
	for cat, n := range totals {
		bars = append(bars, CategoryBar{Category: cat, Impressions: n})
		if n > max {
			max = n
		}
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Impressions != bars[j].Impressions {
			return bars[i].Impressions > bars[j].Impressions
		}
		return bars[i].Category < bars[j].Category
	})
	for i := range bars {
		bars[i].Width = fmt.Sprintf("%.1f", float64(bars[i].Impressions)/float64(max)*100)
	}
	return bars
}

// Serve starts the HTTP server on the given port and blocks.
func Serve(db *database.DB, port int) error {
	s, err := New(db)
	if err != nil {
		return err
	}
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Handler())
}
