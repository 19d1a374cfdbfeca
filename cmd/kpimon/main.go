package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/TobiSchelling/kpimon/internal/config"
	"github.com/TobiSchelling/kpimon/internal/database"
	"github.com/TobiSchelling/kpimon/internal/ingest"
	"github.com/TobiSchelling/kpimon/internal/sample"
	"github.com/TobiSchelling/kpimon/internal/server"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kpimon",
	Short:   "Content KPI ingestion and monitoring",
	Long:    "kpimon ingests daily per-content engagement metrics into SQLite, derives CTR and conversion-rate KPIs, and serves a filterable dashboard.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(kpiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kpimon", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default config and schema script to the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat("kpimon.yaml"); err == nil {
			fmt.Println("Config already exists: kpimon.yaml")
		} else {
			if err := os.WriteFile("kpimon.yaml", config.DefaultConfigYAML, 0o644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Println("Created config: kpimon.yaml")
		}

		schemaPath := cfg.Paths.Schema
		if _, err := os.Stat(schemaPath); err == nil {
			fmt.Printf("Schema script already exists: %s\n", schemaPath)
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(schemaPath), 0o755); err != nil {
			return fmt.Errorf("creating schema directory: %w", err)
		}
		if err := os.WriteFile(schemaPath, database.DefaultSchema, 0o644); err != nil {
			return fmt.Errorf("writing schema script: %w", err)
		}
		fmt.Printf("Created schema script: %s\n", schemaPath)
		return nil
	},
}

// --- ingest command ---

var (
	csvPath    string
	dbPath     string
	schemaPath string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the raw metrics CSV into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := ingest.Options{
			CSVPath:    firstNonEmpty(csvPath, cfg.Paths.CSV),
			DBPath:     firstNonEmpty(dbPath, cfg.Paths.DB),
			SchemaPath: firstNonEmpty(schemaPath, cfg.Paths.Schema),
		}

		// A missing schema script at the config default is fine; the
		// built-in schema covers a fresh checkout. An explicitly given
		// path must exist.
		if schemaPath == "" {
			if _, err := os.Stat(opts.SchemaPath); err != nil {
				opts.SchemaPath = ""
			}
		}

		n, err := ingest.Run(opts)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d rows -> %s\n", n, opts.DBPath)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&csvPath, "csv", "", "Raw metrics CSV path (default from config)")
	ingestCmd.Flags().StringVar(&dbPath, "db", "", "SQLite store path (default from config)")
	ingestCmd.Flags().StringVar(&schemaPath, "schema", "", "Schema script path (default from config)")
}

// --- sample command ---

var sampleOut string

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a synthetic raw metrics CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := firstNonEmpty(sampleOut, cfg.Paths.CSV)
		opts := sample.DefaultOptions(out)
		if cfg.Sample.Days > 0 {
			opts.Days = cfg.Sample.Days
		}
		if cfg.Sample.StartDate != "" {
			start, err := time.Parse("2006-01-02", cfg.Sample.StartDate)
			if err != nil {
				return fmt.Errorf("invalid sample start_date %q: %w", cfg.Sample.StartDate, err)
			}
			opts.Start = start
		}

		n, err := sample.Write(opts)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote sample CSV with %d rows -> %s\n", n, out)
		return nil
	},
}

func init() {
	sampleCmd.Flags().StringVar(&sampleOut, "out", "", "Output CSV path (default from config)")
}

// --- kpi command ---

var (
	kpiFrom     string
	kpiTo       string
	kpiCategory string
	kpiTitle    string
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Print KPI rows from the derived view",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.KPIRows(database.Filter{
			From:     kpiFrom,
			To:       kpiTo,
			Category: kpiCategory,
			Title:    kpiTitle,
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No rows match. Run 'kpimon ingest' first, or relax the filters.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tCONTENT\tTITLE\tCATEGORY\tIMPR\tCLICKS\tCONV\tCTR\tCONV RATE")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.4f\t%.4f\n",
				r.Date, r.ContentID, r.Title, r.Category,
				r.Impressions, r.Clicks, r.Conversions, r.CTR, r.ConversionRate)
		}
		return w.Flush()
	},
}

func init() {
	kpiCmd.Flags().StringVar(&kpiFrom, "from", "", "Inclusive start date (YYYY-MM-DD)")
	kpiCmd.Flags().StringVar(&kpiTo, "to", "", "Inclusive end date (YYYY-MM-DD)")
	kpiCmd.Flags().StringVar(&kpiCategory, "category", "", "Exact category filter")
	kpiCmd.Flags().StringVar(&kpiTitle, "title", "", "Case-insensitive title substring filter")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Store: %s\n\n", db.Path())
		fmt.Printf("Metric rows: %d\n", stats.Rows)
		fmt.Printf("Contents: %d\n", stats.Contents)
		fmt.Printf("Categories: %d\n", stats.Categories)
		if stats.Rows > 0 {
			fmt.Printf("Date span: %s .. %s\n", stats.FirstDate, stats.LastDate)
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	schema := cfg.Paths.Schema
	if _, err := os.Stat(schema); err != nil {
		schema = ""
	}
	return database.Open(cfg.Paths.DB, schema)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
