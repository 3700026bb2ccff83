package main

import (
	"flag"
	"io"

	"github.com/banshee-data/locationhistory/internal/config"
	"github.com/banshee-data/locationhistory/internal/fsutil"
)

// cliFlags holds the command line. String flags override the config file when
// non-empty; the -no-* switches only ever turn a category off.
type cliFlags struct {
	configPath string
	input      string
	dbPath     string
	jsonOut    string
	listen     string

	serve         bool
	noVisits      bool
	noActivities  bool
	noRawPath     bool
	noInterpolate bool
	quiet         bool
	version       bool
}

func parseFlags(args []string, output io.Writer) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("locationhistory", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&f.configPath, "config", "", "Path to ingest config JSON (defaults to "+config.DefaultConfigPath+" when present)")
	fs.StringVar(&f.input, "input", "", "Location history export to ingest")
	fs.StringVar(&f.dbPath, "db", "", "SQLite database to record the run and its points in")
	fs.StringVar(&f.jsonOut, "json-out", "", "Write extracted points to this JSON file")
	fs.StringVar(&f.listen, "listen", "", "Listen address for -serve")
	fs.BoolVar(&f.serve, "serve", false, "Serve the runs API from -db after ingesting")
	fs.BoolVar(&f.noVisits, "no-visits", false, "Skip visit records")
	fs.BoolVar(&f.noActivities, "no-activities", false, "Skip activity records")
	fs.BoolVar(&f.noRawPath, "no-raw-path", false, "Skip raw path samples")
	fs.BoolVar(&f.noInterpolate, "no-interpolate", false, "Leave missing path timestamps unknown")
	fs.BoolVar(&f.quiet, "quiet", false, "Only log errors and the final summary")
	fs.BoolVar(&f.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// loadConfig reads the config named by -config, falling back to the shipped
// defaults file and then to built-in defaults, and overlays the flags.
func loadConfig(fsys fsutil.FileSystem, f *cliFlags) (*config.IngestConfig, error) {
	var cfg *config.IngestConfig
	switch {
	case f.configPath != "":
		c, err := config.LoadIngestConfigFS(fsys, f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	case fsys.Exists(config.DefaultConfigPath):
		c, err := config.LoadIngestConfigFS(fsys, config.DefaultConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	default:
		cfg = config.DefaultIngestConfig()
	}

	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *cliFlags) apply(cfg *config.IngestConfig) {
	off := false
	if f.input != "" {
		cfg.InputFile = &f.input
	}
	if f.dbPath != "" {
		cfg.DatabaseFile = &f.dbPath
	}
	if f.jsonOut != "" {
		cfg.JSONOutputFile = &f.jsonOut
	}
	if f.listen != "" {
		cfg.ListenAddress = &f.listen
	}
	if f.noVisits {
		cfg.IncludeVisits = &off
	}
	if f.noActivities {
		cfg.IncludeActivities = &off
	}
	if f.noRawPath {
		cfg.IncludeRawPath = &off
	}
	if f.noInterpolate {
		cfg.InterpolateMissingTimestamps = &off
	}
}
