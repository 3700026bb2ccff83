package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/locationhistory/internal/fsutil"
	"github.com/banshee-data/locationhistory/internal/history"
)

func TestDefaultIngestConfig(t *testing.T) {
	cfg := DefaultIngestConfig()

	if cfg.IncludeVisits == nil || *cfg.IncludeVisits != true {
		t.Errorf("Expected IncludeVisits true, got %v", cfg.IncludeVisits)
	}
	if cfg.InputFile == nil || *cfg.InputFile != "Records.json" {
		t.Errorf("Expected InputFile 'Records.json', got %v", cfg.InputFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	want := history.DefaultOptions().WithInput("Records.json")
	if got := cfg.Options(); got != want {
		t.Errorf("Options() = %+v, want %+v", got, want)
	}
}

func TestDefaultsFileMatchesCode(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	fromCode := DefaultIngestConfig()

	if fromFile.Options() != fromCode.Options() {
		t.Errorf("defaults file options %+v differ from code %+v", fromFile.Options(), fromCode.Options())
	}
	if fromFile.GetListenAddress() != fromCode.GetListenAddress() {
		t.Errorf("listen address %q != %q", fromFile.GetListenAddress(), fromCode.GetListenAddress())
	}
	if fromFile.GetProgressInterval() != fromCode.GetProgressInterval() {
		t.Errorf("progress interval %d != %d", fromFile.GetProgressInterval(), fromCode.GetProgressInterval())
	}
}

func TestLoadIngestConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ingest.json")

	testJSON := `{
  "include_visits": false,
  "include_raw_path": false,
  "input_file": "exports/Timeline.json",
  "database_file": "history.db",
  "progress_interval": 1000
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadIngestConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	opts := cfg.Options()
	if opts.IncludeVisits || opts.IncludeRawPath {
		t.Errorf("expected visits and raw path disabled, got %+v", opts)
	}
	if !opts.IncludeActivities || !opts.InterpolateMissingTimestamps {
		t.Errorf("omitted flags should default to true, got %+v", opts)
	}
	if opts.InputPath != "exports/Timeline.json" {
		t.Errorf("InputPath = %q", opts.InputPath)
	}
	if cfg.GetDatabaseFile() != "history.db" {
		t.Errorf("GetDatabaseFile() = %q", cfg.GetDatabaseFile())
	}
	if cfg.GetJSONOutputFile() != "" {
		t.Errorf("GetJSONOutputFile() = %q, want empty", cfg.GetJSONOutputFile())
	}
	if cfg.GetProgressInterval() != 1000 {
		t.Errorf("GetProgressInterval() = %d, want 1000", cfg.GetProgressInterval())
	}
}

func TestLoadIngestConfigFS(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("/etc/lh/ingest.json", []byte(`{"json_output_file": "out/points.json"}`))

	cfg, err := LoadIngestConfigFS(mfs, "/etc/lh/ingest.json")
	if err != nil {
		t.Fatalf("LoadIngestConfigFS: %v", err)
	}
	if cfg.GetJSONOutputFile() != "out/points.json" {
		t.Errorf("GetJSONOutputFile() = %q", cfg.GetJSONOutputFile())
	}
}

func TestLoadIngestConfigErrors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("/c/bad.json", []byte(`{not json`))
	mfs.WriteFile("/c/invalid.json", []byte(`{"progress_interval": -1}`))
	mfs.WriteFile("/c/big.json", []byte(`{"input_file": "`+strings.Repeat("a", maxConfigSize)+`.json"}`))
	mfs.WriteFile("/c/config.yaml", []byte(`{}`))

	tests := []struct {
		path string
		want string
	}{
		{"/c/config.yaml", "must have .json extension"},
		{"/c/missing.json", "failed to stat config file"},
		{"/c/big.json", "config file too large"},
		{"/c/bad.json", "failed to parse config JSON"},
		{"/c/invalid.json", "progress_interval must be non-negative"},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			_, err := LoadIngestConfigFS(mfs, tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     IngestConfig
		wantErr string
	}{
		{"empty", IngestConfig{}, ""},
		{"zero progress", IngestConfig{ProgressInterval: ptrInt(0)}, ""},
		{"non json input", IngestConfig{InputFile: ptrString("Records.csv")}, "input_file must be a .json export"},
		{"non json output", IngestConfig{JSONOutputFile: ptrString("out.txt")}, "json_output_file must have .json extension"},
		{"output overwrites input", IngestConfig{InputFile: ptrString("a/Records.json"), JSONOutputFile: ptrString("a/./Records.json")}, "must not overwrite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("unexpected error: %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptyIngestConfig()
	if cfg.GetInputFile() != "Records.json" {
		t.Errorf("GetInputFile() = %q", cfg.GetInputFile())
	}
	if cfg.GetListenAddress() != "localhost:8080" {
		t.Errorf("GetListenAddress() = %q", cfg.GetListenAddress())
	}
	if cfg.GetDatabaseFile() != "" || cfg.GetProgressInterval() != 0 {
		t.Errorf("unexpected defaults: db=%q progress=%d", cfg.GetDatabaseFile(), cfg.GetProgressInterval())
	}
}
