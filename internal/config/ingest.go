package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/locationhistory/internal/fsutil"
	"github.com/banshee-data/locationhistory/internal/history"
)

// DefaultConfigPath is the path to the canonical ingest defaults file.
const DefaultConfigPath = "config/ingest.defaults.json"

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// IngestConfig is the on-disk ingest configuration. Every field is optional;
// the Get* methods supply defaults for omitted ones, so partial configs are
// safe.
type IngestConfig struct {
	// Record categories
	IncludeVisits     *bool `json:"include_visits,omitempty"`
	IncludeActivities *bool `json:"include_activities,omitempty"`
	IncludeRawPath    *bool `json:"include_raw_path,omitempty"`

	InterpolateMissingTimestamps *bool `json:"interpolate_missing_timestamps,omitempty"`

	// Files
	InputFile      *string `json:"input_file,omitempty"`
	DatabaseFile   *string `json:"database_file,omitempty"`
	JSONOutputFile *string `json:"json_output_file,omitempty"`

	// ProgressInterval is the element count between progress events; 0 keeps
	// the per-format default.
	ProgressInterval *int `json:"progress_interval,omitempty"`

	// ListenAddress is where the runs API is served when enabled.
	ListenAddress *string `json:"listen_address,omitempty"`
}

func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyIngestConfig returns an IngestConfig with all fields unset.
func EmptyIngestConfig() *IngestConfig {
	return &IngestConfig{}
}

// DefaultIngestConfig returns a config with every field set to its default.
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		IncludeVisits:                ptrBool(true),
		IncludeActivities:            ptrBool(true),
		IncludeRawPath:               ptrBool(true),
		InterpolateMissingTimestamps: ptrBool(true),
		InputFile:                    ptrString("Records.json"),
		DatabaseFile:                 ptrString(""),
		JSONOutputFile:               ptrString(""),
		ProgressInterval:             ptrInt(0),
		ListenAddress:                ptrString("localhost:8080"),
	}
}

// LoadIngestConfig loads an IngestConfig from a JSON file on disk.
func LoadIngestConfig(path string) (*IngestConfig, error) {
	return LoadIngestConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadIngestConfigFS loads an IngestConfig through fsys. The file must have a
// .json extension and be no larger than 1MB.
func LoadIngestConfigFS(fsys fsutil.FileSystem, path string) (*IngestConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyIngestConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. Panics if the file cannot be loaded, intended for test
// setup.
func MustLoadDefaultConfig() *IngestConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadIngestConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *IngestConfig) Validate() error {
	if c.ProgressInterval != nil && *c.ProgressInterval < 0 {
		return fmt.Errorf("progress_interval must be non-negative, got %d", *c.ProgressInterval)
	}

	if c.InputFile != nil && *c.InputFile != "" {
		if ext := filepath.Ext(*c.InputFile); ext != ".json" {
			return fmt.Errorf("input_file must be a .json export, got %q", *c.InputFile)
		}
	}

	if c.JSONOutputFile != nil && *c.JSONOutputFile != "" {
		if ext := filepath.Ext(*c.JSONOutputFile); ext != ".json" {
			return fmt.Errorf("json_output_file must have .json extension, got %q", *c.JSONOutputFile)
		}
		if c.InputFile != nil && filepath.Clean(*c.JSONOutputFile) == filepath.Clean(*c.InputFile) {
			return fmt.Errorf("json_output_file must not overwrite input_file %q", *c.InputFile)
		}
	}

	return nil
}

// Options builds the extraction options described by c.
func (c *IngestConfig) Options() history.Options {
	return history.Options{
		IncludeVisits:                c.GetIncludeVisits(),
		IncludeActivities:            c.GetIncludeActivities(),
		IncludeRawPath:               c.GetIncludeRawPath(),
		InterpolateMissingTimestamps: c.GetInterpolateMissingTimestamps(),
		InputPath:                    c.GetInputFile(),
	}
}

// GetIncludeVisits returns the include_visits value or the default.
func (c *IngestConfig) GetIncludeVisits() bool {
	if c.IncludeVisits == nil {
		return true
	}
	return *c.IncludeVisits
}

// GetIncludeActivities returns the include_activities value or the default.
func (c *IngestConfig) GetIncludeActivities() bool {
	if c.IncludeActivities == nil {
		return true
	}
	return *c.IncludeActivities
}

// GetIncludeRawPath returns the include_raw_path value or the default.
func (c *IngestConfig) GetIncludeRawPath() bool {
	if c.IncludeRawPath == nil {
		return true
	}
	return *c.IncludeRawPath
}

// GetInterpolateMissingTimestamps returns the interpolate_missing_timestamps
// value or the default.
func (c *IngestConfig) GetInterpolateMissingTimestamps() bool {
	if c.InterpolateMissingTimestamps == nil {
		return true
	}
	return *c.InterpolateMissingTimestamps
}

// GetInputFile returns the input_file value or the default.
func (c *IngestConfig) GetInputFile() string {
	if c.InputFile == nil || *c.InputFile == "" {
		return "Records.json"
	}
	return *c.InputFile
}

// GetDatabaseFile returns the database_file value; empty disables persistence.
func (c *IngestConfig) GetDatabaseFile() string {
	if c.DatabaseFile == nil {
		return ""
	}
	return *c.DatabaseFile
}

// GetJSONOutputFile returns the json_output_file value; empty disables the
// export.
func (c *IngestConfig) GetJSONOutputFile() string {
	if c.JSONOutputFile == nil {
		return ""
	}
	return *c.JSONOutputFile
}

// GetProgressInterval returns the progress_interval value or 0.
func (c *IngestConfig) GetProgressInterval() int {
	if c.ProgressInterval == nil {
		return 0
	}
	return *c.ProgressInterval
}

// GetListenAddress returns the listen_address value or the default.
func (c *IngestConfig) GetListenAddress() string {
	if c.ListenAddress == nil || *c.ListenAddress == "" {
		return "localhost:8080"
	}
	return *c.ListenAddress
}
