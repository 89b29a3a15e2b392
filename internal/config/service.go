package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/energyshield/internal/fsutil"
	"github.com/banshee-data/energyshield/internal/lut"
)

// DefaultConfigPath is where the tools look for a service config when no
// -config flag is given.
const DefaultConfigPath = "config/energyshield.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// ServiceConfig configures where the lookup table comes from and how
// queries are answered. All fields are optional; the Get* methods supply
// defaults for anything omitted.
type ServiceConfig struct {
	// Table source: a blob file, or a table stored in the LUT database.
	LUTPath    *string `json:"lut_path,omitempty"`
	LUTDBPath  *string `json:"lut_db_path,omitempty"`
	LUTTableID *string `json:"lut_table_id,omitempty"` // UUID; empty selects the latest table
	LUTName    *string `json:"lut_name,omitempty"`     // restricts "latest" to one table name

	// BandRange is the optional [lo, hi) band restriction.
	BandRange []int `json:"band_range,omitempty"`

	// Query defaults
	LongDeltaTLimit *float64 `json:"long_delta_t_limit,omitempty"`
	Debug           *bool    `json:"debug,omitempty"`

	// HTTP server
	Listen      *string `json:"listen,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "5s"

	// GRPCListen enables the gRPC query endpoint; empty disables it.
	GRPCListen *string `json:"grpc_listen,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// DefaultServiceConfig returns a config with every field populated with
// its default.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		LUTPath:         ptrString(""),
		LUTDBPath:       ptrString(""),
		LUTTableID:      ptrString(""),
		LUTName:         ptrString(""),
		LongDeltaTLimit: ptrFloat64(0),
		Debug:           ptrBool(false),
		Listen:          ptrString(":8081"),
		ReadTimeout:     ptrString("5s"),
		GRPCListen:      ptrString(""),
	}
}

// LoadServiceConfig loads a ServiceConfig from a JSON file on disk.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	return LoadServiceConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadServiceConfigFS loads a ServiceConfig through fsys. The file must have
// a .json extension and be under 1MB. Fields omitted from the JSON file keep
// their defaults, so partial configs are safe.
func LoadServiceConfigFS(fsys fsutil.FileSystem, path string) (*ServiceConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ServiceConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid. Whether the band
// range fits the table is only known once the table is loaded.
func (c *ServiceConfig) Validate() error {
	if c.GetLUTPath() != "" && c.GetLUTDBPath() != "" {
		return fmt.Errorf("lut_path and lut_db_path are mutually exclusive")
	}

	if id := c.GetLUTTableID(); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid lut_table_id %q: %w", id, err)
		}
	}

	if c.BandRange != nil {
		if len(c.BandRange) != 2 {
			return fmt.Errorf("band_range must have exactly 2 elements, got %d", len(c.BandRange))
		}
		if c.BandRange[0] < 0 || c.BandRange[0] >= c.BandRange[1] {
			return fmt.Errorf("band_range [%d, %d) must satisfy 0 <= lo < hi", c.BandRange[0], c.BandRange[1])
		}
	}

	if c.LongDeltaTLimit != nil && !(*c.LongDeltaTLimit >= 0) {
		return fmt.Errorf("long_delta_t_limit must be non-negative, got %f", *c.LongDeltaTLimit)
	}

	if c.Listen != nil && *c.Listen == "" {
		return fmt.Errorf("listen must not be empty when set")
	}

	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		if _, err := time.ParseDuration(*c.ReadTimeout); err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
	}
	return nil
}

// GetLUTPath returns the lut_path value or "".
func (c *ServiceConfig) GetLUTPath() string {
	if c.LUTPath == nil {
		return ""
	}
	return *c.LUTPath
}

// GetLUTDBPath returns the lut_db_path value or "".
func (c *ServiceConfig) GetLUTDBPath() string {
	if c.LUTDBPath == nil {
		return ""
	}
	return *c.LUTDBPath
}

// GetLUTTableID returns the lut_table_id value or "".
func (c *ServiceConfig) GetLUTTableID() string {
	if c.LUTTableID == nil {
		return ""
	}
	return *c.LUTTableID
}

// GetLUTName returns the lut_name value or "".
func (c *ServiceConfig) GetLUTName() string {
	if c.LUTName == nil {
		return ""
	}
	return *c.LUTName
}

// GetBandRange returns the configured band restriction, or nil for the
// whole table.
func (c *ServiceConfig) GetBandRange() *lut.Range {
	if len(c.BandRange) != 2 {
		return nil
	}
	return &lut.Range{Lo: c.BandRange[0], Hi: c.BandRange[1]}
}

// GetLongDeltaTLimit returns the long_delta_t_limit value or the default.
func (c *ServiceConfig) GetLongDeltaTLimit() float64 {
	if c.LongDeltaTLimit == nil {
		return 0 // default: no extrapolation beyond the table
	}
	return *c.LongDeltaTLimit
}

// GetDebug returns the debug value or the default.
func (c *ServiceConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// GetListen returns the listen address or the default.
func (c *ServiceConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8081"
	}
	return *c.Listen
}

// GetGRPCListen returns the gRPC listen address, or "" when disabled.
func (c *ServiceConfig) GetGRPCListen() string {
	if c.GRPCListen == nil {
		return ""
	}
	return *c.GRPCListen
}

// GetReadTimeout parses and returns the ReadTimeout as a time.Duration.
func (c *ServiceConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout == nil || *c.ReadTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// ParseBandRange parses a "lo,hi" band restriction. An empty string means
// no restriction.
func ParseBandRange(s string) (*lut.Range, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("band range %q must be lo,hi", s)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid band range lower bound: %w", err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid band range upper bound: %w", err)
	}
	if lo < 0 || lo >= hi {
		return nil, fmt.Errorf("band range [%d, %d) must satisfy 0 <= lo < hi", lo, hi)
	}
	return &lut.Range{Lo: lo, Hi: hi}, nil
}
