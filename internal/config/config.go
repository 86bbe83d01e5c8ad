// Package config loads the transcoder configuration.
//
// Every field is a pointer so a file only needs to name what it changes;
// the Get* accessors supply defaults for anything left out. JSON and YAML
// files share the same keys.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/gamic2iwrf/internal/iq"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
)

// DefaultConfigPath is the canonical defaults file shipped with the repo.
const DefaultConfigPath = "config/gamic2iwrf.defaults.json"

// Run modes.
const (
	ModeArchive  = "archive"
	ModeFilelist = "filelist"
	ModeRealtime = "realtime"
)

// Config is the root configuration.
type Config struct {
	// Inputs
	Mode           *string `json:"mode,omitempty" yaml:"mode,omitempty"`
	InputDir       *string `json:"input_dir,omitempty" yaml:"input_dir,omitempty"`
	InputFileExt   *string `json:"input_file_ext,omitempty" yaml:"input_file_ext,omitempty"`
	ArchiveStart   *string `json:"archive_start,omitempty" yaml:"archive_start,omitempty"` // RFC 3339
	ArchiveEnd     *string `json:"archive_end,omitempty" yaml:"archive_end,omitempty"`     // RFC 3339
	PollInterval   *string `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"` // duration string like "1s"
	WaitTimeout    *string `json:"wait_timeout,omitempty" yaml:"wait_timeout,omitempty"`   // "0s" waits forever
	FileQuiescence *string `json:"file_quiescence,omitempty" yaml:"file_quiescence,omitempty"`
	Lookback       *string `json:"realtime_lookback,omitempty" yaml:"realtime_lookback,omitempty"`

	// Outputs
	OutputDir              *string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	OutputFormat           *string `json:"output_format,omitempty" yaml:"output_format,omitempty"` // iwrf | legacy
	IQEncoding             *string `json:"iq_encoding,omitempty" yaml:"iq_encoding,omitempty"`
	MetadataIntervalPulses *int    `json:"metadata_interval_pulses,omitempty" yaml:"metadata_interval_pulses,omitempty"`
	WriteLatestDataInfo    *bool   `json:"write_latest_data_info,omitempty" yaml:"write_latest_data_info,omitempty"`
	CatalogDBPath          *string `json:"catalog_db_path,omitempty" yaml:"catalog_db_path,omitempty"`
	MetricsTextfile        *string `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty"`

	// Transcoding
	ResetStatePerFile *bool `json:"reset_state_per_file,omitempty" yaml:"reset_state_per_file,omitempty"`

	// Site
	RadarID          *int      `json:"radar_id,omitempty" yaml:"radar_id,omitempty"`
	RadarName        *string   `json:"radar_name,omitempty" yaml:"radar_name,omitempty"`
	SiteName         *string   `json:"site_name,omitempty" yaml:"site_name,omitempty"`
	LatitudeDeg      *float64  `json:"latitude_deg,omitempty" yaml:"latitude_deg,omitempty"`
	LongitudeDeg     *float64  `json:"longitude_deg,omitempty" yaml:"longitude_deg,omitempty"`
	AltitudeM        *float64  `json:"altitude_m,omitempty" yaml:"altitude_m,omitempty"`
	XmitRcvMode      *string   `json:"xmit_rcv_mode,omitempty" yaml:"xmit_rcv_mode,omitempty"`
	PulseWidthsUs    []float64 `json:"pulse_width_table_us,omitempty" yaml:"pulse_width_table_us,omitempty"`
	ScanModeOverride *string   `json:"scan_mode_override,omitempty" yaml:"scan_mode_override,omitempty"`
	GainDbH          *float64  `json:"gain_db_h,omitempty" yaml:"gain_db_h,omitempty"`
	GainDbV          *float64  `json:"gain_db_v,omitempty" yaml:"gain_db_v,omitempty"`
	XmitPowerDbmH    *float64  `json:"xmit_power_dbm_h,omitempty" yaml:"xmit_power_dbm_h,omitempty"`
	XmitPowerDbmV    *float64  `json:"xmit_power_dbm_v,omitempty" yaml:"xmit_power_dbm_v,omitempty"`
	AntennaGainDbH   *float64  `json:"antenna_gain_db_h,omitempty" yaml:"antenna_gain_db_h,omitempty"`
	AntennaGainDbV   *float64  `json:"antenna_gain_db_v,omitempty" yaml:"antenna_gain_db_v,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Defaults returns a Config with every field set to its default, as written
// to the shipped defaults file.
func Defaults() *Config {
	return &Config{
		Mode:                   ptrString(ModeArchive),
		InputDir:               ptrString("."),
		InputFileExt:           ptrString(""),
		PollInterval:           ptrString("1s"),
		WaitTimeout:            ptrString("0s"),
		FileQuiescence:         ptrString("2s"),
		Lookback:               ptrString("0s"),
		OutputDir:              ptrString("./output"),
		OutputFormat:           ptrString("iwrf"),
		IQEncoding:             ptrString("fl32"),
		MetadataIntervalPulses: ptrInt(1000),
		WriteLatestDataInfo:    ptrBool(true),
		CatalogDBPath:          ptrString(""),
		MetricsTextfile:        ptrString(""),
		ResetStatePerFile:      ptrBool(false),
		RadarID:                ptrInt(0),
		RadarName:              ptrString("GAMIC"),
		SiteName:               ptrString(""),
		LatitudeDeg:            ptrFloat64(0),
		LongitudeDeg:           ptrFloat64(0),
		AltitudeM:              ptrFloat64(0),
		XmitRcvMode:            ptrString("sim_hv_fixed_hv"),
		PulseWidthsUs:          []float64{0.5, 1.0, 2.0},
		ScanModeOverride:       ptrString(""),
		GainDbH:                ptrFloat64(0),
		GainDbV:                ptrFloat64(0),
		XmitPowerDbmH:          ptrFloat64(float64(iwrf.MissingFloat)),
		XmitPowerDbmV:          ptrFloat64(float64(iwrf.MissingFloat)),
		AntennaGainDbH:         ptrFloat64(float64(iwrf.MissingFloat)),
		AntennaGainDbV:         ptrFloat64(float64(iwrf.MissingFloat)),
	}
}

// Load reads a JSON (.json) or YAML (.yaml, .yml) config file. Fields
// omitted from the file keep their defaults through the Get* accessors.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// working directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Mode != nil {
		switch *c.Mode {
		case ModeArchive, ModeFilelist, ModeRealtime:
		default:
			return fmt.Errorf("mode must be one of archive, filelist, realtime, got %q", *c.Mode)
		}
	}
	for name, v := range map[string]*string{
		"poll_interval":     c.PollInterval,
		"wait_timeout":      c.WaitTimeout,
		"file_quiescence":   c.FileQuiescence,
		"realtime_lookback": c.Lookback,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	for name, v := range map[string]*string{"archive_start": c.ArchiveStart, "archive_end": c.ArchiveEnd} {
		if v == nil || *v == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, *v); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
	}
	if c.OutputFormat != nil {
		if _, err := iwrf.ParseFormat(*c.OutputFormat); err != nil {
			return err
		}
	}
	if c.IQEncoding != nil {
		if _, err := iwrf.ParseEncoding(*c.IQEncoding); err != nil {
			return err
		}
	}
	if c.ScanModeOverride != nil && *c.ScanModeOverride != "" {
		if _, ok := iwrf.ParseScanMode(*c.ScanModeOverride); !ok {
			return fmt.Errorf("unknown scan_mode_override %q", *c.ScanModeOverride)
		}
	}
	if c.MetadataIntervalPulses != nil && *c.MetadataIntervalPulses < 1 {
		return fmt.Errorf("metadata_interval_pulses must be at least 1, got %d", *c.MetadataIntervalPulses)
	}
	if c.PulseWidthsUs != nil {
		if len(c.PulseWidthsUs) == 0 {
			return fmt.Errorf("pulse_width_table_us must not be empty")
		}
		for i, w := range c.PulseWidthsUs {
			if w <= 0 {
				return fmt.Errorf("pulse_width_table_us[%d] must be positive, got %g", i, w)
			}
		}
	}
	if c.LatitudeDeg != nil && (*c.LatitudeDeg < -90 || *c.LatitudeDeg > 90) {
		return fmt.Errorf("latitude_deg must be between -90 and 90, got %g", *c.LatitudeDeg)
	}
	if c.LongitudeDeg != nil && (*c.LongitudeDeg < -180 || *c.LongitudeDeg > 180) {
		return fmt.Errorf("longitude_deg must be between -180 and 180, got %g", *c.LongitudeDeg)
	}
	// Outputs nested under the input are skipped by discovery; the input
	// directory itself cannot be.
	if c.GetMode() != ModeFilelist && absPath(c.GetInputDir()) == absPath(c.GetOutputDir()) {
		return fmt.Errorf("output_dir %q must differ from input_dir %q", c.GetOutputDir(), c.GetInputDir())
	}
	return nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func getString(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func getTime(p *string) time.Time {
	if p == nil || *p == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, *p)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetMode returns the run mode or the default, archive.
func (c *Config) GetMode() string { return getString(c.Mode, ModeArchive) }

// GetInputDir returns the input directory.
func (c *Config) GetInputDir() string { return getString(c.InputDir, ".") }

// GetInputFileExt returns the input file suffix filter; empty matches all.
func (c *Config) GetInputFileExt() string { return getString(c.InputFileExt, "") }

// GetArchiveStart returns the archive start time, zero when unset.
func (c *Config) GetArchiveStart() time.Time { return getTime(c.ArchiveStart) }

// GetArchiveEnd returns the archive end time, zero when unset.
func (c *Config) GetArchiveEnd() time.Time { return getTime(c.ArchiveEnd) }

// GetPollInterval returns the realtime poll interval.
func (c *Config) GetPollInterval() time.Duration { return getDuration(c.PollInterval, time.Second) }

// GetWaitTimeout returns the realtime wait bound; zero waits forever.
func (c *Config) GetWaitTimeout() time.Duration { return getDuration(c.WaitTimeout, 0) }

// GetFileQuiescence returns how long an input must be idle before reading.
func (c *Config) GetFileQuiescence() time.Duration {
	return getDuration(c.FileQuiescence, 2*time.Second)
}

// GetLookback returns the realtime lookback window.
func (c *Config) GetLookback() time.Duration { return getDuration(c.Lookback, 0) }

// GetOutputDir returns the output root.
func (c *Config) GetOutputDir() string { return getString(c.OutputDir, "./output") }

// GetOutputFormat returns the output framing.
func (c *Config) GetOutputFormat() iwrf.Format {
	f, err := iwrf.ParseFormat(getString(c.OutputFormat, "iwrf"))
	if err != nil {
		return iwrf.FormatIWRF
	}
	return f
}

// GetIQEncoding returns the IQ packing.
func (c *Config) GetIQEncoding() iwrf.IQEncoding {
	e, err := iwrf.ParseEncoding(getString(c.IQEncoding, "fl32"))
	if err != nil {
		return iwrf.EncodingFL32
	}
	return e
}

// GetMetadataIntervalPulses returns the metadata refresh interval.
func (c *Config) GetMetadataIntervalPulses() int {
	if c.MetadataIntervalPulses == nil {
		return 1000
	}
	return *c.MetadataIntervalPulses
}

// GetWriteLatestDataInfo reports whether _latest_data_info files are written.
func (c *Config) GetWriteLatestDataInfo() bool {
	if c.WriteLatestDataInfo == nil {
		return true
	}
	return *c.WriteLatestDataInfo
}

// GetCatalogDBPath returns the catalog path; empty disables the catalog.
func (c *Config) GetCatalogDBPath() string { return getString(c.CatalogDBPath, "") }

// GetMetricsTextfile returns the metrics textfile path; empty disables it.
func (c *Config) GetMetricsTextfile() string { return getString(c.MetricsTextfile, "") }

// GetResetStatePerFile reports whether PRT and burst phase carries are
// cleared at the start of each input file. Default false: carry across.
func (c *Config) GetResetStatePerFile() bool {
	if c.ResetStatePerFile == nil {
		return false
	}
	return *c.ResetStatePerFile
}

// GetRadarID returns the envelope radar ID.
func (c *Config) GetRadarID() int {
	if c.RadarID == nil {
		return 0
	}
	return *c.RadarID
}

// GetRadarName returns the radar name.
func (c *Config) GetRadarName() string { return getString(c.RadarName, "GAMIC") }

// GetSiteName returns the site name.
func (c *Config) GetSiteName() string { return getString(c.SiteName, "") }

// GetXmitRcvMode returns the configured transmit/receive mode name.
func (c *Config) GetXmitRcvMode() string { return getString(c.XmitRcvMode, "sim_hv_fixed_hv") }

// GetPulseWidthsUs returns the pulse width lookup table.
func (c *Config) GetPulseWidthsUs() []float64 {
	if len(c.PulseWidthsUs) == 0 {
		return []float64{0.5, 1.0, 2.0}
	}
	return c.PulseWidthsUs
}

// GetScanModeOverride returns the forced scan mode, or ScanNotSet.
func (c *Config) GetScanModeOverride() iwrf.ScanMode {
	m, _ := iwrf.ParseScanMode(getString(c.ScanModeOverride, ""))
	return m
}

// Gains returns the receiver gains to remove from the IQ data.
func (c *Config) Gains() iq.Gains {
	return iq.Gains{DbH: getFloat(c.GainDbH, 0), DbV: getFloat(c.GainDbV, 0)}
}

// Site returns the site description used to classify pulses.
func (c *Config) Site() modes.Site {
	missing := float64(iwrf.MissingFloat)
	return modes.Site{
		XmitRcvMode:      c.GetXmitRcvMode(),
		PulseWidthsUs:    c.GetPulseWidthsUs(),
		XmitPowerDbmH:    getFloat(c.XmitPowerDbmH, missing),
		XmitPowerDbmV:    getFloat(c.XmitPowerDbmV, missing),
		AntennaGainDbH:   getFloat(c.AntennaGainDbH, missing),
		AntennaGainDbV:   getFloat(c.AntennaGainDbV, missing),
		ScanModeOverride: c.GetScanModeOverride(),
	}
}

// Location returns latitude, longitude and altitude.
func (c *Config) Location() (lat, lon, alt float64) {
	return getFloat(c.LatitudeDeg, 0), getFloat(c.LongitudeDeg, 0), getFloat(c.AltitudeM, 0)
}
