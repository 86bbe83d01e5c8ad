package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsFileMatchesDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(Defaults(), cfg); diff != "" {
		t.Errorf("defaults file drifted from Defaults() (-want +got):\n%s", diff)
	}
}

func TestExampleYAMLLoads(t *testing.T) {
	path := filepath.Join("..", "..", "config", "gamic2iwrf.example.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s): %v", path, err)
	}
	if cfg.GetMode() != ModeRealtime {
		t.Errorf("mode = %q, want realtime", cfg.GetMode())
	}
	if got := cfg.GetWaitTimeout(); got != 10*time.Minute {
		t.Errorf("wait timeout = %v, want 10m", got)
	}
	if got := cfg.Gains().DbH; got != 31.5 {
		t.Errorf("gain H = %v, want 31.5", got)
	}
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := Empty()
	if cfg.GetMode() != ModeArchive {
		t.Errorf("mode = %q", cfg.GetMode())
	}
	if cfg.GetMetadataIntervalPulses() != 1000 {
		t.Errorf("metadata interval = %d", cfg.GetMetadataIntervalPulses())
	}
	if cfg.GetPollInterval() != time.Second {
		t.Errorf("poll interval = %v", cfg.GetPollInterval())
	}
	if cfg.GetWaitTimeout() != 0 {
		t.Errorf("wait timeout = %v", cfg.GetWaitTimeout())
	}
	if cfg.GetResetStatePerFile() {
		t.Error("reset_state_per_file should default to false")
	}
	if !cfg.GetWriteLatestDataInfo() {
		t.Error("write_latest_data_info should default to true")
	}
	if cfg.GetIQEncoding() != iwrf.EncodingFL32 || cfg.GetOutputFormat() != iwrf.FormatIWRF {
		t.Errorf("encoding/format = %v/%v", cfg.GetIQEncoding(), cfg.GetOutputFormat())
	}
	if !cfg.GetArchiveStart().IsZero() || !cfg.GetArchiveEnd().IsZero() {
		t.Error("archive window should be unbounded")
	}

	want := modes.Site{
		XmitRcvMode:    "sim_hv_fixed_hv",
		PulseWidthsUs:  []float64{0.5, 1.0, 2.0},
		XmitPowerDbmH:  modes.Missing,
		XmitPowerDbmV:  modes.Missing,
		AntennaGainDbH: modes.Missing,
		AntennaGainDbV: modes.Missing,
	}
	if diff := cmp.Diff(want, cfg.Site()); diff != "" {
		t.Errorf("Site() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPartialJSON(t *testing.T) {
	path := writeConfig(t, "c.json", `{"iq_encoding": "sigmet_fl16", "scan_mode_override": "RHI", "archive_start": "2024-03-15T12:00:00Z"}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GetIQEncoding() != iwrf.EncodingSigmetFL16 {
		t.Errorf("encoding = %v", cfg.GetIQEncoding())
	}
	if cfg.GetScanModeOverride() != iwrf.ScanRHI {
		t.Errorf("scan override = %v", cfg.GetScanModeOverride())
	}
	if want := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC); !cfg.GetArchiveStart().Equal(want) {
		t.Errorf("archive start = %v", cfg.GetArchiveStart())
	}
	// Unset fields keep defaults.
	if cfg.GetOutputDir() != "./output" {
		t.Errorf("output dir = %q", cfg.GetOutputDir())
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "c.toml", `mode = "archive"`, "extension"},
		{"unknown json key", "c.json", `{"moed": "archive"}`, "unknown field"},
		{"unknown yaml key", "c.yaml", "moed: archive\n", "not found"},
		{"bad mode", "c.json", `{"mode": "stream"}`, "mode must be"},
		{"bad duration", "c.yml", "poll_interval: soon\n", "poll_interval"},
		{"negative duration", "c.json", `{"wait_timeout": "-1s"}`, "non-negative"},
		{"bad time", "c.json", `{"archive_end": "yesterday"}`, "archive_end"},
		{"bad encoding", "c.json", `{"iq_encoding": "fl64"}`, "fl64"},
		{"bad format", "c.json", `{"output_format": "netcdf"}`, "netcdf"},
		{"bad scan tag", "c.json", `{"scan_mode_override": "rhi"}`, "scan_mode_override"},
		{"zero interval", "c.json", `{"metadata_interval_pulses": 0}`, "at least 1"},
		{"empty pw table", "c.json", `{"pulse_width_table_us": []}`, "must not be empty"},
		{"negative pw", "c.json", `{"pulse_width_table_us": [1.0, -0.5]}`, "pulse_width_table_us[1]"},
		{"latitude", "c.json", `{"latitude_deg": 91}`, "latitude_deg"},
		{"output is input", "c.json", `{"input_dir": "/data", "output_dir": "/data/"}`, "must differ"},
		{"output is default input", "c.json", `{"output_dir": "."}`, "must differ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestOutputDirPlacement(t *testing.T) {
	// Nested outputs are fine since discovery skips them, and a file list
	// never scans the input directory.
	for _, body := range []string{
		`{"input_dir": "/data", "output_dir": "/data/output"}`,
		`{"mode": "filelist", "input_dir": "/data", "output_dir": "/data"}`,
	} {
		if _, err := Load(writeConfig(t, "c.json", body)); err != nil {
			t.Errorf("Load(%s): %v", body, err)
		}
	}
}

func TestUnknownXmitModeIsAccepted(t *testing.T) {
	cfg, err := Load(writeConfig(t, "c.json", `{"xmit_rcv_mode": "laser"}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Site().XmitRcvMode != "laser" {
		t.Errorf("xmit mode = %q", cfg.Site().XmitRcvMode)
	}
}

func TestLoadTooLarge(t *testing.T) {
	body := `{"site_name": "` + strings.Repeat("x", 1<<20) + `"}`
	if _, err := Load(writeConfig(t, "big.json", body)); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("err = %v, want too large", err)
	}
}
