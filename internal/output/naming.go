package output

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
)

// NameFields is everything the output file name depends on.
type NameFields struct {
	Root      string
	Time      time.Time
	Azimuth   float64
	Elevation float64
	ScanMode  iwrf.ScanMode
	Encoding  iwrf.IQEncoding
	Format    iwrf.Format
}

// Name builds root/YYYYMMDD/HHMMSS.mmm_<fixed>_<moving>.<scan>[.<enc>].<ext>.
// RHI scans are fixed in azimuth and move in elevation; everything else is
// fixed in elevation. The fixed angle carries one decimal (x10).
func Name(f NameFields) string {
	t := f.Time.UTC()
	fixed, moving := f.Elevation, f.Azimuth
	if f.ScanMode.IsRHI() {
		fixed, moving = f.Azimuth, f.Elevation
	}

	parts := []string{
		fmt.Sprintf("%s.%03d_%03d_%03d",
			t.Format("150405"), t.Nanosecond()/int(time.Millisecond),
			int(math.Round(fixed*10)), int(math.Round(moving))),
		f.ScanMode.Tag(),
	}
	if tag := f.Encoding.Tag(); tag != "" {
		parts = append(parts, tag)
	}
	parts = append(parts, f.Format.FileExt())

	return filepath.Join(f.Root, t.Format("20060102"), strings.Join(parts, "."))
}
