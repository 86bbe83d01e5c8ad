// Package modes derives the radar operating mode from a pulse header and the
// site configuration.
package modes

import (
	"github.com/banshee-data/gamic2iwrf/internal/gamic"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/monitoring"
)

// Site holds the configured values that the receiver does not report.
type Site struct {
	XmitRcvMode      string
	PulseWidthsUs    []float64
	XmitPowerDbmH    float64
	XmitPowerDbmV    float64
	AntennaGainDbH   float64
	AntennaGainDbV   float64
	ScanModeOverride iwrf.ScanMode
}

// Metadata is the slowly varying description of a pulse stream.
type Metadata struct {
	XmitRcvMode iwrf.XmitRcvMode
	PolMode     iwrf.PolMode

	PrfMode  iwrf.PrfMode
	NumPrts  int
	PrtUsec  float64
	Prt2Usec float64

	PulseWidthUs       float64
	PulseWidthFallback bool

	StartRangeM  float64
	GateSpacingM float64
	NGates       int
	NChannels    int

	ScanMode iwrf.ScanMode

	WavelengthCm  float64
	BeamwidthDegH float64
	BeamwidthDegV float64

	XmitPowerDbmH  float64
	XmitPowerDbmV  float64
	AntennaGainDbH float64
	AntennaGainDbV float64

	NoiseDbmH      float64
	NoiseDbmV      float64
	BaseDbz1kmH    float64
	BaseDbz1kmV    float64
	ZdrCorrection  float64
	LdrCorrectionH float64
	LdrCorrectionV float64
	PhidpRotDeg    float64
}

// Missing marks a value that does not apply, matching the IWRF convention.
const Missing = float64(iwrf.MissingFloat)

type xmitPol struct {
	xmit iwrf.XmitRcvMode
	pol  iwrf.PolMode
}

var xmitModes = map[string]xmitPol{
	"single_pol_h":       {iwrf.XmitRcvSinglePol, iwrf.PolH},
	"single_pol_v":       {iwrf.XmitRcvSinglePolV, iwrf.PolV},
	"alt_hv_co_only":     {iwrf.XmitRcvAltHvCoOnly, iwrf.PolHvAlt},
	"alt_hv_co_cross":    {iwrf.XmitRcvAltHvCoCross, iwrf.PolHvAlt},
	"alt_hv_fixed_hv":    {iwrf.XmitRcvAltHvFixedHv, iwrf.PolHvAlt},
	"sim_hv_fixed_hv":    {iwrf.XmitRcvSimHvFixedHv, iwrf.PolHvSim},
	"sim_hv_switched_hv": {iwrf.XmitRcvSimHvSwitched, iwrf.PolHvSim},
	"h_only_fixed_hv":    {iwrf.XmitRcvHOnlyFixedHv, iwrf.PolH},
	"v_only_fixed_hv":    {iwrf.XmitRcvVOnlyFixedHv, iwrf.PolV},
	"alt_hhvv":           {iwrf.XmitRcvAltHhvv, iwrf.PolHhvvAlt},
}

// XmitRcvModes lists the accepted configuration names.
func XmitRcvModes() []string {
	names := make([]string, 0, len(xmitModes))
	for k := range xmitModes {
		names = append(names, k)
	}
	return names
}

// LookupXmitRcv maps a configuration name to the transmit/receive and
// polarization modes. Unknown names map to NOT_SET.
func LookupXmitRcv(name string) (iwrf.XmitRcvMode, iwrf.PolMode, bool) {
	m, ok := xmitModes[name]
	if !ok {
		return iwrf.XmitRcvNotSet, iwrf.PolNotSet, false
	}
	return m.xmit, m.pol, true
}

// StaggerMode classifies a PRT ratio (>= 1) into a stagger mode.
func StaggerMode(ratio float64) iwrf.PrfMode {
	switch {
	case ratio < 1.3:
		return iwrf.PrfStag45
	case ratio < 1.4:
		return iwrf.PrfStag34
	default:
		return iwrf.PrfStag23
	}
}

// ClassifyPrf returns the PRF mode and number of PRTs for a pair of PRFs in Hz.
func ClassifyPrf(highPrf, lowPrf float64) (iwrf.PrfMode, int) {
	if highPrf == lowPrf || lowPrf == 0 || highPrf == 0 {
		return iwrf.PrfFixed, 1
	}
	prt1 := 1 / highPrf
	prt2 := 1 / lowPrf
	ratio := prt1 / prt2
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return StaggerMode(ratio), 2
}

// ScanModeOf maps the receiver scan type to an IWRF scan mode.
func ScanModeOf(scanType uint16) iwrf.ScanMode {
	switch scanType {
	case gamic.ScanPPI:
		return iwrf.ScanAzSur360
	case gamic.ScanRHI:
		return iwrf.ScanRHI
	case gamic.ScanManualPPI:
		return iwrf.ScanManPPI
	case gamic.ScanManualRHI:
		return iwrf.ScanManRHI
	case gamic.ScanPointing:
		return iwrf.ScanPointing
	case gamic.ScanSector:
		return iwrf.ScanSector
	default:
		return iwrf.ScanNotSet
	}
}

// Classify derives the stream metadata for one record. An out of range
// pulse width index logs a warning and falls back to the first table entry.
func Classify(h *gamic.Header, l gamic.Layout, site Site) Metadata {
	m := Metadata{
		NGates:         l.NGates,
		NChannels:      l.NChannels,
		XmitPowerDbmH:  site.XmitPowerDbmH,
		XmitPowerDbmV:  site.XmitPowerDbmV,
		AntennaGainDbH: site.AntennaGainDbH,
		AntennaGainDbV: site.AntennaGainDbV,
		WavelengthCm:   float64(h.WavelengthM) * 100,
		BeamwidthDegH:  float64(h.BeamwidthH),
		BeamwidthDegV:  float64(h.BeamwidthV),
		NoiseDbmH:      float64(h.NoiseLevelH),
		NoiseDbmV:      float64(h.NoiseLevelV),
		BaseDbz1kmH:    float64(h.Dbz0H),
		BaseDbz1kmV:    float64(h.Dbz0V),
		ZdrCorrection:  float64(h.ZdrOffsetDb),
		LdrCorrectionH: float64(h.LdrOffsetHDb),
		LdrCorrectionV: float64(h.LdrOffsetVDb),
		PhidpRotDeg:    float64(h.PhidpOffsetDeg),
	}

	m.XmitRcvMode, m.PolMode, _ = LookupXmitRcv(site.XmitRcvMode)

	high, low := float64(h.HighPrf), float64(h.LowPrf)
	m.PrfMode, m.NumPrts = ClassifyPrf(high, low)
	m.PrtUsec, m.Prt2Usec = Missing, Missing
	if high > 0 {
		m.PrtUsec = 1e6 / high
	}
	if m.NumPrts == 2 {
		m.Prt2Usec = 1e6 / low
	}

	m.PulseWidthUs = Missing
	idx := int(h.PwIndex)
	if idx >= len(site.PulseWidthsUs) {
		monitoring.Warnf("pulse width index %d out of range (table has %d entries), using index 0", idx, len(site.PulseWidthsUs))
		m.PulseWidthFallback = true
		idx = 0
	}
	if idx < len(site.PulseWidthsUs) {
		m.PulseWidthUs = site.PulseWidthsUs[idx]
	}

	res := float64(h.RangeResolutionIQ)
	m.StartRangeM = res / 2
	m.GateSpacingM = res

	m.ScanMode = ScanModeOf(h.ScanType)
	if site.ScanModeOverride != iwrf.ScanNotSet {
		m.ScanMode = site.ScanModeOverride
	}
	return m
}
