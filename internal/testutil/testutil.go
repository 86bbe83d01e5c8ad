// Package testutil provides shared test utilities and fixtures.
//
// This package centralises synthetic receiver records and files so the
// reader, transcoder and pipeline tests build inputs the same way.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/gamic2iwrf/internal/gamic"
)

// BaseTimeSecs is the timestamp of the first synthetic pulse
// (2024-03-15 12:34:56 UTC).
const BaseTimeSecs = 1710506096

// PulseOpts controls the synthetic header produced by Header. The zero Ops
// means dual polarization.
type PulseOpts struct {
	Counter   uint64
	Ops       gamic.OpsType
	Ambiguous bool // no gate count set at all
	NGates    int
	TimeSecs  uint32
	TimeUSecs uint32
	AziTag    uint16
	EleTag    int16
	PwIndex   uint16
	ScanType  uint16
	HighPrf   float32
	LowPrf    float32
	BurstPh   float32
}

// Header builds a plausible header for o. Zero values get sensible defaults.
func Header(o PulseOpts) gamic.Header {
	if o.NGates == 0 {
		o.NGates = 4
	}
	if o.TimeSecs == 0 {
		o.TimeSecs = BaseTimeSecs
	}
	if o.HighPrf == 0 {
		o.HighPrf = 1000
	}
	if o.ScanType == 0 {
		o.ScanType = gamic.ScanPPI
	}
	h := gamic.Header{
		TimeSecs:          o.TimeSecs,
		TimeUSecs:         o.TimeUSecs,
		PulseCounter:      o.Counter,
		HighPrf:           o.HighPrf,
		LowPrf:            o.LowPrf,
		AziTag:            o.AziTag,
		EleTag:            o.EleTag,
		PwIndex:           o.PwIndex,
		ScanType:          o.ScanType,
		RangeResolutionIQ: 150,
		WavelengthM:       0.0531,
		BeamwidthH:        1.0,
		BeamwidthV:        1.0,
		BurstMagH:         0.8,
		BurstMagV:         0.7,
		BurstPhaseH:       o.BurstPh,
		BurstPhaseV:       o.BurstPh,
		NoiseLevelH:       -110,
		NoiseLevelV:       -110,
	}
	switch {
	case o.Ambiguous:
	case o.Ops == gamic.OpsHorizontalOnly:
		h.NumHorIQ = uint32(o.NGates)
	case o.Ops == gamic.OpsVerticalOnly:
		h.NumVerIQ = uint32(o.NGates)
	default:
		h.NumDualIQ = uint32(o.NGates)
	}
	return h
}

// Ramp returns n values 0, 1, 2, ...
func Ramp(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i)
	}
	return v
}

// Record builds a decoded record with a ramp payload.
func Record(o PulseOpts) *gamic.Record {
	h := Header(o)
	l, err := gamic.LayoutOf(&h)
	if err != nil {
		return &gamic.Record{Header: h, Layout: l}
	}
	return &gamic.Record{Header: h, Layout: l, IQ: Ramp(l.NIQ())}
}

// Sequence returns n dual-pol pulses spaced prtUsec apart starting at
// counter first, with the azimuth advancing by one tag per pulse.
func Sequence(first uint64, n int, prtUsec uint32) []PulseOpts {
	out := make([]PulseOpts, n)
	for i := range out {
		us := uint64(i) * uint64(prtUsec)
		out[i] = PulseOpts{
			Counter:   first + uint64(i),
			Ops:       gamic.OpsDualPol,
			TimeSecs:  BaseTimeSecs + uint32(us/1e6),
			TimeUSecs: uint32(us % 1e6),
			AziTag:    uint16(i),
			EleTag:    91, // about 0.5 deg
			PwIndex:   0,
		}
	}
	return out
}

// EncodeFile returns the on-disk bytes of the given pulses.
func EncodeFile(t testing.TB, pulses []PulseOpts) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gamic.NewWriter(&buf)
	for _, o := range pulses {
		rec := Record(o)
		if err := w.Write(&rec.Header, rec.IQ); err != nil {
			t.Fatalf("encode pulse %d: %v", o.Counter, err)
		}
	}
	return buf.Bytes()
}

// WriteFile writes the pulses to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name string, pulses []PulseOpts) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, EncodeFile(t, pulses), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
