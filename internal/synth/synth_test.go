package synth

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gamic2iwrf/internal/ascope"
	"github.com/banshee-data/gamic2iwrf/internal/gamic"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
	"github.com/banshee-data/gamic2iwrf/internal/transcode"
)

func TestAngleTagsRoundTrip(t *testing.T) {
	t.Parallel()
	for _, az := range []float64{0, 0.5, 90, 180, 271.3, 359.99} {
		assert.InDelta(t, az, transcode.Azimuth(AzimuthTag(az)), 0.006, "az %g", az)
	}
	assert.Equal(t, uint16(0), AzimuthTag(360))
	assert.Equal(t, AzimuthTag(10), AzimuthTag(-350))
	for _, el := range []float64{-2, 0, 0.5, 45, 90} {
		assert.InDelta(t, el, transcode.Elevation(ElevationTag(el)), 0.006, "el %g", el)
	}
	assert.Equal(t, int16(32767), ElevationTag(400))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		edit func(p *Params)
	}{
		{"unknown ops", func(p *Params) { p.Ops = gamic.OpsUnknown }},
		{"no gates", func(p *Params) { p.NGates = 0 }},
		{"too many gates", func(p *Params) { p.NGates = gamic.MaxGates + 1 }},
		{"zero prf", func(p *Params) { p.PrfHz = 0 }},
		{"negative low prf", func(p *Params) { p.LowPrfHz = -1 }},
		{"target beyond range", func(p *Params) { p.TargetGate = p.NGates }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.edit(&p)
			_, err := New(p)
			assert.Error(t, err)
		})
	}
}

func readAll(t *testing.T, data []byte) []*gamic.Record {
	t.Helper()
	rd := gamic.NewReader(bytes.NewReader(data))
	var out []*gamic.Record
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestWriteTo_ReadsBack(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.NGates = 64
	p.TargetGate = 10
	p.LowPrfHz = 750
	g, err := New(p)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.WriteTo(&buf, 5))
	assert.Zero(t, buf.Len()%gamic.BlockSize)

	recs := readAll(t, buf.Bytes())
	require.Len(t, recs, 5)
	for i, rec := range recs {
		assert.Equal(t, uint64(i+1), rec.Header.PulseCounter)
		assert.Equal(t, gamic.OpsDualPol, rec.Layout.Ops)
		assert.Equal(t, 64, rec.Layout.NGates)
	}

	// Staggered: 1/1000 s after odd counters, 1/750 s after even ones.
	usec := func(r *gamic.Record) float64 {
		return float64(r.Header.TimeSecs)*1e6 + float64(r.Header.TimeUSecs)
	}
	assert.InDelta(t, 1000, usec(recs[1])-usec(recs[0]), 1)
	assert.InDelta(t, 1333, usec(recs[2])-usec(recs[1]), 1)

	// The antenna moves in azimuth at 18 deg/s.
	assert.Greater(t, recs[4].Header.AziTag, recs[0].Header.AziTag)
	assert.Equal(t, recs[0].Header.EleTag, recs[4].Header.EleTag)
}

func TestRHIMovesElevation(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.NGates = 8
	p.TargetGate = 1
	p.ScanType = gamic.ScanRHI
	p.StartAzDeg = 270
	p.RateDegS = 100
	g, err := New(p)
	require.NoError(t, err)

	first, _ := g.Next()
	for i := 0; i < 9; i++ {
		g.Next()
	}
	last, _ := g.Next()
	assert.Equal(t, first.AziTag, last.AziTag)
	assert.InDelta(t, 1.0, transcode.Elevation(last.EleTag)-transcode.Elevation(first.EleTag), 0.01)
}

func TestSingleChannelLayouts(t *testing.T) {
	t.Parallel()
	for _, ops := range []gamic.OpsType{gamic.OpsHorizontalOnly, gamic.OpsVerticalOnly} {
		p := DefaultParams()
		p.Ops = ops
		p.NGates = 16
		p.TargetGate = 3
		g, err := New(p)
		require.NoError(t, err)
		h, iq := g.Next()
		l, err := gamic.LayoutOf(&h)
		require.NoError(t, err)
		assert.Equal(t, ops, l.Ops)
		assert.Len(t, iq, 32)
	}
}

// The target shows up at its gate with its Doppler shift after a pass
// through the transcoder.
func TestTargetSurvivesTranscoding(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.NGates = 32
	p.TargetGate = 12
	p.DopplerHz = -250
	p.NoisePowerDb = -20
	g, err := New(p)
	require.NoError(t, err)

	b := transcode.NewBuilder(transcode.Options{
		Site: modes.Site{XmitRcvMode: "sim_hv_fixed_hv", PulseWidthsUs: []float64{1.0}},
	})
	var pulses []*transcode.Pulse
	var meta modes.Metadata
	for i := 0; i < 64; i++ {
		h, raw := g.Next()
		l, err := gamic.LayoutOf(&h)
		require.NoError(t, err)
		rec := &gamic.Record{Header: h, Layout: l, IQ: raw}
		if i == 0 {
			meta = b.Classify(rec)
		}
		pulse, err := b.BuildPulse(rec, meta)
		require.NoError(t, err)
		pulses = append(pulses, pulse)
	}

	geom := ascope.Geometry{StartRangeM: meta.StartRangeM, GateSpacingM: meta.GateSpacingM}
	prof, err := ascope.Mean(pulses, geom)
	require.NoError(t, err)
	h := prof.Channels[0]
	assert.InDelta(t, p.TargetPowerDb, h.PowerDb[p.TargetGate], 0.5)
	assert.Less(t, h.PowerDb[0], -10.0)
	v := prof.Channels[1]
	assert.InDelta(t, p.TargetPowerDb-p.ZdrDb, v.PowerDb[p.TargetGate], 0.5)

	sp, err := ascope.DopplerSpectrum(pulses[1:], 0, p.TargetGate, geom, 0)
	require.NoError(t, err)
	binHz := 1000.0 / float64(len(sp.FreqHz))
	assert.InDelta(t, p.DopplerHz, sp.PeakHz, binHz)
	assert.False(t, math.IsNaN(sp.PowerDb[0]))
}

func TestTimeAdvances(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.NGates = 4
	p.TargetGate = 0
	g, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, p.Start, g.Time())
	for i := 0; i < 1000; i++ {
		g.Next()
	}
	assert.WithinDuration(t, p.Start.Add(time.Second), g.Time(), time.Microsecond)
}
