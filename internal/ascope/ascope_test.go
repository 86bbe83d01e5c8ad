package ascope

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/transcode"
)

var geom = Geometry{StartRangeM: 150, GateSpacingM: 300}

// toneTrain returns n pulses whose gate 1 on channel 0 rotates by freqHz at
// the given PRT. Channel 1 holds a constant unit phasor.
func toneTrain(n int, freqHz, prtSecs float64) []*transcode.Pulse {
	const nGates = 4
	start := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	out := make([]*transcode.Pulse, n)
	for k := range out {
		h := iwrf.NewPulseHeader()
		h.PulseSeqNum = int64(k + 1)
		h.NGates = nGates
		h.NChannels = 2
		h.HvFlag = 1
		s := make([]float32, 2*nGates*2)
		arg := 2 * math.Pi * freqHz * prtSecs * float64(k)
		s[2] = float32(math.Cos(arg))
		s[3] = float32(math.Sin(arg))
		s[2*nGates] = 1
		out[k] = &transcode.Pulse{
			Header:    h,
			Time:      start.Add(time.Duration(float64(k) * prtSecs * float64(time.Second))),
			Azimuth:   90,
			Elevation: 0.5,
			PrtSecs:   prtSecs,
			Samples:   s,
		}
	}
	return out
}

func TestFromPulse(t *testing.T) {
	t.Parallel()
	p := toneTrain(1, 0, 0.001)[0]
	p.Samples[4], p.Samples[5] = 0, -2

	prof, err := FromPulse(p, geom)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.15, 0.45, 0.75, 1.05}, prof.RangeKm)
	require.Len(t, prof.Channels, 2)

	h := prof.Channels[0]
	assert.Equal(t, "H", h.Name)
	assert.Equal(t, FloorDb, h.PowerDb[0])
	assert.InDelta(t, 0, h.PowerDb[1], 1e-9)
	assert.InDelta(t, 10*math.Log10(4), h.PowerDb[2], 1e-9)
	assert.InDelta(t, -90, h.PhaseDeg[2], 1e-9)
	assert.Equal(t, []float64{0, 1, 0, 0}, h.I)

	assert.Equal(t, "V", prof.Channels[1].Name)
	assert.InDelta(t, 0, prof.Channels[1].PowerDb[0], 1e-9)
}

func TestFromPulse_SingleChannelNames(t *testing.T) {
	t.Parallel()
	p := toneTrain(1, 0, 0.001)[0]
	p.Header.NChannels = 1
	p.Samples = p.Samples[:8]

	prof, err := FromPulse(p, geom)
	require.NoError(t, err)
	assert.Equal(t, "H", prof.Channels[0].Name)

	p.Header.HvFlag = 0
	prof, err = FromPulse(p, geom)
	require.NoError(t, err)
	assert.Equal(t, "V", prof.Channels[0].Name)
}

func TestFromPulse_BadLayout(t *testing.T) {
	t.Parallel()
	p := toneTrain(1, 0, 0.001)[0]
	p.Samples = p.Samples[:5]
	_, err := FromPulse(p, geom)
	assert.Error(t, err)
}

func TestMean(t *testing.T) {
	t.Parallel()
	ps := toneTrain(2, 0, 0.001)
	// Gate 1 power 1 then 9, mean 5.
	ps[1].Samples[2], ps[1].Samples[3] = 3, 0

	prof, err := Mean(ps, geom)
	require.NoError(t, err)
	assert.Equal(t, 2, prof.Pulses)
	assert.InDelta(t, 10*math.Log10(5), prof.Channels[0].PowerDb[1], 1e-9)
	assert.Equal(t, FloorDb, prof.Channels[0].PowerDb[3])

	_, err = Mean(nil, geom)
	assert.ErrorIs(t, err, ErrNoPulses)

	ps[1].Header.NGates = 2
	ps[1].Samples = ps[1].Samples[:8]
	_, err = Mean(ps, geom)
	assert.Error(t, err)
}

func TestDopplerSpectrum_PeakAtTone(t *testing.T) {
	t.Parallel()
	const (
		n   = 64
		prt = 0.001
	)
	// Bin 8 of 64 at 1 kHz PRF is 125 Hz.
	sp, err := DopplerSpectrum(toneTrain(n, 125, prt), 0, 1, geom, 0)
	require.NoError(t, err)
	assert.Equal(t, n, len(sp.FreqHz))
	assert.InDelta(t, -500, sp.FreqHz[0], 1e-9)
	assert.InDelta(t, 0, sp.FreqHz[n/2], 1e-9)
	assert.InDelta(t, 125, sp.PeakHz, 1e-9)
	assert.InDelta(t, prt, sp.PrtSecs, 1e-12)
	assert.InDelta(t, 0.45, sp.RangeKm, 1e-12)

	neg, err := DopplerSpectrum(toneTrain(n, -250, prt), 0, 1, geom, prt)
	require.NoError(t, err)
	assert.InDelta(t, -250, neg.PeakHz, 1e-9)
}

func TestDopplerSpectrum_Errors(t *testing.T) {
	t.Parallel()
	_, err := DopplerSpectrum(nil, 0, 0, geom, 0.001)
	assert.ErrorIs(t, err, ErrNoPulses)

	ps := toneTrain(4, 0, 0.001)
	_, err = DopplerSpectrum(ps, 2, 0, geom, 0)
	assert.Error(t, err, "channel")
	_, err = DopplerSpectrum(ps, 0, 4, geom, 0)
	assert.Error(t, err, "gate")

	for _, p := range ps {
		p.PrtSecs = 0
	}
	_, err = DopplerSpectrum(ps, 0, 0, geom, 0)
	assert.Error(t, err, "no PRT")
}

func TestPNGOutputs(t *testing.T) {
	t.Parallel()
	ps := toneTrain(16, 125, 0.001)
	prof, err := Mean(ps, geom)
	require.NoError(t, err)
	sp, err := DopplerSpectrum(ps, 0, 1, geom, 0)
	require.NoError(t, err)

	pl, err := PowerPlot(prof)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, pl))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	spl, err := SpectrumPlot(sp)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "spectrum.png")
	require.NoError(t, SavePNG(path, spl))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()
	ps := toneTrain(8, 125, 0.001)
	prof, err := FromPulse(ps[0], geom)
	require.NoError(t, err)
	sp, err := DopplerSpectrum(ps, 0, 1, geom, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, prof, &sp))
	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Doppler spectrum")
	assert.Contains(t, html, "Range (km)")

	buf.Reset()
	require.NoError(t, RenderHTML(&buf, prof, nil))
	assert.False(t, strings.Contains(buf.String(), "Doppler spectrum"))
}
