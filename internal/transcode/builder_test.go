package transcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gamic2iwrf/internal/gamic"
	"github.com/banshee-data/gamic2iwrf/internal/iq"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
	"github.com/banshee-data/gamic2iwrf/internal/testutil"
)

func testOptions() Options {
	return Options{
		RadarID:   3,
		RadarName: "TESTRAD",
		SiteName:  "Rooftop",
		Encoding:  iwrf.EncodingFL32,
		Site: modes.Site{
			XmitRcvMode:   "sim_hv_fixed_hv",
			PulseWidthsUs: []float64{0.5, 1.0},
		},
	}
}

func TestAngles(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, Azimuth(0))
	assert.InDelta(t, 359.9945068359375, Azimuth(65535), 1e-9)
	assert.InDelta(t, 180.0, Azimuth(32768), 0.01)
	assert.Equal(t, 0.0, Elevation(0))
	assert.InDelta(t, 179.9945068359375, Elevation(32767), 1e-9)
	assert.InDelta(t, -179.9945068359375, Elevation(-32767), 1e-9)
}

func TestPhaseDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to, want float64
	}{
		{10, 0, 10},
		{0, 10, -10},
		{170, -170, -20},
		{-170, 170, 20},
		{359, 1, -2},
		{180, 0, 180},
		{0, 180, 180},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, PhaseDiff(tt.from, tt.to), 1e-9, "%v-%v", tt.from, tt.to)
	}
}

func TestBuildPulse_DualPolThreePulses(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testOptions())
	seq := testutil.Sequence(10, 3, 1000)
	seq[0].BurstPh = 350
	seq[1].BurstPh = 10
	seq[2].BurstPh = 5

	var pulses []*Pulse
	for _, o := range seq {
		rec := testutil.Record(o)
		p, err := b.BuildPulse(rec, b.Classify(rec))
		require.NoError(t, err)
		pulses = append(pulses, p)
	}

	// Channel 0 of a 4 gate dual-pol record is every other IQ pair.
	assert.Equal(t, []float32{0, 1, 4, 5, 8, 9, 12, 13}, pulses[0].Samples[:8])
	assert.Equal(t, []float32{2, 3, 6, 7, 10, 11, 14, 15}, pulses[0].Samples[8:])

	for i, p := range pulses {
		assert.Equal(t, int64(10+i), p.Header.PulseSeqNum)
		assert.Equal(t, int64(i+1), p.Header.Packet.SeqNum)
		assert.Equal(t, int32(4), p.Header.NGates)
		assert.Equal(t, int32(2), p.Header.NChannels)
		assert.Equal(t, int32(16), p.Header.NData)
		assert.Equal(t, [iwrf.MaxChan]int32{0, 8, 0, 0}, p.Header.IQOffset)
		assert.Len(t, p.Payload, 16*4)
	}

	// First pulse measures against the zeroed state.
	assert.InDelta(t, float64(testutil.BaseTimeSecs), pulses[0].PrtSecs, 1e-3)
	assert.InDelta(t, 0.001, pulses[1].PrtSecs, 1e-9)
	assert.InDelta(t, 0.001, pulses[2].PrtSecs, 1e-9)
	assert.InDelta(t, 0.001, pulses[2].Header.Prt, 1e-9)

	assert.InDelta(t, 10.0, pulses[0].Header.BurstArgDiff[0], 1e-4)
	assert.InDelta(t, -20.0, pulses[1].Header.BurstArgDiff[0], 1e-4)
	assert.InDelta(t, 5.0, pulses[2].Header.BurstArgDiff[0], 1e-4)

	assert.InDelta(t, Azimuth(2), pulses[2].Azimuth, 1e-12)
	assert.Equal(t, time.Unix(testutil.BaseTimeSecs, 2000000).UTC(), pulses[2].Time)

	st := b.State()
	assert.Equal(t, int64(3), st.PacketSeqNum)
	assert.Equal(t, int64(12), st.PulseSeqNum)
	assert.Equal(t, int32(2000000), st.PrevPulseNanoSecs)
	assert.Equal(t, 5.0, st.PrevBurstPhase)
}

func TestBuildPulse_GainApplied(t *testing.T) {
	t.Parallel()
	opts := testOptions()
	opts.Gains = iq.Gains{DbH: 20, DbV: 0}
	b := NewBuilder(opts)
	rec := testutil.Record(testutil.PulseOpts{Counter: 1, Ops: gamic.OpsDualPol, NGates: 2})

	p, err := b.BuildPulse(rec, b.Classify(rec))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.1, 0.4, 0.5}, p.Samples[:4], 1e-6)
	assert.InDeltaSlice(t, []float32{2, 3, 6, 7}, p.Samples[4:], 1e-6)
}

func TestBuildPulse_VerticalOnlyBurst(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testOptions())
	rec := testutil.Record(testutil.PulseOpts{Counter: 1, Ops: gamic.OpsVerticalOnly, NGates: 3})
	rec.Header.BurstMagV = 0.25

	p, err := b.BuildPulse(rec, b.Classify(rec))
	require.NoError(t, err)
	assert.Equal(t, int32(0), p.Header.HvFlag)
	assert.Equal(t, float32(0.25), p.Header.BurstMag[0])
	assert.Equal(t, iwrf.MissingFloat, p.Header.BurstMag[1])
	assert.Equal(t, rec.IQ, p.Samples)
}

func TestBuildPulse_UnknownLayout(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testOptions())
	rec := testutil.Record(testutil.PulseOpts{Counter: 1, Ambiguous: true})
	_, err := b.BuildPulse(rec, modes.Metadata{})
	assert.ErrorIs(t, err, gamic.ErrAmbiguousLayout)
	assert.Equal(t, int64(0), b.State().PacketSeqNum)
}

func TestBuildPulse_Encodings(t *testing.T) {
	t.Parallel()
	for _, enc := range []iwrf.IQEncoding{iwrf.EncodingScaledSI16, iwrf.EncodingDBMPhaseSI16, iwrf.EncodingSigmetFL16} {
		opts := testOptions()
		opts.Encoding = enc
		b := NewBuilder(opts)
		rec := testutil.Record(testutil.PulseOpts{Counter: 1})
		p, err := b.BuildPulse(rec, b.Classify(rec))
		require.NoError(t, err)
		assert.Equal(t, enc, p.Header.IQEncoding)
		assert.Len(t, p.Payload, 2*rec.Layout.NIQ())
	}
}

func TestMetadataPackets(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testOptions())
	rec := testutil.Record(testutil.PulseOpts{Counter: 1, HighPrf: 1200, LowPrf: 800, PwIndex: 1})
	meta := b.Classify(rec)
	at := time.Unix(testutil.BaseTimeSecs, 5000)

	pkts := b.MetadataPackets(meta, at)
	require.Len(t, pkts, 3)

	ri, ok := pkts[0].(*iwrf.RadarInfo)
	require.True(t, ok)
	assert.Equal(t, "TESTRAD", iwrf.Name(ri.RadarName))
	assert.Equal(t, "Rooftop", iwrf.Name(ri.SiteName))
	assert.InDelta(t, 5.31, ri.WavelengthCm, 1e-4)

	ts, ok := pkts[1].(*iwrf.TsProcessing)
	require.True(t, ok)
	assert.Equal(t, iwrf.PrfStag23, ts.PrfMode)
	assert.Equal(t, int32(2), ts.NumPrts)
	assert.Equal(t, iwrf.XmitRcvSimHvFixedHv, ts.XmitRcvMode)
	assert.Equal(t, iwrf.PolHvSim, ts.PolMode)
	assert.Equal(t, float32(1.0), ts.PulseWidthUs)
	assert.Equal(t, float32(75), ts.StartRangeM)
	assert.Equal(t, float32(150), ts.GateSpacingM)

	cal, ok := pkts[2].(*iwrf.Calibration)
	require.True(t, ok)
	assert.Equal(t, float32(-110), cal.NoiseDbm[iwrf.ChanHC])

	for i, p := range pkts {
		env := p.Envelope()
		assert.Equal(t, int64(i+1), env.SeqNum)
		assert.Equal(t, int32(3), env.RadarID)
		assert.Equal(t, int64(testutil.BaseTimeSecs), env.TimeSecsUTC)
		assert.Equal(t, int32(5000), env.TimeNanoSecs)
	}
}

func TestState_ResetKeepsSequence(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testOptions())
	rec := testutil.Record(testutil.PulseOpts{Counter: 5, BurstPh: 30})
	_, err := b.BuildPulse(rec, b.Classify(rec))
	require.NoError(t, err)

	b.ResetState()
	st := b.State()
	assert.Zero(t, st.PrevPulseTimeSecs)
	assert.Zero(t, st.PrevPulseNanoSecs)
	assert.Zero(t, st.PrevBurstPhase)
	assert.Equal(t, int64(1), st.PacketSeqNum)
	assert.Equal(t, int64(5), st.PulseSeqNum)
}
