package transcode

import (
	"fmt"
	"time"

	"github.com/banshee-data/gamic2iwrf/internal/gamic"
	"github.com/banshee-data/gamic2iwrf/internal/iq"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
	"github.com/banshee-data/gamic2iwrf/internal/monitoring"
)

// Options configures a Builder.
type Options struct {
	RadarID      int32
	RadarName    string
	SiteName     string
	LatitudeDeg  float64
	LongitudeDeg float64
	AltitudeM    float64
	Encoding     iwrf.IQEncoding
	Gains        iq.Gains
	Site         modes.Site
}

// Pulse is one transcoded pulse ready to be written.
type Pulse struct {
	Header    *iwrf.PulseHeader
	Payload   []byte
	Time      time.Time
	Azimuth   float64
	Elevation float64
	PrtSecs   float64
	BurstMag  float64
	// Samples is the channel-major, gain corrected IQ block before packing.
	Samples []float32
}

// Builder assembles metadata and pulse packets and owns the transcoder State.
type Builder struct {
	opts  Options
	state State
}

// NewBuilder returns a Builder with zeroed state.
func NewBuilder(opts Options) *Builder {
	if opts.Encoding == 0 {
		opts.Encoding = iwrf.EncodingFL32
	}
	return &Builder{opts: opts}
}

// State returns a copy of the current state.
func (b *Builder) State() State {
	return b.state
}

// ResetState clears the per-pulse carries.
func (b *Builder) ResetState() {
	b.state.Reset()
}

// Encoding returns the configured IQ encoding.
func (b *Builder) Encoding() iwrf.IQEncoding {
	return b.opts.Encoding
}

// Classify derives the metadata for rec from the site configuration.
func (b *Builder) Classify(rec *gamic.Record) modes.Metadata {
	return modes.Classify(&rec.Header, rec.Layout, b.opts.Site)
}

// MetadataPackets builds the radar info, processing and calibration packets
// for meta, stamped with consecutive sequence numbers and time t.
func (b *Builder) MetadataPackets(meta modes.Metadata, t time.Time) []iwrf.Packet {
	ri := iwrf.NewRadarInfo()
	ri.LatitudeDeg = float32(b.opts.LatitudeDeg)
	ri.LongitudeDeg = float32(b.opts.LongitudeDeg)
	ri.AltitudeM = float32(b.opts.AltitudeM)
	ri.BeamwidthDegH = float32(meta.BeamwidthDegH)
	ri.BeamwidthDegV = float32(meta.BeamwidthDegV)
	ri.WavelengthCm = float32(meta.WavelengthCm)
	ri.NominalGainAntDbH = float32(meta.AntennaGainDbH)
	ri.NominalGainAntDbV = float32(meta.AntennaGainDbV)
	iwrf.SetName(&ri.RadarName, b.opts.RadarName)
	iwrf.SetName(&ri.SiteName, b.opts.SiteName)

	ts := iwrf.NewTsProcessing()
	ts.XmitRcvMode = meta.XmitRcvMode
	ts.PolMode = meta.PolMode
	ts.PrfMode = meta.PrfMode
	ts.PulseType = iwrf.PulseTypeRect
	ts.PrtUsec = float32(meta.PrtUsec)
	ts.Prt2Usec = float32(meta.Prt2Usec)
	ts.NumPrts = int32(meta.NumPrts)
	ts.PulseWidthUs = float32(meta.PulseWidthUs)
	ts.StartRangeM = float32(meta.StartRangeM)
	ts.GateSpacingM = float32(meta.GateSpacingM)
	ts.BurstRangeOffsetM = 0
	ts.MaxGate = int32(meta.NGates)

	cal := iwrf.NewCalibration()
	cal.WavelengthCm = float32(meta.WavelengthCm)
	cal.BeamwidthDegH = float32(meta.BeamwidthDegH)
	cal.BeamwidthDegV = float32(meta.BeamwidthDegV)
	cal.GainAntDbH = float32(meta.AntennaGainDbH)
	cal.GainAntDbV = float32(meta.AntennaGainDbV)
	cal.PulseWidthUs = float32(meta.PulseWidthUs)
	cal.XmitPowerDbmH = float32(meta.XmitPowerDbmH)
	cal.XmitPowerDbmV = float32(meta.XmitPowerDbmV)
	cal.NoiseDbm[iwrf.ChanHC] = float32(meta.NoiseDbmH)
	cal.NoiseDbm[iwrf.ChanVC] = float32(meta.NoiseDbmV)
	cal.BaseDbz1km[iwrf.ChanHC] = float32(meta.BaseDbz1kmH)
	cal.BaseDbz1km[iwrf.ChanVC] = float32(meta.BaseDbz1kmV)
	cal.ReceiverGainDb[iwrf.ChanHC] = float32(b.opts.Gains.DbH)
	cal.ReceiverGainDb[iwrf.ChanVC] = float32(b.opts.Gains.DbV)
	cal.ZdrCorrectionDb = float32(meta.ZdrCorrection)
	cal.LdrCorrectionDbH = float32(meta.LdrCorrectionH)
	cal.LdrCorrectionDbV = float32(meta.LdrCorrectionV)
	cal.PhidpRotDeg = float32(meta.PhidpRotDeg)
	iwrf.SetName(&cal.RadarName, b.opts.RadarName)

	pkts := []iwrf.Packet{ri, ts, cal}
	for _, p := range pkts {
		p.Envelope().Stamp(b.state.nextPacketSeq(), b.opts.RadarID, t.Unix(), int32(t.Nanosecond()))
	}
	return pkts
}

// BuildPulse reorders, gain corrects and packs rec, derives the timing and
// burst fields, and advances the state.
func (b *Builder) BuildPulse(rec *gamic.Record, meta modes.Metadata) (*Pulse, error) {
	l := rec.Layout
	if l.Ops == gamic.OpsUnknown {
		return nil, fmt.Errorf("pulse %d: %w", rec.Header.PulseCounter, gamic.ErrAmbiguousLayout)
	}
	samples := make([]float32, l.NIQ())
	if err := iq.Reorder(samples, rec.IQ, l.NGates, l.NChannels); err != nil {
		return nil, fmt.Errorf("pulse %d: %w", rec.Header.PulseCounter, err)
	}
	iq.ApplyGain(samples, l, b.opts.Gains)

	enc, err := iwrf.Encode(samples, b.opts.Encoding)
	if err != nil {
		return nil, err
	}

	h := &rec.Header
	secs, nanos := h.Time()
	az := Azimuth(h.AziTag)
	el := Elevation(h.EleTag)
	prt := b.state.prtSince(secs, nanos)

	burstMag := [2]float32{h.BurstMagH, h.BurstMagV}
	burstArg := [2]float32{h.BurstPhaseH, h.BurstPhaseV}
	if l.Ops == gamic.OpsVerticalOnly {
		burstMag[0], burstMag[1] = h.BurstMagV, iwrf.MissingFloat
		burstArg[0], burstArg[1] = h.BurstPhaseV, iwrf.MissingFloat
	} else if l.Ops == gamic.OpsHorizontalOnly {
		burstMag[1] = iwrf.MissingFloat
		burstArg[1] = iwrf.MissingFloat
	}
	phase := float64(burstArg[0])
	phaseDiff := PhaseDiff(b.state.PrevBurstPhase, phase)

	ph := iwrf.NewPulseHeader()
	ph.PulseSeqNum = int64(h.PulseCounter)
	ph.ScanMode = meta.ScanMode
	ph.VolumeNum = int32(h.VolumeNum)
	ph.SweepNum = int32(h.SweepNum)
	if meta.ScanMode.IsRHI() {
		ph.FixedAz = float32(az)
	} else {
		ph.FixedEl = float32(el)
	}
	ph.Elevation = float32(el)
	ph.Azimuth = float32(az)
	ph.Prt = float32(prt)
	ph.PulseWidthUs = float32(meta.PulseWidthUs)
	ph.NGates = int32(l.NGates)
	ph.NChannels = int32(l.NChannels)
	ph.IQEncoding = enc.Encoding
	ph.HvFlag = 1
	if l.ChannelPol(0) == gamic.PolV {
		ph.HvFlag = 0
	}
	ph.PhaseCohered = 0
	ph.NData = int32(l.NIQ())
	for c := 0; c < l.NChannels && c < iwrf.MaxChan; c++ {
		ph.IQOffset[c] = int32(c * l.NIQPerChannel)
		if c < len(burstMag) {
			ph.BurstMag[c] = burstMag[c]
			ph.BurstArg[c] = burstArg[c]
		}
	}
	ph.BurstArgDiff[0] = float32(phaseDiff)
	ph.Scale = enc.Scale
	ph.Offset = enc.Offset
	ph.NGatesBurst = 0
	ph.StartRangeM = float32(meta.StartRangeM)
	ph.GateSpacingM = float32(meta.GateSpacingM)
	ph.Packet.Stamp(b.state.nextPacketSeq(), b.opts.RadarID, secs, nanos)

	b.state.PrevPulseTimeSecs = secs
	b.state.PrevPulseNanoSecs = nanos
	b.state.PrevBurstPhase = phase
	b.state.PulseSeqNum = ph.PulseSeqNum

	if monitoring.TraceEnabled() {
		monitoring.Tracef("pulse %d az=%.3f el=%.3f prt=%.6f burst_diff=%.2f", ph.PulseSeqNum, az, el, prt, phaseDiff)
	}

	return &Pulse{
		Header:    ph,
		Payload:   enc.Data,
		Time:      h.Timestamp(),
		Azimuth:   az,
		Elevation: el,
		PrtSecs:   prt,
		BurstMag:  float64(burstMag[0]),
		Samples:   samples,
	}, nil
}
