// Package synth generates synthetic receiver pulse streams: receiver noise
// plus one point target with a fixed Doppler shift, on a scanning antenna.
// It feeds the gen-gamic tool and end to end tests.
package synth

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/gamic2iwrf/internal/gamic"
)

// Params describes the stream to generate.
type Params struct {
	Start  time.Time
	Ops    gamic.OpsType
	NGates int
	PrfHz  float64
	// LowPrfHz, when non-zero, alternates PRTs for a staggered stream.
	LowPrfHz float64
	PwIndex  uint16
	ScanType uint16

	RangeResM    float64
	WavelengthM  float64
	BeamwidthDeg float64

	// Antenna motion. PPI-like scans move in azimuth at a fixed
	// elevation; RHI scans move in elevation at a fixed azimuth.
	StartAzDeg float64
	StartElDeg float64
	RateDegS   float64

	TargetGate    int
	TargetPowerDb float64
	DopplerHz     float64
	ZdrDb         float64
	NoisePowerDb  float64

	BurstMag float64
	Seed     uint64
}

// DefaultParams returns a C-band dual-pol PPI at 1 kHz.
func DefaultParams() Params {
	return Params{
		Start:         time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		Ops:           gamic.OpsDualPol,
		NGates:        500,
		PrfHz:         1000,
		ScanType:      gamic.ScanPPI,
		RangeResM:     150,
		WavelengthM:   0.0531,
		BeamwidthDeg:  1.0,
		StartElDeg:    0.5,
		RateDegS:      18,
		TargetGate:    100,
		TargetPowerDb: 20,
		DopplerHz:     125,
		ZdrDb:         1.5,
		NoisePowerDb:  -10,
		BurstMag:      0.8,
		Seed:          1,
	}
}

// Validate checks that p describes a stream the reader can decode.
func (p Params) Validate() error {
	switch {
	case p.Ops == gamic.OpsUnknown:
		return errors.New("synth: polarization mode must be set")
	case p.NGates <= 0 || p.NGates > gamic.MaxGates:
		return fmt.Errorf("synth: gate count %d out of range (1..%d)", p.NGates, gamic.MaxGates)
	case p.PrfHz <= 0:
		return fmt.Errorf("synth: PRF must be positive, got %g", p.PrfHz)
	case p.LowPrfHz < 0:
		return fmt.Errorf("synth: low PRF must not be negative, got %g", p.LowPrfHz)
	case p.TargetGate < 0 || p.TargetGate >= p.NGates:
		return fmt.Errorf("synth: target gate %d outside 0..%d", p.TargetGate, p.NGates-1)
	}
	return nil
}

// Generator produces consecutive pulses.
type Generator struct {
	p       Params
	noise   distuv.Normal
	burst   distuv.Uniform
	counter uint64
	elapsed float64 // seconds since Start
	target  float64 // target phase, radians
}

// New returns a Generator for p.
func New(p Params) (*Generator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15)
	return &Generator{
		p: p,
		// Noise power is split evenly over I and Q.
		noise:   distuv.Normal{Mu: 0, Sigma: math.Sqrt(math.Pow(10, p.NoisePowerDb/10) / 2), Src: src},
		burst:   distuv.Uniform{Min: -180, Max: 180, Src: src},
		counter: 1,
	}, nil
}

// AzimuthTag encodes an azimuth in degrees as the receiver's 16 bit tag.
func AzimuthTag(deg float64) uint16 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return uint16(int(math.Round(deg*65535/359.9945068359375)) & 0xffff)
}

// ElevationTag encodes an elevation in degrees as the receiver's signed tag.
func ElevationTag(deg float64) int16 {
	v := math.Round(deg * 32767 / 179.9945068359375)
	return int16(max(-32768, min(32767, v)))
}

func (g *Generator) prt(counter uint64) float64 {
	if g.p.LowPrfHz > 0 && counter%2 == 0 {
		return 1 / g.p.LowPrfHz
	}
	return 1 / g.p.PrfHz
}

// Time returns the time of the next pulse.
func (g *Generator) Time() time.Time {
	return g.p.Start.Add(time.Duration(g.elapsed * float64(time.Second)))
}

// Next returns the header and gate-major IQ of the next pulse.
func (g *Generator) Next() (gamic.Header, []float32) {
	p := g.p
	t := g.Time()

	az, el := p.StartAzDeg, p.StartElDeg
	if p.ScanType == gamic.ScanRHI || p.ScanType == gamic.ScanManualRHI {
		el += p.RateDegS * g.elapsed
	} else {
		az += p.RateDegS * g.elapsed
	}

	h := gamic.Header{
		TimeSecs:          uint32(t.Unix()),
		TimeUSecs:         uint32(t.Nanosecond() / 1000),
		PulseCounter:      g.counter,
		HighPrf:           float32(p.PrfHz),
		LowPrf:            float32(p.LowPrfHz),
		AziTag:            AzimuthTag(az),
		EleTag:            ElevationTag(el),
		PwIndex:           p.PwIndex,
		ScanType:          p.ScanType,
		RangeResolutionIQ: float32(p.RangeResM),
		WavelengthM:       float32(p.WavelengthM),
		BeamwidthH:        float32(p.BeamwidthDeg),
		BeamwidthV:        float32(p.BeamwidthDeg),
		BurstMagH:         float32(p.BurstMag),
		BurstMagV:         float32(p.BurstMag),
		BurstPhaseH:       float32(g.burst.Rand()),
		NoiseLevelH:       float32(p.NoisePowerDb),
		NoiseLevelV:       float32(p.NoisePowerDb),
	}
	h.BurstPhaseV = h.BurstPhaseH

	nCh := 1
	switch p.Ops {
	case gamic.OpsDualPol:
		h.NumDualIQ = uint32(p.NGates)
		nCh = 2
	case gamic.OpsHorizontalOnly:
		h.NumHorIQ = uint32(p.NGates)
	case gamic.OpsVerticalOnly:
		h.NumVerIQ = uint32(p.NGates)
	}

	iq := make([]float32, p.NGates*nCh*2)
	for i := range iq {
		iq[i] = float32(g.noise.Rand())
	}
	amp := math.Pow(10, p.TargetPowerDb/20)
	for c := 0; c < nCh; c++ {
		a := amp
		if p.Ops == gamic.OpsDualPol && c == 1 {
			a = amp / math.Pow(10, p.ZdrDb/20)
		}
		k := (p.TargetGate*nCh + c) * 2
		iq[k] += float32(a * math.Cos(g.target))
		iq[k+1] += float32(a * math.Sin(g.target))
	}

	dt := g.prt(g.counter)
	g.target = math.Mod(g.target+2*math.Pi*p.DopplerHz*dt, 2*math.Pi)
	g.elapsed += dt
	g.counter++
	return h, iq
}

// WriteTo writes n pulses to w.
func (g *Generator) WriteTo(w io.Writer, n int) error {
	wr := gamic.NewWriter(w)
	for i := 0; i < n; i++ {
		h, iq := g.Next()
		if err := wr.Write(&h, iq); err != nil {
			return fmt.Errorf("pulse %d: %w", h.PulseCounter, err)
		}
	}
	return nil
}
