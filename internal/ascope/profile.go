// Package ascope turns transcoded pulses into A-scope views: power and phase
// against range for one pulse or an average of several, and the Doppler
// spectrum of a single gate across consecutive pulses.
package ascope

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/banshee-data/gamic2iwrf/internal/transcode"
)

// FloorDb is reported for gates with zero power.
const FloorDb = -200.0

// ErrNoPulses is returned when a view is requested from an empty slice.
var ErrNoPulses = errors.New("ascope: no pulses")

// Channel holds the per-gate values of one receiver channel.
type Channel struct {
	Name     string
	PowerDb  []float64
	PhaseDeg []float64
	I        []float64
	Q        []float64
}

// Profile is one A-scope trace.
type Profile struct {
	Time      time.Time
	Azimuth   float64
	Elevation float64
	Pulses    int
	RangeKm   []float64
	Channels  []Channel
}

// Geometry places gates in range.
type Geometry struct {
	StartRangeM  float64
	GateSpacingM float64
}

func (g Geometry) ranges(n int) []float64 {
	r := make([]float64, n)
	for i := range r {
		r[i] = (g.StartRangeM + float64(i)*g.GateSpacingM) / 1000
	}
	return r
}

func channelName(p *transcode.Pulse, c int) string {
	if p.Header.NChannels == 1 {
		if p.Header.HvFlag == 0 {
			return "V"
		}
		return "H"
	}
	if c == 0 {
		return "H"
	}
	return "V"
}

func powerDb(i, q float64) float64 {
	pw := i*i + q*q
	if pw <= 0 {
		return FloorDb
	}
	return 10 * math.Log10(pw)
}

// channelIQ returns the channel-major I/Q slice of channel c.
func channelIQ(p *transcode.Pulse, c int) ([]float32, error) {
	nGates := int(p.Header.NGates)
	nCh := int(p.Header.NChannels)
	if nGates <= 0 || nCh <= 0 || len(p.Samples) != 2*nGates*nCh {
		return nil, fmt.Errorf("ascope: pulse %d has %d samples for %d gates x %d channels",
			p.Header.PulseSeqNum, len(p.Samples), nGates, nCh)
	}
	if c < 0 || c >= nCh {
		return nil, fmt.Errorf("ascope: channel %d out of range [0,%d)", c, nCh)
	}
	off := c * 2 * nGates
	return p.Samples[off : off+2*nGates], nil
}

// FromPulse builds the trace of a single pulse.
func FromPulse(p *transcode.Pulse, g Geometry) (Profile, error) {
	nGates := int(p.Header.NGates)
	prof := Profile{
		Time:      p.Time,
		Azimuth:   p.Azimuth,
		Elevation: p.Elevation,
		Pulses:    1,
		RangeKm:   g.ranges(nGates),
	}
	for c := 0; c < int(p.Header.NChannels); c++ {
		s, err := channelIQ(p, c)
		if err != nil {
			return Profile{}, err
		}
		ch := Channel{
			Name:     channelName(p, c),
			PowerDb:  make([]float64, nGates),
			PhaseDeg: make([]float64, nGates),
			I:        make([]float64, nGates),
			Q:        make([]float64, nGates),
		}
		for k := 0; k < nGates; k++ {
			i, q := float64(s[2*k]), float64(s[2*k+1])
			ch.I[k], ch.Q[k] = i, q
			ch.PowerDb[k] = powerDb(i, q)
			ch.PhaseDeg[k] = math.Atan2(q, i) * 180 / math.Pi
		}
		prof.Channels = append(prof.Channels, ch)
	}
	return prof, nil
}

// Mean averages the linear power of several pulses gate by gate. Phase, I
// and Q are taken from the first pulse. All pulses must share a layout.
func Mean(pulses []*transcode.Pulse, g Geometry) (Profile, error) {
	if len(pulses) == 0 {
		return Profile{}, ErrNoPulses
	}
	prof, err := FromPulse(pulses[0], g)
	if err != nil {
		return Profile{}, err
	}
	nGates := len(prof.RangeKm)
	sums := make([][]float64, len(prof.Channels))
	for c := range sums {
		sums[c] = make([]float64, nGates)
	}
	for _, p := range pulses {
		if int(p.Header.NGates) != nGates || int(p.Header.NChannels) != len(prof.Channels) {
			return Profile{}, fmt.Errorf("ascope: pulse %d layout %dx%d differs from %dx%d",
				p.Header.PulseSeqNum, p.Header.NGates, p.Header.NChannels, nGates, len(prof.Channels))
		}
		for c := range sums {
			s, err := channelIQ(p, c)
			if err != nil {
				return Profile{}, err
			}
			for k := 0; k < nGates; k++ {
				i, q := float64(s[2*k]), float64(s[2*k+1])
				sums[c][k] += i*i + q*q
			}
		}
	}
	n := float64(len(pulses))
	for c := range sums {
		for k, v := range sums[c] {
			mean := v / n
			if mean <= 0 {
				prof.Channels[c].PowerDb[k] = FloorDb
			} else {
				prof.Channels[c].PowerDb[k] = 10 * math.Log10(mean)
			}
		}
	}
	prof.Pulses = len(pulses)
	return prof, nil
}

// Spectrum is the Doppler power spectrum of one gate, ordered from the most
// negative to the most positive frequency.
type Spectrum struct {
	Channel  string
	Gate     int
	RangeKm  float64
	FreqHz   []float64
	PowerDb  []float64
	PeakHz   float64
	PrtSecs  float64
	NSamples int
}

// DopplerSpectrum takes the Hann windowed FFT of gate across consecutive
// pulses. prtSecs sets the frequency axis; when zero the mean PRT of the
// pulses is used.
func DopplerSpectrum(pulses []*transcode.Pulse, channel, gate int, g Geometry, prtSecs float64) (Spectrum, error) {
	n := len(pulses)
	if n == 0 {
		return Spectrum{}, ErrNoPulses
	}
	series := make([]complex128, n)
	var prtSum float64
	var prtN int
	for k, p := range pulses {
		s, err := channelIQ(p, channel)
		if err != nil {
			return Spectrum{}, err
		}
		if gate < 0 || 2*gate+1 >= len(s) {
			return Spectrum{}, fmt.Errorf("ascope: gate %d out of range [0,%d)", gate, len(s)/2)
		}
		series[k] = complex(float64(s[2*gate]), float64(s[2*gate+1]))
		if k > 0 && p.PrtSecs > 0 {
			prtSum += p.PrtSecs
			prtN++
		}
	}
	if prtSecs <= 0 {
		if prtN == 0 {
			return Spectrum{}, errors.New("ascope: no PRT available for the frequency axis")
		}
		prtSecs = prtSum / float64(prtN)
	}

	window.HannComplex(series)
	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, series)

	sp := Spectrum{
		Channel:  channelName(pulses[0], channel),
		Gate:     gate,
		RangeKm:  (g.StartRangeM + float64(gate)*g.GateSpacingM) / 1000,
		FreqHz:   make([]float64, n),
		PowerDb:  make([]float64, n),
		PrtSecs:  prtSecs,
		NSamples: n,
	}
	prf := 1 / prtSecs
	peak := math.Inf(-1)
	for i := 0; i < n; i++ {
		// Shift so that index 0 holds the most negative frequency.
		src := (i + n - n/2) % n
		bin := i - n/2
		sp.FreqHz[i] = float64(bin) * prf / float64(n)
		a := cmplx.Abs(coeff[src]) / float64(n)
		sp.PowerDb[i] = powerDb(a, 0)
		if sp.PowerDb[i] > peak {
			peak = sp.PowerDb[i]
			sp.PeakHz = sp.FreqHz[i]
		}
	}
	return sp, nil
}
