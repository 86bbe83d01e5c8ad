// Package pulsestats accumulates per-file pulse timing and burst statistics.
package pulsestats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
)

// MaxPlausiblePrtSecs bounds the PRTs that enter the statistics. Gaps longer
// than this are scan pauses or the first pulse after a state reset.
const MaxPlausiblePrtSecs = 1.0

// Summary describes the pulses of one output file.
type Summary struct {
	Pulses        int
	PrtSamples    int
	MeanPrtUsec   float64
	StddevPrtUsec float64
	MinPrtUsec    float64
	MaxPrtUsec    float64
	MeanBurstMag  float64
	// StaggerRatio is the ratio of the two PRT clusters, or 1 when the PRT
	// does not alternate.
	StaggerRatio float64
}

// Accumulator collects samples. The zero value is ready to use.
type Accumulator struct {
	pulses int
	prts   []float64
	bursts []float64
}

// Add records one pulse.
func (a *Accumulator) Add(prtSecs, burstMag float64) {
	a.pulses++
	if prtSecs > 0 && prtSecs <= MaxPlausiblePrtSecs {
		a.prts = append(a.prts, prtSecs*1e6)
	}
	if burstMag != float64(iwrf.MissingFloat) {
		a.bursts = append(a.bursts, burstMag)
	}
}

// Reset clears the accumulator for reuse.
func (a *Accumulator) Reset() {
	a.pulses = 0
	a.prts = a.prts[:0]
	a.bursts = a.bursts[:0]
}

// Summary computes the statistics collected so far.
func (a *Accumulator) Summary() Summary {
	s := Summary{Pulses: a.pulses, PrtSamples: len(a.prts), StaggerRatio: 1}
	if len(a.prts) > 0 {
		s.MeanPrtUsec, s.StddevPrtUsec = stat.MeanStdDev(a.prts, nil)
		if len(a.prts) == 1 {
			s.StddevPrtUsec = 0
		}
		s.MinPrtUsec = floats.Min(a.prts)
		s.MaxPrtUsec = floats.Max(a.prts)
		s.StaggerRatio = staggerRatio(a.prts)
	}
	if len(a.bursts) > 0 {
		s.MeanBurstMag = stat.Mean(a.bursts, nil)
	}
	return s
}

// staggerRatio compares the mean of even and odd PRTs. Staggered PRT
// alternates between two values, so the halves separate cleanly.
func staggerRatio(prts []float64) float64 {
	if len(prts) < 2 {
		return 1
	}
	var even, odd []float64
	for i, v := range prts {
		if i%2 == 0 {
			even = append(even, v)
		} else {
			odd = append(odd, v)
		}
	}
	e, o := stat.Mean(even, nil), stat.Mean(odd, nil)
	if e == 0 || o == 0 {
		return 1
	}
	if e < o {
		e, o = o, e
	}
	return e / o
}
