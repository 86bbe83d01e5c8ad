package iq

import (
	"math"

	"github.com/banshee-data/gamic2iwrf/internal/gamic"
)

// Gains holds the receiver gain per polarization, in dB.
type Gains struct {
	DbH float64
	DbV float64
}

// Linear returns the amplitude factor 10^(dB/20) for polarization p.
func (g Gains) Linear(p gamic.Polarization) float64 {
	db := g.DbH
	if p == gamic.PolV {
		db = g.DbV
	}
	return math.Pow(10, db/20)
}

// ApplyGain divides every sample of a channel-major block by the linear
// receiver gain of that channel's polarization.
func ApplyGain(block []float32, layout gamic.Layout, g Gains) {
	scaleChannels(block, layout, func(c int) float64 {
		return 1 / g.Linear(layout.ChannelPol(c))
	})
}

// RemoveGain multiplies the receiver gain back in, undoing ApplyGain.
func RemoveGain(block []float32, layout gamic.Layout, g Gains) {
	scaleChannels(block, layout, func(c int) float64 {
		return g.Linear(layout.ChannelPol(c))
	})
}

func scaleChannels(block []float32, layout gamic.Layout, factor func(c int) float64) {
	n := layout.NIQPerChannel
	for c := 0; c < layout.NChannels; c++ {
		if (c+1)*n > len(block) {
			return
		}
		f := float32(factor(c))
		ch := block[c*n : (c+1)*n]
		for i := range ch {
			ch[i] *= f
		}
	}
}
