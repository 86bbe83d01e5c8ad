// Package iq rearranges and scales raw IQ sample blocks.
package iq

import "fmt"

// Reorder converts a gate-major block (g0c0 g0c1 g1c0 g1c1 ...) into a
// channel-major block (c0g0 c0g1 ... c1g0 c1g1 ...). Each sample is an I,Q
// pair. dst and src must not overlap and must both hold nGates*nChannels*2
// values. With one channel the block is copied unchanged.
func Reorder(dst, src []float32, nGates, nChannels int) error {
	if err := checkSizes(dst, src, nGates, nChannels); err != nil {
		return err
	}
	if nChannels == 1 {
		copy(dst, src)
		return nil
	}
	perChannel := nGates * 2
	for g := 0; g < nGates; g++ {
		for c := 0; c < nChannels; c++ {
			s := (g*nChannels + c) * 2
			d := c*perChannel + g*2
			dst[d] = src[s]
			dst[d+1] = src[s+1]
		}
	}
	return nil
}

// Interleave is the inverse of Reorder.
func Interleave(dst, src []float32, nGates, nChannels int) error {
	if err := checkSizes(dst, src, nGates, nChannels); err != nil {
		return err
	}
	if nChannels == 1 {
		copy(dst, src)
		return nil
	}
	perChannel := nGates * 2
	for c := 0; c < nChannels; c++ {
		for g := 0; g < nGates; g++ {
			s := c*perChannel + g*2
			d := (g*nChannels + c) * 2
			dst[d] = src[s]
			dst[d+1] = src[s+1]
		}
	}
	return nil
}

func checkSizes(dst, src []float32, nGates, nChannels int) error {
	want := nGates * nChannels * 2
	if nGates < 0 || nChannels < 1 {
		return fmt.Errorf("invalid block shape: %d gates, %d channels", nGates, nChannels)
	}
	if len(src) != want || len(dst) != want {
		return fmt.Errorf("block size mismatch: src %d, dst %d, want %d", len(src), len(dst), want)
	}
	return nil
}
