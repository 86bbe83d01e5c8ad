// Package transcode turns decoded receiver records into IWRF packets.
package transcode

import "math"

// State is carried from pulse to pulse. Depending on configuration it is
// either reset at the start of each input file or carried across files.
type State struct {
	PrevPulseTimeSecs int64
	PrevPulseNanoSecs int32
	PrevBurstPhase    float64
	PacketSeqNum      int64
	PulseSeqNum       int64
}

// Reset zeroes the per-pulse carries. Sequence numbers keep counting so
// packets stay unique within a run.
func (s *State) Reset() {
	s.PrevPulseTimeSecs = 0
	s.PrevPulseNanoSecs = 0
	s.PrevBurstPhase = 0
}

// prtSince returns the seconds elapsed since the previous pulse.
func (s *State) prtSince(secs int64, nanos int32) float64 {
	return float64(secs-s.PrevPulseTimeSecs) + float64(nanos-s.PrevPulseNanoSecs)*1e-9
}

// nextPacketSeq returns the next packet sequence number.
func (s *State) nextPacketSeq() int64 {
	s.PacketSeqNum++
	return s.PacketSeqNum
}

// PhaseDiff returns from-to wrapped into (-180, 180] degrees.
func PhaseDiff(from, to float64) float64 {
	d := math.Mod(from-to, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// Azimuth decodes a 16-bit azimuth tag into degrees.
func Azimuth(tag uint16) float64 {
	return float64(tag) * 359.9945068359375 / 65535
}

// Elevation decodes a signed 16-bit elevation tag into degrees.
func Elevation(tag int16) float64 {
	return float64(tag) * 179.9945068359375 / 32767
}
