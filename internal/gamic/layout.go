package gamic

import (
	"errors"
	"fmt"
)

// ErrAmbiguousLayout is returned when no gate count in the header is nonzero.
var ErrAmbiguousLayout = errors.New("gamic: no nonzero IQ gate count in header")

// OpsType is the channel configuration of a record.
type OpsType int

const (
	OpsUnknown OpsType = iota
	OpsHorizontalOnly
	OpsVerticalOnly
	OpsDualPol
)

func (o OpsType) String() string {
	switch o {
	case OpsHorizontalOnly:
		return "horizontal"
	case OpsVerticalOnly:
		return "vertical"
	case OpsDualPol:
		return "dual"
	default:
		return "unknown"
	}
}

// Polarization of a single receive channel.
type Polarization int

const (
	PolH Polarization = iota
	PolV
)

// Layout describes how the IQ payload of one record is organised.
type Layout struct {
	Ops           OpsType
	NGates        int
	NChannels     int
	NIQPerChannel int
}

// NIQ is the total number of float32 values in the payload.
func (l Layout) NIQ() int {
	return l.NIQPerChannel * l.NChannels
}

// ChannelPol returns the polarization received on channel c.
func (l Layout) ChannelPol(c int) Polarization {
	switch l.Ops {
	case OpsDualPol:
		if c == 1 {
			return PolV
		}
		return PolH
	case OpsVerticalOnly:
		return PolV
	default:
		return PolH
	}
}

// LayoutOf derives the layout from the gate counts in h. Dual takes
// precedence over horizontal, horizontal over vertical.
func LayoutOf(h *Header) (Layout, error) {
	var l Layout
	switch {
	case h.NumDualIQ != 0:
		l = Layout{Ops: OpsDualPol, NGates: int(h.NumDualIQ), NChannels: 2}
	case h.NumHorIQ != 0:
		l = Layout{Ops: OpsHorizontalOnly, NGates: int(h.NumHorIQ), NChannels: 1}
	case h.NumVerIQ != 0:
		l = Layout{Ops: OpsVerticalOnly, NGates: int(h.NumVerIQ), NChannels: 1}
	default:
		return Layout{Ops: OpsUnknown}, fmt.Errorf("pulse %d: %w", h.PulseCounter, ErrAmbiguousLayout)
	}
	l.NIQPerChannel = 2 * l.NGates
	return l, nil
}
