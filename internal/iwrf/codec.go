package iwrf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// UnknownEncodingError reports an unsupported IQ encoding.
type UnknownEncodingError struct {
	Name string
	Code IQEncoding
}

func (e *UnknownEncodingError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown IQ encoding %q", e.Name)
	}
	return fmt.Sprintf("unknown IQ encoding %d", e.Code)
}

// phaseMult converts a packed phase count to degrees.
const phaseMult = 180.0 / 32767.0

// Power floor used when a sample is exactly zero, in dBm.
const zeroPowerDbm = -200.0

// Encoded is a packed IQ block and the scale needed to unpack it.
type Encoded struct {
	Encoding IQEncoding
	Data     []byte
	Scale    float32
	Offset   float32
}

// Encode packs iq (I,Q interleaved) using enc.
func Encode(iq []float32, enc IQEncoding) (Encoded, error) {
	switch enc {
	case EncodingFL32:
		return encodeFL32(iq), nil
	case EncodingScaledSI16:
		return encodeScaledSI16(iq), nil
	case EncodingDBMPhaseSI16:
		return encodeDbmPhaseSI16(iq), nil
	case EncodingSigmetFL16:
		return encodeSigmetFL16(iq), nil
	}
	return Encoded{}, &UnknownEncodingError{Code: enc}
}

// Decode unpacks data produced by Encode into float IQ values.
func Decode(data []byte, enc IQEncoding, scale, offset float32) ([]float32, error) {
	le := binary.LittleEndian
	switch enc {
	case EncodingFL32:
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(data[4*i:]))
		}
		return out, nil
	case EncodingScaledSI16:
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = float32(int16(le.Uint16(data[2*i:])))*scale + offset
		}
		return out, nil
	case EncodingDBMPhaseSI16:
		out := make([]float32, len(data)/2)
		for i := 0; i+1 < len(out); i += 2 {
			powerDbm := float64(int16(le.Uint16(data[2*i:])))*float64(scale) + float64(offset)
			phaseRad := float64(int16(le.Uint16(data[2*i+2:]))) * phaseMult * math.Pi / 180
			amp := math.Sqrt(math.Pow(10, powerDbm/10))
			out[i] = float32(amp * math.Cos(phaseRad))
			out[i+1] = float32(amp * math.Sin(phaseRad))
		}
		return out, nil
	case EncodingSigmetFL16:
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = UnpackSigmetFL16(le.Uint16(data[2*i:]))
		}
		return out, nil
	}
	return nil, &UnknownEncodingError{Code: enc}
}

func encodeFL32(iq []float32) Encoded {
	b := make([]byte, 4*len(iq))
	for i, v := range iq {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return Encoded{Encoding: EncodingFL32, Data: b, Scale: 1, Offset: 0}
}

func clampSI16(v int) int16 {
	if v < -32767 {
		return -32767
	}
	if v > 32767 {
		return 32767
	}
	return int16(v)
}

func encodeScaledSI16(iq []float32) Encoded {
	maxAbs := 0.0
	for _, v := range iq {
		if a := math.Abs(float64(v)); a > maxAbs {
			maxAbs = a
		}
	}
	scale := maxAbs / 32767.0
	if scale == 0 {
		scale = 1
	}
	b := make([]byte, 2*len(iq))
	for i, v := range iq {
		packed := clampSI16(int(math.Floor(float64(v)/scale + 0.5)))
		binary.LittleEndian.PutUint16(b[2*i:], uint16(packed))
	}
	return Encoded{Encoding: EncodingScaledSI16, Data: b, Scale: float32(scale), Offset: 0}
}

func encodeDbmPhaseSI16(iq []float32) Encoded {
	n := len(iq) / 2
	powerDbm := make([]float64, n)
	phaseDeg := make([]float64, n)
	minDb, maxDb := math.Inf(1), math.Inf(-1)
	for k := 0; k < n; k++ {
		i, q := float64(iq[2*k]), float64(iq[2*k+1])
		p := i*i + q*q
		db := zeroPowerDbm
		if p > 0 {
			db = 10 * math.Log10(p)
		}
		powerDbm[k] = db
		minDb = math.Min(minDb, db)
		maxDb = math.Max(maxDb, db)
		if i != 0 || q != 0 {
			phaseDeg[k] = math.Atan2(q, i) * 180 / math.Pi
		}
	}
	scale := (maxDb - minDb) / 65535.0
	offset := (maxDb + minDb) / 2
	if n == 0 {
		offset = 0
	}
	if scale == 0 {
		scale = 1
	}

	b := make([]byte, 2*len(iq))
	for k := 0; k < n; k++ {
		pp := clampSI16(int(math.Floor((powerDbm[k]-offset)/scale + 0.5)))
		ph := clampSI16(int(phaseDeg[k]/phaseMult + 0.5))
		binary.LittleEndian.PutUint16(b[4*k:], uint16(pp))
		binary.LittleEndian.PutUint16(b[4*k+2:], uint16(ph))
	}
	return Encoded{Encoding: EncodingDBMPhaseSI16, Data: b, Scale: float32(scale), Offset: float32(offset)}
}

func encodeSigmetFL16(iq []float32) Encoded {
	b := make([]byte, 2*len(iq))
	for i, v := range iq {
		binary.LittleEndian.PutUint16(b[2*i:], PackSigmetFL16(v))
	}
	return Encoded{Encoding: EncodingSigmetFL16, Data: b, Scale: 1, Offset: 0}
}

// PackSigmetFL16 packs v into the 16-bit float format used by SIGMET
// receivers: a 4-bit exponent, sign and 11-bit mantissa, with a linear
// code space for values very close to zero.
func PackSigmetFL16(v float32) uint16 {
	f := float64(v)
	switch {
	case f >= 4.0:
		return 0xF7FF
	case f <= -4.0:
		return 0xF800
	case f > -1.221299e-4 && f < 1.220703e-4:
		m := nint(1.677721e7 * f)
		m = max(-2048, min(2047, m))
		return uint16(0xFFF & m)
	}
	frac, exp := math.Frexp(f)
	man := nint(4096 * frac)
	exp += 13
	sign := 0
	if f < 0 {
		sign = 1
	}
	if man == 4096 {
		exp++
	} else if man == -2048 {
		exp--
	}
	return uint16((exp << 12) | (sign << 11) | (0x7FF & man))
}

// UnpackSigmetFL16 is the inverse of PackSigmetFL16.
func UnpackSigmetFL16(code uint16) float32 {
	c := uint32(code)
	if c&0xF000 != 0 {
		man := c & 0x7FF
		if c&0x800 != 0 {
			man |= 0xFFFFF000
		} else {
			man |= 0x800
		}
		exp := int((c >> 12) & 0xF)
		return float32(float64(int32(man)) * math.Ldexp(1, exp) / 3.355443e7)
	}
	return float32(float64(int32(c<<20)) / 1.759218e13)
}

func nint(v float64) int {
	return int(math.Floor(0.5 + v))
}
