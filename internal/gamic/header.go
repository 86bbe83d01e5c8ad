// Package gamic reads and writes GAMIC receiver pulse records.
package gamic

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

/*
GAMIC pulse record layout

Each record is a fixed header, the raw IQ payload, and zero padding up to the
next 4096-byte boundary of the stream. All values are little-endian.

RECORD:
├── Header (256 bytes)
│   ├── 0    u32   time_secs           UTC seconds
│   ├── 4    u32   time_usecs          microseconds within the second
│   ├── 8    u64   pulse_counter
│   ├── 16   f32   high_prf            Hz
│   ├── 20   f32   low_prf             Hz, 0 or equal to high_prf when unstaggered
│   ├── 24   u32   num_dual_iq         gates with H and V samples
│   ├── 28   u32   num_hor_iq          gates with H samples only
│   ├── 32   u32   num_ver_iq          gates with V samples only
│   ├── 36   u32   offset_dual_iq
│   ├── 40   u32   offset_hor_iq
│   ├── 44   u32   offset_ver_iq
│   ├── 48   u16   azi_tag             0..65535 over 0..360 deg
│   ├── 50   i16   ele_tag             -32767..32767 over -180..180 deg
│   ├── 52   u16   pw_index            index into the site pulse width table
│   ├── 54   u16   scan_type
│   ├── 56   u16   angle_sync
│   ├── 58   6B    reserved
│   ├── 64   f32   range_resolution_iq m
│   ├── 68   f32   wavelength          m
│   ├── 72   f32   beamwidth_h         deg
│   ├── 76   f32   beamwidth_v         deg
│   ├── 80   f32   burst_mag_h
│   ├── 84   f32   burst_mag_v
│   ├── 88   f32   burst_phase_h       deg
│   ├── 92   f32   burst_phase_v       deg
│   ├── 96   f32   burst_freq          Hz
│   ├── 100  f32   noise_level_h       dBm
│   ├── 104  f32   noise_level_v       dBm
│   ├── 108  f32   dbz0_h
│   ├── 112  f32   dbz0_v
│   ├── 116  f32   zdr_offset          dB
│   ├── 120  f32   ldr_offset_h        dB
│   ├── 124  f32   ldr_offset_v        dB
│   ├── 128  f32   phidp_offset        deg
│   ├── 132  u16   sweep_num
│   ├── 134  u16   volume_num
│   └── 136  120B  reserved
├── IQ payload (nIQ float32, gate-major: g0c0 I,Q  g0c1 I,Q  g1c0 ...)
└── Padding to the next multiple of 4096 bytes
*/

const (
	// HeaderSize is the encoded size of Header.
	HeaderSize = 256
	// BlockSize is the alignment of every record in the stream.
	BlockSize = 4096
)

// Scan types reported by the receiver.
const (
	ScanPPI       = 1
	ScanRHI       = 2
	ScanManualPPI = 3
	ScanManualRHI = 4
	ScanPointing  = 5
	ScanSector    = 6
)

// Header is the decoded fixed header of one pulse record. Reserved regions
// are preserved as opaque blocks so a decoded header re-encodes byte for byte.
type Header struct {
	TimeSecs     uint32
	TimeUSecs    uint32
	PulseCounter uint64

	HighPrf float32
	LowPrf  float32

	NumDualIQ    uint32
	NumHorIQ     uint32
	NumVerIQ     uint32
	OffsetDualIQ uint32
	OffsetHorIQ  uint32
	OffsetVerIQ  uint32

	AziTag    uint16
	EleTag    int16
	PwIndex   uint16
	ScanType  uint16
	AngleSync uint16
	Reserved1 [6]byte

	RangeResolutionIQ float32
	WavelengthM       float32
	BeamwidthH        float32
	BeamwidthV        float32

	BurstMagH   float32
	BurstMagV   float32
	BurstPhaseH float32
	BurstPhaseV float32
	BurstFreqHz float32

	NoiseLevelH    float32
	NoiseLevelV    float32
	Dbz0H          float32
	Dbz0V          float32
	ZdrOffsetDb    float32
	LdrOffsetHDb   float32
	LdrOffsetVDb   float32
	PhidpOffsetDeg float32

	SweepNum  uint16
	VolumeNum uint16
	Reserved2 [120]byte
}

// DecodeHeader decodes a header from exactly HeaderSize bytes.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) != HeaderSize {
		return h, fmt.Errorf("header must be %d bytes, got %d", HeaderSize, len(b))
	}
	le := binary.LittleEndian
	f32 := func(off int) float32 { return math.Float32frombits(le.Uint32(b[off : off+4])) }

	h.TimeSecs = le.Uint32(b[0:4])
	h.TimeUSecs = le.Uint32(b[4:8])
	h.PulseCounter = le.Uint64(b[8:16])
	h.HighPrf = f32(16)
	h.LowPrf = f32(20)
	h.NumDualIQ = le.Uint32(b[24:28])
	h.NumHorIQ = le.Uint32(b[28:32])
	h.NumVerIQ = le.Uint32(b[32:36])
	h.OffsetDualIQ = le.Uint32(b[36:40])
	h.OffsetHorIQ = le.Uint32(b[40:44])
	h.OffsetVerIQ = le.Uint32(b[44:48])
	h.AziTag = le.Uint16(b[48:50])
	h.EleTag = int16(le.Uint16(b[50:52]))
	h.PwIndex = le.Uint16(b[52:54])
	h.ScanType = le.Uint16(b[54:56])
	h.AngleSync = le.Uint16(b[56:58])
	copy(h.Reserved1[:], b[58:64])
	h.RangeResolutionIQ = f32(64)
	h.WavelengthM = f32(68)
	h.BeamwidthH = f32(72)
	h.BeamwidthV = f32(76)
	h.BurstMagH = f32(80)
	h.BurstMagV = f32(84)
	h.BurstPhaseH = f32(88)
	h.BurstPhaseV = f32(92)
	h.BurstFreqHz = f32(96)
	h.NoiseLevelH = f32(100)
	h.NoiseLevelV = f32(104)
	h.Dbz0H = f32(108)
	h.Dbz0V = f32(112)
	h.ZdrOffsetDb = f32(116)
	h.LdrOffsetHDb = f32(120)
	h.LdrOffsetVDb = f32(124)
	h.PhidpOffsetDeg = f32(128)
	h.SweepNum = le.Uint16(b[132:134])
	h.VolumeNum = le.Uint16(b[134:136])
	copy(h.Reserved2[:], b[136:256])
	return h, nil
}

// Encode writes the header into b, which must be at least HeaderSize long.
func (h *Header) Encode(b []byte) {
	le := binary.LittleEndian
	pf32 := func(off int, v float32) { le.PutUint32(b[off:off+4], math.Float32bits(v)) }

	le.PutUint32(b[0:4], h.TimeSecs)
	le.PutUint32(b[4:8], h.TimeUSecs)
	le.PutUint64(b[8:16], h.PulseCounter)
	pf32(16, h.HighPrf)
	pf32(20, h.LowPrf)
	le.PutUint32(b[24:28], h.NumDualIQ)
	le.PutUint32(b[28:32], h.NumHorIQ)
	le.PutUint32(b[32:36], h.NumVerIQ)
	le.PutUint32(b[36:40], h.OffsetDualIQ)
	le.PutUint32(b[40:44], h.OffsetHorIQ)
	le.PutUint32(b[44:48], h.OffsetVerIQ)
	le.PutUint16(b[48:50], h.AziTag)
	le.PutUint16(b[50:52], uint16(h.EleTag))
	le.PutUint16(b[52:54], h.PwIndex)
	le.PutUint16(b[54:56], h.ScanType)
	le.PutUint16(b[56:58], h.AngleSync)
	copy(b[58:64], h.Reserved1[:])
	pf32(64, h.RangeResolutionIQ)
	pf32(68, h.WavelengthM)
	pf32(72, h.BeamwidthH)
	pf32(76, h.BeamwidthV)
	pf32(80, h.BurstMagH)
	pf32(84, h.BurstMagV)
	pf32(88, h.BurstPhaseH)
	pf32(92, h.BurstPhaseV)
	pf32(96, h.BurstFreqHz)
	pf32(100, h.NoiseLevelH)
	pf32(104, h.NoiseLevelV)
	pf32(108, h.Dbz0H)
	pf32(112, h.Dbz0V)
	pf32(116, h.ZdrOffsetDb)
	pf32(120, h.LdrOffsetHDb)
	pf32(124, h.LdrOffsetVDb)
	pf32(128, h.PhidpOffsetDeg)
	le.PutUint16(b[132:134], h.SweepNum)
	le.PutUint16(b[134:136], h.VolumeNum)
	copy(b[136:256], h.Reserved2[:])
}

// Time returns the pulse time as seconds and nanoseconds. A microsecond
// field of a million or more carries into the seconds.
func (h *Header) Time() (secs int64, nanos int32) {
	us := int64(h.TimeUSecs)
	return int64(h.TimeSecs) + us/1e6, int32(us%1e6) * 1000
}

// Timestamp returns the pulse time in UTC.
func (h *Header) Timestamp() time.Time {
	secs, nanos := h.Time()
	return time.Unix(secs, int64(nanos)).UTC()
}
