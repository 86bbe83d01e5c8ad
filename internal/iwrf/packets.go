// Package iwrf defines the IWRF time-series packet layouts and their
// little-endian wire encoding.
package iwrf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Packet identifiers.
const (
	RadarInfoID    int32 = 0x77770002
	TsProcessingID int32 = 0x77770005
	CalibrationID  int32 = 0x77770008
	PulseHeaderID  int32 = 0x7777000c
)

// Encoded sizes, each including the PacketInfo envelope.
const (
	PacketInfoSize   = 56
	RadarInfoSize    = 256
	TsProcessingSize = 256
	CalibrationSize  = 512
	PulseHeaderSize  = 256
)

const (
	MissingFloat float32 = -9999.0
	MissingInt   int32   = -9999

	// Version written into every envelope.
	Version int32 = 1

	MaxChan = 4
)

// PacketInfo is the envelope that starts every packet.
type PacketInfo struct {
	ID           int32
	LenBytes     int32
	SeqNum       int64
	VersionNum   int32
	RadarID      int32
	TimeSecsUTC  int64
	TimeNanoSecs int32
	Reserved     [5]int32
}

// Packet is any fixed-layout IWRF structure.
type Packet interface {
	Envelope() *PacketInfo
}

// Stamp fills the envelope's identity and time fields.
func (p *PacketInfo) Stamp(seq int64, radarID int32, secs int64, nanos int32) {
	p.SeqNum = seq
	p.RadarID = radarID
	p.TimeSecsUTC = secs
	p.TimeNanoSecs = nanos
}

func newInfo(id int32, size int) PacketInfo {
	return PacketInfo{ID: id, LenBytes: int32(size), VersionNum: Version}
}

// RadarInfo carries site and antenna constants.
type RadarInfo struct {
	Packet            PacketInfo
	LatitudeDeg       float32
	LongitudeDeg      float32
	AltitudeM         float32
	PlatformType      int32
	BeamwidthDegH     float32
	BeamwidthDegV     float32
	WavelengthCm      float32
	NominalGainAntDbH float32
	NominalGainAntDbV float32
	Unused            [25]float32
	RadarName         [32]byte
	SiteName          [32]byte
}

// Envelope implements Packet.
func (p *RadarInfo) Envelope() *PacketInfo { return &p.Packet }

// Platform types.
const (
	PlatformFixed int32 = 1
)

// NewRadarInfo returns a RadarInfo with all values missing.
func NewRadarInfo() *RadarInfo {
	p := &RadarInfo{
		Packet:            newInfo(RadarInfoID, RadarInfoSize),
		LatitudeDeg:       MissingFloat,
		LongitudeDeg:      MissingFloat,
		AltitudeM:         MissingFloat,
		PlatformType:      PlatformFixed,
		BeamwidthDegH:     MissingFloat,
		BeamwidthDegV:     MissingFloat,
		WavelengthCm:      MissingFloat,
		NominalGainAntDbH: MissingFloat,
		NominalGainAntDbV: MissingFloat,
	}
	return p
}

// TsProcessing carries the transmit and sampling configuration.
type TsProcessing struct {
	Packet                 PacketInfo
	XmitRcvMode            XmitRcvMode
	XmitPhaseMode          int32
	PrfMode                PrfMode
	PulseType              int32
	PrtUsec                float32
	Prt2Usec               float32
	CalType                int32
	BurstRangeOffsetM      float32
	PulseWidthUs           float32
	StartRangeM            float32
	GateSpacingM           float32
	IntegrationCyclePulses int32
	ClutterFilterNumber    int32
	RangeGateAveraging     int32
	MaxGate                int32
	TestPowerDbm           float32
	TestPulseRangeKm       float32
	TestPulseLengthUsec    float32
	PolMode                PolMode
	XmitFlag               [2]int32
	BeamsAreIndexed        int32
	SpecifyDwellWidth      int32
	IndexedBeamWidthDeg    float32
	IndexedBeamSpacingDeg  float32
	NumPrts                int32
	Prt3Usec               float32
	Prt4Usec               float32
	BlockModePrt2Pulses    int32
	BlockModePrt3Pulses    int32
	BlockModePrt4Pulses    int32
	PolSyncMode            uint32
	Unused                 [18]int32
}

// Envelope implements Packet.
func (p *TsProcessing) Envelope() *PacketInfo { return &p.Packet }

// Pulse types.
const (
	PulseTypeRect int32 = 1
)

// NewTsProcessing returns a TsProcessing with all values missing.
func NewTsProcessing() *TsProcessing {
	return &TsProcessing{
		Packet:                 newInfo(TsProcessingID, TsProcessingSize),
		XmitRcvMode:            XmitRcvNotSet,
		XmitPhaseMode:          MissingInt,
		PrfMode:                PrfNotSet,
		PulseType:              MissingInt,
		PrtUsec:                MissingFloat,
		Prt2Usec:               MissingFloat,
		CalType:                MissingInt,
		BurstRangeOffsetM:      MissingFloat,
		PulseWidthUs:           MissingFloat,
		StartRangeM:            MissingFloat,
		GateSpacingM:           MissingFloat,
		IntegrationCyclePulses: MissingInt,
		ClutterFilterNumber:    MissingInt,
		RangeGateAveraging:     MissingInt,
		MaxGate:                MissingInt,
		TestPowerDbm:           MissingFloat,
		TestPulseRangeKm:       MissingFloat,
		TestPulseLengthUsec:    MissingFloat,
		PolMode:                PolNotSet,
		XmitFlag:               [2]int32{MissingInt, MissingInt},
		BeamsAreIndexed:        MissingInt,
		SpecifyDwellWidth:      MissingInt,
		IndexedBeamWidthDeg:    MissingFloat,
		IndexedBeamSpacingDeg:  MissingFloat,
		NumPrts:                MissingInt,
		Prt3Usec:               MissingFloat,
		Prt4Usec:               MissingFloat,
		BlockModePrt2Pulses:    MissingInt,
		BlockModePrt3Pulses:    MissingInt,
		BlockModePrt4Pulses:    MissingInt,
	}
}

// Calibration carries the radar calibration. Co/cross channel fields are
// ordered hc, hx, vc, vx.
type Calibration struct {
	Packet                 PacketInfo
	WavelengthCm           float32
	BeamwidthDegH          float32
	BeamwidthDegV          float32
	GainAntDbH             float32
	GainAntDbV             float32
	PulseWidthUs           float32
	XmitPowerDbmH          float32
	XmitPowerDbmV          float32
	TwoWayWaveguideLossDbH float32
	TwoWayWaveguideLossDbV float32
	TwoWayRadomeLossDbH    float32
	TwoWayRadomeLossDbV    float32
	ReceiverMismatchLossDb float32
	RadarConstantH         float32
	RadarConstantV         float32
	NoiseDbm               [4]float32
	ReceiverGainDb         [4]float32
	BaseDbz1km             [4]float32
	SunPowerDbm            [4]float32
	NoiseSourcePowerDbmH   float32
	NoiseSourcePowerDbmV   float32
	PowerMeasLossDbH       float32
	PowerMeasLossDbV       float32
	CouplerForwardLossDbH  float32
	CouplerForwardLossDbV  float32
	TestPowerDbmH          float32
	TestPowerDbmV          float32
	ZdrCorrectionDb        float32
	LdrCorrectionDbH       float32
	LdrCorrectionDbV       float32
	PhidpRotDeg            float32
	ReceiverSlope          [4]float32
	I0Dbm                  [4]float32
	DynamicRangeDb         [4]float32
	KSquaredWater          float32
	DbzCorrection          float32
	Unused                 [49]int32
	RadarName              [32]byte
}

// Envelope implements Packet.
func (p *Calibration) Envelope() *PacketInfo { return &p.Packet }

// Channel indices into the 4-element calibration arrays.
const (
	ChanHC = 0
	ChanHX = 1
	ChanVC = 2
	ChanVX = 3
)

// NewCalibration returns a Calibration with values missing except the
// corrections, which default to zero.
func NewCalibration() *Calibration {
	m4 := [4]float32{MissingFloat, MissingFloat, MissingFloat, MissingFloat}
	return &Calibration{
		Packet:                 newInfo(CalibrationID, CalibrationSize),
		WavelengthCm:           MissingFloat,
		BeamwidthDegH:          MissingFloat,
		BeamwidthDegV:          MissingFloat,
		GainAntDbH:             MissingFloat,
		GainAntDbV:             MissingFloat,
		PulseWidthUs:           MissingFloat,
		XmitPowerDbmH:          MissingFloat,
		XmitPowerDbmV:          MissingFloat,
		TwoWayWaveguideLossDbH: MissingFloat,
		TwoWayWaveguideLossDbV: MissingFloat,
		TwoWayRadomeLossDbH:    MissingFloat,
		TwoWayRadomeLossDbV:    MissingFloat,
		ReceiverMismatchLossDb: MissingFloat,
		RadarConstantH:         MissingFloat,
		RadarConstantV:         MissingFloat,
		NoiseDbm:               m4,
		ReceiverGainDb:         m4,
		BaseDbz1km:             m4,
		SunPowerDbm:            m4,
		NoiseSourcePowerDbmH:   MissingFloat,
		NoiseSourcePowerDbmV:   MissingFloat,
		PowerMeasLossDbH:       MissingFloat,
		PowerMeasLossDbV:       MissingFloat,
		CouplerForwardLossDbH:  MissingFloat,
		CouplerForwardLossDbV:  MissingFloat,
		TestPowerDbmH:          MissingFloat,
		TestPowerDbmV:          MissingFloat,
		ReceiverSlope:          m4,
		I0Dbm:                  m4,
		DynamicRangeDb:         m4,
		KSquaredWater:          MissingFloat,
	}
}

// PulseHeader precedes each pulse's IQ payload.
type PulseHeader struct {
	Packet            PacketInfo
	PulseSeqNum       int64
	ScanMode          ScanMode
	FollowMode        int32
	VolumeNum         int32
	SweepNum          int32
	FixedEl           float32
	FixedAz           float32
	Elevation         float32
	Azimuth           float32
	Prt               float32
	PrtNext           float32
	PulseWidthUs      float32
	NGates            int32
	NChannels         int32
	IQEncoding        IQEncoding
	HvFlag            int32
	AntennaTransition int32
	PhaseCohered      int32
	Status            int32
	NData             int32
	IQOffset          [MaxChan]int32
	BurstMag          [MaxChan]float32
	BurstArg          [MaxChan]float32
	BurstArgDiff      [MaxChan]float32
	Scale             float32
	Offset            float32
	NGatesBurst       int32
	StartRangeM       float32
	GateSpacingM      float32
	EventFlags        int32
	TxrxState         int32
	Unused            [6]int32
}

// Envelope implements Packet.
func (p *PulseHeader) Envelope() *PacketInfo { return &p.Packet }

// NewPulseHeader returns a PulseHeader with values missing.
func NewPulseHeader() *PulseHeader {
	m4 := [MaxChan]float32{MissingFloat, MissingFloat, MissingFloat, MissingFloat}
	return &PulseHeader{
		Packet:            newInfo(PulseHeaderID, PulseHeaderSize),
		ScanMode:          ScanNotSet,
		FollowMode:        MissingInt,
		VolumeNum:         MissingInt,
		SweepNum:          MissingInt,
		FixedEl:           MissingFloat,
		FixedAz:           MissingFloat,
		Elevation:         MissingFloat,
		Azimuth:           MissingFloat,
		Prt:               MissingFloat,
		PrtNext:           MissingFloat,
		PulseWidthUs:      MissingFloat,
		IQEncoding:        EncodingFL32,
		HvFlag:            MissingInt,
		AntennaTransition: 0,
		PhaseCohered:      MissingInt,
		Status:            0,
		BurstMag:          m4,
		BurstArg:          m4,
		BurstArgDiff:      m4,
		Scale:             1,
		Offset:            0,
		StartRangeM:       MissingFloat,
		GateSpacingM:      MissingFloat,
	}
}

// SetName copies s into a fixed, NUL padded name field.
func SetName(dst *[32]byte, s string) {
	*dst = [32]byte{}
	copy(dst[:len(dst)-1], s)
}

// Name returns the NUL terminated string in a fixed name field.
func Name(src [32]byte) string {
	if i := bytes.IndexByte(src[:], 0); i >= 0 {
		return string(src[:i])
	}
	return string(src[:])
}

// Marshal encodes p in little-endian order.
func Marshal(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, p); err != nil {
		return nil, fmt.Errorf("encode packet %#x: %w", p.Envelope().ID, err)
	}
	return buf.Bytes(), nil
}
