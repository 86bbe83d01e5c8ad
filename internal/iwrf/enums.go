package iwrf

// XmitRcvMode is the transmit/receive configuration.
type XmitRcvMode int32

const (
	XmitRcvNotSet        XmitRcvMode = 0
	XmitRcvSinglePol     XmitRcvMode = 1
	XmitRcvAltHvCoOnly   XmitRcvMode = 2
	XmitRcvAltHvCoCross  XmitRcvMode = 3
	XmitRcvAltHvFixedHv  XmitRcvMode = 4
	XmitRcvSimHvFixedHv  XmitRcvMode = 5
	XmitRcvSimHvSwitched XmitRcvMode = 6
	XmitRcvHOnlyFixedHv  XmitRcvMode = 7
	XmitRcvVOnlyFixedHv  XmitRcvMode = 8
	XmitRcvAltHhvv       XmitRcvMode = 9
	XmitRcvSinglePolV    XmitRcvMode = 10
)

// PrfMode is the PRT staggering mode.
type PrfMode int32

const (
	PrfNotSet PrfMode = 0
	PrfFixed  PrfMode = 1
	PrfStag23 PrfMode = 2
	PrfStag34 PrfMode = 3
	PrfStag45 PrfMode = 4
)

func (m PrfMode) String() string {
	switch m {
	case PrfFixed:
		return "fixed"
	case PrfStag23:
		return "stagger_2_3"
	case PrfStag34:
		return "stagger_3_4"
	case PrfStag45:
		return "stagger_4_5"
	default:
		return "not_set"
	}
}

// PolMode is the polarization mode.
type PolMode int32

const (
	PolNotSet  PolMode = 0
	PolH       PolMode = 1
	PolV       PolMode = 2
	PolHvAlt   PolMode = 3
	PolHvSim   PolMode = 4
	PolHhvvAlt PolMode = 5
)

// ScanMode is the antenna scan strategy.
type ScanMode int32

const (
	ScanNotSet     ScanMode = 0
	ScanSector     ScanMode = 1
	ScanCoplane    ScanMode = 2
	ScanRHI        ScanMode = 3
	ScanVert       ScanMode = 4
	ScanIdle       ScanMode = 7
	ScanAzSur360   ScanMode = 8
	ScanElSur360   ScanMode = 9
	ScanSunscan    ScanMode = 11
	ScanPointing   ScanMode = 12
	ScanManPPI     ScanMode = 15
	ScanManRHI     ScanMode = 16
	ScanSunscanRHI ScanMode = 17
)

var scanModeTags = map[ScanMode]string{
	ScanSector:     "SECTOR",
	ScanCoplane:    "COPLANE",
	ScanRHI:        "RHI",
	ScanVert:       "VERT",
	ScanIdle:       "IDLE",
	ScanAzSur360:   "AZ_SUR",
	ScanElSur360:   "EL_SUR",
	ScanSunscan:    "SUN",
	ScanPointing:   "POINT",
	ScanManPPI:     "MANPPI",
	ScanManRHI:     "MANRHI",
	ScanSunscanRHI: "SUN_RHI",
}

// Tag returns the short form used in file names.
func (m ScanMode) Tag() string {
	if s, ok := scanModeTags[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsRHI reports whether the antenna sweeps in elevation at a fixed azimuth.
func (m ScanMode) IsRHI() bool {
	return m == ScanRHI || m == ScanManRHI || m == ScanSunscanRHI
}

// ParseScanMode accepts a Tag value, case sensitive.
func ParseScanMode(tag string) (ScanMode, bool) {
	for m, s := range scanModeTags {
		if s == tag {
			return m, true
		}
	}
	return ScanNotSet, false
}

// IQEncoding selects how pulse IQ values are packed.
type IQEncoding int32

const (
	EncodingFL32         IQEncoding = 1
	EncodingScaledSI16   IQEncoding = 2
	EncodingDBMPhaseSI16 IQEncoding = 3
	EncodingSigmetFL16   IQEncoding = 4
)

// Tag returns the file name component for e. FL32 has none.
func (e IQEncoding) Tag() string {
	switch e {
	case EncodingScaledSI16:
		return "si16"
	case EncodingDBMPhaseSI16:
		return "dbmphase"
	case EncodingSigmetFL16:
		return "fl16"
	default:
		return ""
	}
}

// BytesPerValue is the packed size of one I or Q value.
func (e IQEncoding) BytesPerValue() int {
	if e == EncodingFL32 {
		return 4
	}
	return 2
}

// ParseEncoding maps a configuration name to an encoding.
func ParseEncoding(name string) (IQEncoding, error) {
	switch name {
	case "", "fl32":
		return EncodingFL32, nil
	case "scaled_si16", "si16":
		return EncodingScaledSI16, nil
	case "dbm_phase_si16", "dbmphase":
		return EncodingDBMPhaseSI16, nil
	case "sigmet_fl16", "fl16":
		return EncodingSigmetFL16, nil
	}
	return 0, &UnknownEncodingError{Name: name}
}
