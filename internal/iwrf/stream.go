package iwrf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Format selects the on-disk framing of packets.
type Format int

const (
	// FormatIWRF writes every packet with its PacketInfo envelope.
	FormatIWRF Format = iota
	// FormatLegacy writes packet bodies only, without the envelope.
	FormatLegacy
)

// ParseFormat maps a configuration name to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", "iwrf":
		return FormatIWRF, nil
	case "legacy":
		return FormatLegacy, nil
	}
	return 0, fmt.Errorf("unknown output format %q", name)
}

// FileExt is the output file extension for f.
func (f Format) FileExt() string {
	if f == FormatLegacy {
		return "ts"
	}
	return "iwrf_ts"
}

// Writer frames packets onto a byte stream.
type Writer struct {
	w      io.Writer
	format Format
	buf    bytes.Buffer
	n      int64
}

// NewWriter returns a Writer emitting packets in format f.
func NewWriter(w io.Writer, f Format) *Writer {
	return &Writer{w: w, format: f}
}

// BytesWritten returns the number of bytes written so far.
func (wr *Writer) BytesWritten() int64 {
	return wr.n
}

// WritePacket writes a fixed-layout packet.
func (wr *Writer) WritePacket(p Packet) error {
	return wr.write(p, nil)
}

// WritePulse writes a pulse header followed by its packed IQ payload.
// The header's LenBytes is set to cover both.
func (wr *Writer) WritePulse(h *PulseHeader, payload []byte) error {
	h.Packet.LenBytes = int32(PulseHeaderSize + len(payload))
	return wr.write(h, payload)
}

func (wr *Writer) write(p Packet, payload []byte) error {
	wr.buf.Reset()
	if err := binary.Write(&wr.buf, binary.LittleEndian, p); err != nil {
		return fmt.Errorf("encode packet %#x: %w", p.Envelope().ID, err)
	}
	b := wr.buf.Bytes()
	if wr.format == FormatLegacy {
		b = b[PacketInfoSize:]
	}
	n, err := wr.w.Write(b)
	wr.n += int64(n)
	if err != nil {
		return fmt.Errorf("write packet %#x: %w", p.Envelope().ID, err)
	}
	if len(payload) > 0 {
		n, err = wr.w.Write(payload)
		wr.n += int64(n)
		if err != nil {
			return fmt.Errorf("write pulse payload: %w", err)
		}
	}
	return nil
}

// Frame is one packet read back from an IWRF stream.
type Frame struct {
	Info    PacketInfo
	Packet  Packet
	Payload []byte
}

// Reader walks the packets of an IWRF-format stream. Legacy streams carry
// no envelope and cannot be walked.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next packet. Unknown packet IDs are skipped over and
// returned with a nil Packet. It returns io.EOF at a clean end of stream.
func (rd *Reader) Next() (*Frame, error) {
	var env [PacketInfoSize]byte
	if _, err := io.ReadFull(rd.r, env[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read packet envelope: %w", err)
	}
	var info PacketInfo
	if err := binary.Read(bytes.NewReader(env[:]), binary.LittleEndian, &info); err != nil {
		return nil, err
	}
	if info.LenBytes < PacketInfoSize {
		return nil, fmt.Errorf("packet %#x: length %d shorter than envelope", info.ID, info.LenBytes)
	}
	body := make([]byte, int(info.LenBytes)-PacketInfoSize)
	if _, err := io.ReadFull(rd.r, body); err != nil {
		return nil, fmt.Errorf("packet %#x body: %w", info.ID, err)
	}

	var p Packet
	size := 0
	switch info.ID {
	case RadarInfoID:
		p, size = &RadarInfo{}, RadarInfoSize
	case TsProcessingID:
		p, size = &TsProcessing{}, TsProcessingSize
	case CalibrationID:
		p, size = &Calibration{}, CalibrationSize
	case PulseHeaderID:
		p, size = &PulseHeader{}, PulseHeaderSize
	default:
		return &Frame{Info: info}, nil
	}
	if int(info.LenBytes) < size {
		return nil, fmt.Errorf("packet %#x: length %d shorter than %d", info.ID, info.LenBytes, size)
	}
	full := io.MultiReader(bytes.NewReader(env[:]), bytes.NewReader(body[:size-PacketInfoSize]))
	if err := binary.Read(full, binary.LittleEndian, p); err != nil {
		return nil, fmt.Errorf("decode packet %#x: %w", info.ID, err)
	}
	f := &Frame{Info: info, Packet: p}
	if extra := body[size-PacketInfoSize:]; len(extra) > 0 {
		f.Payload = extra
	}
	return f, nil
}
