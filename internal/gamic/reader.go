package gamic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrShortRead is returned when the stream ends part way through a record.
var ErrShortRead = errors.New("gamic: short read")

// MaxGates bounds the payload allocation for a corrupt gate count.
const MaxGates = 1 << 16

// Record is one decoded pulse: the header, its layout, and the raw IQ payload
// in the receiver's gate-major order.
type Record struct {
	Header Header
	Layout Layout
	IQ     []float32
}

// Reader decodes consecutive records from a stream, keeping track of the
// stream offset so each record starts on a BlockSize boundary.
type Reader struct {
	r      io.Reader
	offset int64
	hdr    [HeaderSize]byte
	raw    []byte
}

// NewReader returns a Reader positioned at the start of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Offset returns the number of bytes consumed so far.
func (rd *Reader) Offset() int64 {
	return rd.offset
}

// Next decodes the next record. It returns io.EOF when the stream ends
// cleanly on a record boundary. Any other truncation wraps ErrShortRead.
// The returned record's IQ slice is freshly allocated.
func (rd *Reader) Next() (*Record, error) {
	n, err := io.ReadFull(rd.r, rd.hdr[:])
	rd.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: header at offset %d: read %d of %d bytes: %w", ErrShortRead, rd.offset-int64(n), n, HeaderSize, midRecord(err))
	}

	hdr, err := DecodeHeader(rd.hdr[:])
	if err != nil {
		return nil, err
	}
	layout, err := LayoutOf(&hdr)
	if err != nil {
		return nil, err
	}
	if layout.NGates > MaxGates {
		return nil, fmt.Errorf("pulse %d: gate count %d exceeds %d: %w", hdr.PulseCounter, layout.NGates, MaxGates, ErrAmbiguousLayout)
	}

	nIQ := layout.NIQ()
	need := nIQ * 4
	if cap(rd.raw) < need {
		rd.raw = make([]byte, need)
	}
	raw := rd.raw[:need]
	n, err = io.ReadFull(rd.r, raw)
	rd.offset += int64(n)
	if err != nil {
		return nil, fmt.Errorf("%w: pulse %d payload: read %d of %d bytes: %w", ErrShortRead, hdr.PulseCounter, n, need, midRecord(err))
	}
	iq := make([]float32, nIQ)
	for i := range iq {
		iq[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	if err := rd.skipPadding(); err != nil {
		return nil, fmt.Errorf("pulse %d: %w", hdr.PulseCounter, err)
	}

	return &Record{Header: hdr, Layout: layout, IQ: iq}, nil
}

func (rd *Reader) skipPadding() error {
	rem := rd.offset % BlockSize
	if rem == 0 {
		return nil
	}
	pad := BlockSize - rem
	n, err := io.CopyN(io.Discard, rd.r, pad)
	rd.offset += n
	if err != nil {
		return fmt.Errorf("%w: padding: skipped %d of %d bytes: %w", ErrShortRead, n, pad, midRecord(err))
	}
	return nil
}

// midRecord reports a bare EOF inside a record as io.ErrUnexpectedEOF so it
// is never mistaken for a clean end of stream.
func midRecord(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
