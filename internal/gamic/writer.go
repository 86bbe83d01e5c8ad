package gamic

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer encodes records in the receiver's on-disk layout. It is used to
// produce synthetic input files.
type Writer struct {
	w      io.Writer
	offset int64
	buf    []byte
}

// NewWriter returns a Writer positioned at the start of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes h followed by iq and pads to the next BlockSize boundary.
// len(iq) must match the layout implied by h.
func (wr *Writer) Write(h *Header, iq []float32) error {
	layout, err := LayoutOf(h)
	if err != nil {
		return err
	}
	if len(iq) != layout.NIQ() {
		return fmt.Errorf("pulse %d: got %d IQ values, layout needs %d", h.PulseCounter, len(iq), layout.NIQ())
	}

	size := HeaderSize + 4*len(iq)
	total := size
	if rem := (wr.offset + int64(size)) % BlockSize; rem != 0 {
		total += int(BlockSize - rem)
	}
	if cap(wr.buf) < total {
		wr.buf = make([]byte, total)
	}
	b := wr.buf[:total]
	clear(b)

	h.Encode(b)
	for i, v := range iq {
		binary.LittleEndian.PutUint32(b[HeaderSize+4*i:], math.Float32bits(v))
	}

	n, err := wr.w.Write(b)
	wr.offset += int64(n)
	return err
}
