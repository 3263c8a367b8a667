// Package rle implements the run-length codecs used by subtitle streams.
//
// Three alphabets are supported:
//   - BD: the byte oriented Blu-ray PGS encoding ([DecodeBD], [EncodeBD])
//   - DVD: the 2-bit nibble encoding of DVD sub-picture units, stored as two
//     interlaced fields ([DecodeDVD], [EncodeDVD])
//   - HD: the bit oriented HD-DVD encoding with 2-bit and 8-bit colors, also
//     interlaced ([DecodeHD], [EncodeHD])
//
// Decoders never fail on truncated input: missing pixels stay at index 0.
// Runs that overflow a line are clipped and counted in [Stats].
package rle

import (
	"errors"
	"fmt"
)

// ErrTruncated is wrapped by errors that report a missing field buffer.
var ErrTruncated = errors.New("rle: truncated data")

// CorruptError reports an illegal code sequence.
// Offset is the byte position within the concatenated input.
type CorruptError struct {
	Offset int64
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("rle: corrupted stream at byte %d: %s", e.Offset, e.Reason)
}

// Stats describes recoverable irregularities found while decoding.
type Stats struct {
	// Clipped counts runs that extended past the end of a line.
	Clipped int

	// Truncated is set when the input ended before the last line was
	// complete.
	Truncated bool
}

// fragmentReader reads bytes from a list of fragments as if they were one
// contiguous buffer.
type fragmentReader struct {
	frags [][]byte
	i     int
	pos   int
	off   int64
}

func newFragmentReader(frags [][]byte) *fragmentReader {
	return &fragmentReader{frags: frags}
}

// next returns the next byte. ok is false at the end of the last fragment.
func (r *fragmentReader) next() (b byte, ok bool) {
	for r.i < len(r.frags) {
		f := r.frags[r.i]
		if r.pos < len(f) {
			b = f[r.pos]
			r.pos++
			r.off++
			return b, true
		}
		r.i++
		r.pos = 0
	}
	return 0, false
}

// lineWriter places runs into a bitmap row by row.
// Lines are numbered within a field: line y is stored in bitmap row
// start+y*step.
type lineWriter struct {
	pix         []uint8
	width       int
	height      int // lines in this field
	start, step int
	x, y        int
	clipped     int
}

func newLineWriter(pix []uint8, width, height int) *lineWriter {
	return &lineWriter{pix: pix, width: width, height: height, step: 1}
}

// newFieldWriter returns a writer for the even (field 0) or odd (field 1)
// lines of a bitmap with the given height.
func newFieldWriter(pix []uint8, width, height, field int) *lineWriter {
	return &lineWriter{
		pix:    pix,
		width:  width,
		height: (height - field + 1) / 2,
		start:  field,
		step:   2,
	}
}

// done reports whether all lines of the field have been written.
func (w *lineWriter) done() bool {
	return w.y >= w.height
}

// put writes n pixels of color c to the current line. Pixels past the end
// of the line are dropped and the run is counted as clipped.
func (w *lineWriter) put(c uint8, n int) {
	if w.y >= w.height || n <= 0 {
		return
	}
	if avail := w.width - w.x; n > avail {
		w.clipped++
		n = avail
	}
	if c != 0 {
		o := (w.start+w.y*w.step)*w.width + w.x
		row := w.pix[o : o+n]
		for i := range row {
			row[i] = c
		}
	}
	w.x += n
}

// newline moves to the start of the next line.
func (w *lineWriter) newline() {
	w.x = 0
	w.y++
}
