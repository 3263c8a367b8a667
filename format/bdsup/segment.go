// Package bdsup reads and writes Blu-ray presentation graphics streams
// (PGS, ".sup" files).
//
// A stream is a sequence of segments. Each segment has a 13 byte header:
//
//	"PG" | PTS (4) | DTS (4) | type (1) | payload size (2)
//
// Segments are grouped into display sets: a presentation composition
// segment (PCS), window definitions (WDS), palettes (PDS), object
// definitions (ODS, possibly split across several segments) and an end
// segment. A PCS without composition objects ends the caption shown by the
// previous display set.
package bdsup

import (
	"encoding/binary"
	"fmt"
)

// Segment types.
const (
	SegPDS = 0x14
	SegODS = 0x15
	SegPCS = 0x16
	SegWDS = 0x17
	SegEND = 0x80
)

// HeaderSize is the size of a segment header.
const HeaderSize = 13

// Composition states of a PCS.
const (
	StateNormal      = 0x00
	StateAcquisition = 0x40
	StateEpochStart  = 0x80
)

// Composition object flags.
const (
	flagCropped = 0x80
	flagForced  = 0x40
)

// ODS sequence flags.
const (
	seqFirst = 0x80
	seqLast  = 0x40
)

// maxFragment is the largest RLE chunk stored in one ODS segment.
const maxFragment = 0xffe4

// pdsEntrySize is the size of one palette entry: index, Y, Cr, Cb, alpha.
const pdsEntrySize = 5

type header struct {
	PTS  int64
	DTS  int64
	Type uint8
	Size int
}

func segmentName(t uint8) string {
	switch t {
	case SegPDS:
		return "PDS"
	case SegODS:
		return "ODS"
	case SegPCS:
		return "PCS"
	case SegWDS:
		return "WDS"
	case SegEND:
		return "END"
	default:
		return fmt.Sprintf("0x%02x", t)
	}
}

func parseHeader(b []byte) (header, error) {
	if b[0] != 'P' || b[1] != 'G' {
		return header{}, fmt.Errorf("bdsup: missing PG marker, found % x", b[:2])
	}
	return header{
		PTS:  int64(binary.BigEndian.Uint32(b[2:])),
		DTS:  int64(binary.BigEndian.Uint32(b[6:])),
		Type: b[10],
		Size: int(binary.BigEndian.Uint16(b[11:])),
	}, nil
}

func appendSegment(out []byte, typ uint8, pts, dts int64, payload []byte) []byte {
	var h [HeaderSize]byte
	h[0], h[1] = 'P', 'G'
	binary.BigEndian.PutUint32(h[2:], uint32(pts))
	binary.BigEndian.PutUint32(h[6:], uint32(dts))
	h[10] = typ
	binary.BigEndian.PutUint16(h[11:], uint16(len(payload)))
	out = append(out, h[:]...)
	return append(out, payload...)
}

// compositionObject is one entry of a PCS.
type compositionObject struct {
	ObjectID int
	WindowID int
	Forced   bool
	X, Y     int
	Cropped  bool
	Crop     [4]int // x, y, w, h
}

type pcs struct {
	Width, Height int
	FrameRate     uint8
	Number        int
	State         uint8
	PaletteUpdate bool
	PaletteID     int
	Objects       []compositionObject
}

func parsePCS(p []byte) (pcs, error) {
	if len(p) < 11 {
		return pcs{}, fmt.Errorf("bdsup: PCS of %d bytes", len(p))
	}
	c := pcs{
		Width:         int(binary.BigEndian.Uint16(p)),
		Height:        int(binary.BigEndian.Uint16(p[2:])),
		FrameRate:     p[4],
		Number:        int(binary.BigEndian.Uint16(p[5:])),
		State:         p[7],
		PaletteUpdate: p[8]&0x80 != 0,
		PaletteID:     int(p[9]),
	}
	n := int(p[10])
	p = p[11:]
	for i := 0; i < n; i++ {
		if len(p) < 8 {
			return c, fmt.Errorf("bdsup: PCS object %d truncated", i)
		}
		o := compositionObject{
			ObjectID: int(binary.BigEndian.Uint16(p)),
			WindowID: int(p[2]),
			Cropped:  p[3]&flagCropped != 0,
			Forced:   p[3]&flagForced != 0,
			X:        int(binary.BigEndian.Uint16(p[4:])),
			Y:        int(binary.BigEndian.Uint16(p[6:])),
		}
		p = p[8:]
		if o.Cropped {
			if len(p) < 8 {
				return c, fmt.Errorf("bdsup: PCS object %d crop truncated", i)
			}
			for k := range o.Crop {
				o.Crop[k] = int(binary.BigEndian.Uint16(p[2*k:]))
			}
			p = p[8:]
		}
		c.Objects = append(c.Objects, o)
	}
	return c, nil
}

func (c *pcs) marshal() []byte {
	out := make([]byte, 11, 11+8*len(c.Objects))
	binary.BigEndian.PutUint16(out, uint16(c.Width))
	binary.BigEndian.PutUint16(out[2:], uint16(c.Height))
	out[4] = c.FrameRate
	binary.BigEndian.PutUint16(out[5:], uint16(c.Number))
	out[7] = c.State
	if c.PaletteUpdate {
		out[8] = 0x80
	}
	out[9] = byte(c.PaletteID)
	out[10] = byte(len(c.Objects))
	for _, o := range c.Objects {
		var b [8]byte
		binary.BigEndian.PutUint16(b[:], uint16(o.ObjectID))
		b[2] = byte(o.WindowID)
		if o.Forced {
			b[3] |= flagForced
		}
		binary.BigEndian.PutUint16(b[4:], uint16(o.X))
		binary.BigEndian.PutUint16(b[6:], uint16(o.Y))
		out = append(out, b[:]...)
	}
	return out
}

type window struct {
	ID int
	X, Y,
	Width, Height int
}

func parseWDS(p []byte) ([]window, error) {
	if len(p) < 1 {
		return nil, fmt.Errorf("bdsup: empty WDS")
	}
	n := int(p[0])
	if len(p) < 1+9*n {
		return nil, fmt.Errorf("bdsup: WDS with %d windows in %d bytes", n, len(p))
	}
	ws := make([]window, n)
	for i := range ws {
		b := p[1+9*i:]
		ws[i] = window{
			ID:     int(b[0]),
			X:      int(binary.BigEndian.Uint16(b[1:])),
			Y:      int(binary.BigEndian.Uint16(b[3:])),
			Width:  int(binary.BigEndian.Uint16(b[5:])),
			Height: int(binary.BigEndian.Uint16(b[7:])),
		}
	}
	return ws, nil
}

func marshalWDS(ws []window) []byte {
	out := []byte{byte(len(ws))}
	for _, w := range ws {
		var b [9]byte
		b[0] = byte(w.ID)
		binary.BigEndian.PutUint16(b[1:], uint16(w.X))
		binary.BigEndian.PutUint16(b[3:], uint16(w.Y))
		binary.BigEndian.PutUint16(b[5:], uint16(w.Width))
		binary.BigEndian.PutUint16(b[7:], uint16(w.Height))
		out = append(out, b[:]...)
	}
	return out
}

// odsHeader is the start of an ODS payload. Width, Height and DataLen are
// only present in the first segment of an object.
type odsHeader struct {
	ID       int
	Version  int
	Sequence uint8
	DataLen  int // RLE size + 4
	Width    int
	Height   int
}

func (o *odsHeader) first() bool { return o.Sequence&seqFirst != 0 }

// size returns the header size of the segment.
func (o *odsHeader) size() int {
	if o.first() {
		return 11
	}
	return 4
}

func parseODS(p []byte) (odsHeader, error) {
	if len(p) < 4 {
		return odsHeader{}, fmt.Errorf("bdsup: ODS of %d bytes", len(p))
	}
	o := odsHeader{
		ID:       int(binary.BigEndian.Uint16(p)),
		Version:  int(p[2]),
		Sequence: p[3],
	}
	if !o.first() {
		return o, nil
	}
	if len(p) < 11 {
		return o, fmt.Errorf("bdsup: first ODS of %d bytes", len(p))
	}
	o.DataLen = int(p[4])<<16 | int(p[5])<<8 | int(p[6])
	o.Width = int(binary.BigEndian.Uint16(p[7:]))
	o.Height = int(binary.BigEndian.Uint16(p[9:]))
	return o, nil
}
