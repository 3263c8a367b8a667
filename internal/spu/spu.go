// Package spu reads and builds DVD sub-picture units.
//
// A unit starts with a 16-bit total size and a 16-bit offset of the control
// sequence table. The interlaced RLE fields follow the header; the table is
// a chain of display control sequences, each a 16-bit delay (in units of
// 1024 PTS ticks), the offset of the next sequence and a list of commands.
// The last sequence points to itself.
//
// Both DVD SUP and VobSub carry the same units, only the framing differs.
package spu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/subpic/picture"
)

// Control sequence commands.
const (
	CmdForcedStart = 0x00
	CmdStart       = 0x01
	CmdStop        = 0x02
	CmdColor       = 0x03
	CmdContrast    = 0x04
	CmdArea        = 0x05
	CmdFieldOffset = 0x06
	CmdChangeColor = 0x07
	CmdEnd         = 0xff
)

// DelayTicks is the PTS duration of one delay unit.
const DelayTicks = 1024

// HeaderSize is the size of the unit header.
const HeaderSize = 4

// ErrNoStart is returned for units without a start display command.
var ErrNoStart = errors.New("spu: no start command")

// Control is the decoded control sequence table of a unit.
type Control struct {
	Forced bool

	// StartDelay and StopDelay are PTS offsets from the unit's timestamp.
	// StopDelay is zero when the unit has no stop command.
	StartDelay int64
	StopDelay  int64
	HasStop    bool

	// Colors holds palette indices and Alphas the 4-bit contrast for the
	// background, pattern, emphasis-1 and emphasis-2 slots.
	Colors [4]uint8
	Alphas [4]uint8

	// Area is the display rectangle, both ends inclusive.
	X1, X2, Y1, Y2 int

	// EvenOffset and OddOffset are the start of the two RLE fields,
	// relative to the unit start.
	EvenOffset int
	OddOffset  int
}

// Width returns the width of the display area.
func (c *Control) Width() int { return max(c.X2-c.X1+1, 0) }

// Height returns the height of the display area.
func (c *Control) Height() int { return max(c.Y2-c.Y1+1, 0) }

// Unit is a parsed sub-picture unit.
type Unit struct {
	Size          int
	ControlOffset int
	Control
}

// packNibbles stores v in DVD order: emphasis-2, emphasis-1, pattern,
// background from the high to the low nibble.
func packNibbles(v [4]uint8) [2]byte {
	return [2]byte{v[3]<<4 | v[2]&0x0f, v[1]<<4 | v[0]&0x0f}
}

func unpackNibbles(b []byte) [4]uint8 {
	return [4]uint8{b[1] & 0x0f, b[1] >> 4, b[0] & 0x0f, b[0] >> 4}
}

func truncated(off int) error {
	return fmt.Errorf("%w: control sequence at %d", picture.ErrTruncated, off)
}

// Parse decodes the header and the control sequence table of the unit in
// buf. buf must start at the size field and may extend past the unit.
func Parse(buf []byte) (*Unit, error) {
	if len(buf) < HeaderSize {
		return nil, truncated(0)
	}
	u := &Unit{
		Size:          int(binary.BigEndian.Uint16(buf)),
		ControlOffset: int(binary.BigEndian.Uint16(buf[2:])),
	}
	if u.Size > len(buf) {
		return nil, fmt.Errorf("%w: unit size %d, have %d bytes", picture.ErrTruncated, u.Size, len(buf))
	}
	buf = buf[:u.Size]
	if u.ControlOffset < HeaderSize || u.ControlOffset >= len(buf) {
		return nil, fmt.Errorf("spu: control offset %d outside unit of %d bytes", u.ControlOffset, u.Size)
	}

	started := false
	for off, seq := u.ControlOffset, 0; ; seq++ {
		if off+4 > len(buf) {
			return nil, truncated(off)
		}
		delay := int64(binary.BigEndian.Uint16(buf[off:])) * DelayTicks
		next := int(binary.BigEndian.Uint16(buf[off+2:]))
		pos := off + 4
	cmds:
		for pos < len(buf) {
			cmd := buf[pos]
			pos++
			switch cmd {
			case CmdForcedStart, CmdStart:
				u.Forced = u.Forced || cmd == CmdForcedStart
				u.StartDelay = delay
				started = true
			case CmdStop:
				u.StopDelay = delay
				u.HasStop = true
			case CmdColor, CmdContrast:
				if pos+2 > len(buf) {
					return nil, truncated(pos)
				}
				if cmd == CmdColor {
					u.Colors = unpackNibbles(buf[pos:])
				} else {
					u.Alphas = unpackNibbles(buf[pos:])
				}
				pos += 2
			case CmdArea:
				if pos+6 > len(buf) {
					return nil, truncated(pos)
				}
				b := buf[pos:]
				u.X1 = int(b[0])<<4 | int(b[1])>>4
				u.X2 = int(b[1]&0x0f)<<8 | int(b[2])
				u.Y1 = int(b[3])<<4 | int(b[4])>>4
				u.Y2 = int(b[4]&0x0f)<<8 | int(b[5])
				pos += 6
			case CmdFieldOffset:
				if pos+4 > len(buf) {
					return nil, truncated(pos)
				}
				u.EvenOffset = int(binary.BigEndian.Uint16(buf[pos:]))
				u.OddOffset = int(binary.BigEndian.Uint16(buf[pos+2:]))
				pos += 4
			case CmdChangeColor:
				if pos+2 > len(buf) {
					return nil, truncated(pos)
				}
				pos += max(int(binary.BigEndian.Uint16(buf[pos:])), 2)
			case CmdEnd:
				break cmds
			default:
				return nil, fmt.Errorf("spu: unknown command 0x%02x at %d", cmd, pos-1)
			}
		}
		if next == off || next < u.ControlOffset || seq > 32 {
			break
		}
		off = next
	}
	if !started {
		return nil, ErrNoStart
	}
	if u.EvenOffset < HeaderSize || u.EvenOffset > u.ControlOffset ||
		u.OddOffset < HeaderSize || u.OddOffset > u.ControlOffset {
		return nil, fmt.Errorf("spu: field offsets %d/%d outside RLE data", u.EvenOffset, u.OddOffset)
	}
	return u, nil
}

// Fields returns the even and odd RLE fields of the unit in buf.
func (u *Unit) Fields(buf []byte) (even, odd []byte) {
	return buf[u.EvenOffset:u.fieldEnd(u.EvenOffset)], buf[u.OddOffset:u.fieldEnd(u.OddOffset)]
}

// fieldEnd returns the end of the field starting at start: the start of the
// next field or the control table.
func (u *Unit) fieldEnd(start int) int {
	e := u.ControlOffset
	for _, o := range []int{u.EvenOffset, u.OddOffset} {
		if o > start && o < e {
			e = o
		}
	}
	return e
}

// Build assembles a unit from the encoded fields. The field offsets of c
// are ignored and computed from the field sizes. duration is the display
// time in PTS ticks.
func Build(even, odd []byte, c Control, duration int64) ([]byte, error) {
	ctrl := HeaderSize + len(even) + len(odd)
	if ctrl%2 == 1 {
		ctrl++
	}
	const seq1Size = 4 + 1 + 3 + 3 + 7 + 5 + 1
	const seq2Size = 4 + 1 + 1
	size := ctrl + seq1Size + seq2Size
	if size > 0xffff {
		return nil, fmt.Errorf("%w: sub-picture unit of %d bytes", picture.ErrCapacity, size)
	}
	stop := min(max(duration/DelayTicks, 0), 0xffff)

	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf, uint16(size))
	binary.BigEndian.PutUint16(buf[2:], uint16(ctrl))
	copy(buf[HeaderSize:], even)
	copy(buf[HeaderSize+len(even):], odd)

	seq2 := ctrl + seq1Size
	p := buf[ctrl:]
	binary.BigEndian.PutUint16(p, 0)
	binary.BigEndian.PutUint16(p[2:], uint16(seq2))
	p = p[4:]
	if c.Forced {
		p[0] = CmdForcedStart
	} else {
		p[0] = CmdStart
	}
	col, con := packNibbles(c.Colors), packNibbles(c.Alphas)
	p[1], p[2], p[3] = CmdColor, col[0], col[1]
	p[4], p[5], p[6] = CmdContrast, con[0], con[1]
	p[7] = CmdArea
	p[8] = byte(c.X1 >> 4)
	p[9] = byte(c.X1<<4) | byte(c.X2>>8&0x0f)
	p[10] = byte(c.X2)
	p[11] = byte(c.Y1 >> 4)
	p[12] = byte(c.Y1<<4) | byte(c.Y2>>8&0x0f)
	p[13] = byte(c.Y2)
	p[14] = CmdFieldOffset
	binary.BigEndian.PutUint16(p[15:], uint16(HeaderSize))
	binary.BigEndian.PutUint16(p[17:], uint16(HeaderSize+len(even)))
	p[19] = CmdEnd

	p = buf[seq2:]
	binary.BigEndian.PutUint16(p, uint16(stop))
	binary.BigEndian.PutUint16(p[2:], uint16(seq2))
	p[4] = CmdStop
	p[5] = CmdEnd
	return buf, nil
}
