// Package hdsup reads and writes HD-DVD sub-picture streams.
//
// Each packet starts with "SP", a little endian PTS and four reserved
// bytes, followed by the sub-picture unit:
//
//	0   reserved (2)
//	2   unit size (4)
//	6   control table offset (4)
//	10  RLE data, even field then odd field
//
// Offsets are relative to the unit start. The control table uses the same
// sequence structure as DVD units with 32-bit links and full 256 entry
// palette and alpha tables.
package hdsup

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Control commands.
const (
	cmdStart   = 0x01
	cmdStop    = 0x02
	cmdPalette = 0x83
	cmdAlpha   = 0x84
	cmdArea    = 0x85
	cmdOffsets = 0x86
	cmdEnd     = 0xff
)

const (
	packetHeader = 10 // "SP", PTS, reserved
	unitHeader   = 10
	paletteSize  = 256 * 3
	alphaSize    = 0x180
	delayTicks   = 1024
)

var errNoStart = errors.New("hdsup: no start command")

// control is a decoded control table. Offsets are relative to the unit.
type control struct {
	startDelay, stopDelay int64
	hasStop               bool
	x1, x2, y1, y2        int
	even, odd             int
	palette, alpha        int // offsets of the tables, 0 if absent
}

func parseControl(unit []byte, ctrl int) (control, error) {
	var c control
	started := false
	for off, seq := ctrl, 0; ; seq++ {
		if off+6 > len(unit) {
			return c, fmt.Errorf("hdsup: control sequence at %d truncated", off)
		}
		delay := int64(binary.BigEndian.Uint16(unit[off:])) * delayTicks
		next := int(binary.BigEndian.Uint32(unit[off+2:]))
		pos := off + 6
	cmds:
		for pos < len(unit) {
			cmd := unit[pos]
			pos++
			need := 0
			switch cmd {
			case cmdPalette:
				need = paletteSize
			case cmdAlpha:
				need = alphaSize
			case cmdArea:
				need = 6
			case cmdOffsets:
				need = 8
			}
			if pos+need > len(unit) {
				return c, fmt.Errorf("hdsup: command 0x%02x at %d truncated", cmd, pos-1)
			}
			switch cmd {
			case cmdStart:
				c.startDelay = delay
				started = true
			case cmdStop:
				c.stopDelay = delay
				c.hasStop = true
			case cmdPalette:
				c.palette = pos
			case cmdAlpha:
				c.alpha = pos
			case cmdArea:
				b := unit[pos:]
				c.x1 = int(b[0])<<4 | int(b[1])>>4
				c.x2 = int(b[1]&0x0f)<<8 | int(b[2])
				c.y1 = int(b[3])<<4 | int(b[4])>>4
				c.y2 = int(b[4]&0x0f)<<8 | int(b[5])
			case cmdOffsets:
				c.even = int(binary.BigEndian.Uint32(unit[pos:]))
				c.odd = int(binary.BigEndian.Uint32(unit[pos+4:]))
			case cmdEnd:
				break cmds
			default:
				return c, fmt.Errorf("hdsup: unknown command 0x%02x at %d", cmd, pos-1)
			}
			pos += need
		}
		if next == off || next < ctrl || seq > 32 {
			break
		}
		off = next
	}
	if !started {
		return c, errNoStart
	}
	if c.even < unitHeader || c.even > ctrl || c.odd < unitHeader || c.odd > ctrl {
		return c, fmt.Errorf("hdsup: field offsets %d/%d outside RLE data", c.even, c.odd)
	}
	return c, nil
}

// fieldEnd returns the end of the field starting at start.
func (c *control) fieldEnd(start, ctrl int) int {
	end := ctrl
	for _, o := range []int{c.even, c.odd} {
		if o > start && o < end {
			end = o
		}
	}
	return end
}
