// Package vobsub reads and writes VobSub subtitles: a SUB file of MPEG-2
// program stream packs carrying DVD sub-picture units, and an IDX text file
// with the palette, the frame size and one timestamp and file position per
// caption.
//
// Every pack is 2048 bytes long. A unit is split across the payloads of
// private stream 1 PES packets with substream id 0x20 plus the stream
// index; only the first packet of a unit has a PTS. Unused space at the end
// of the last pack is filled with a padding packet.
package vobsub

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	packSize       = 2048
	packHeaderSize = 14
	substreamBase  = 0x20

	startPack    = 0xba
	streamPriv1  = 0xbd
	streamPad    = 0xbe
	pesHeaderMin = 9 // start code, length, two flag bytes, header length
	ptsSize      = 5

	// muxRate is the program mux rate of the pack header in units of
	// 50 bytes/s.
	muxRate = 0x6270
)

var startCode = []byte{0, 0, 1}

var errNoPack = errors.New("vobsub: missing pack start code")

// payload is the part of a PES packet that belongs to one substream.
type payload struct {
	offset, size int64
	pts          int64
	hasPTS       bool
}

// parsePack returns the private stream 1 payloads of substream id in the
// pack starting at pack[0].
func parsePack(pack []byte, base int64, id int) ([]payload, error) {
	if len(pack) < 12 || !bytes.HasPrefix(pack, startCode) || pack[3] != startPack {
		return nil, errNoPack
	}
	pos := 12 // MPEG-1
	if pack[4]&0xc0 == 0x40 {
		if len(pack) < packHeaderSize {
			return nil, errNoPack
		}
		pos = packHeaderSize + int(pack[13]&0x07)
	}
	var out []payload
	for pos+6 <= len(pack) {
		if !bytes.HasPrefix(pack[pos:], startCode) {
			break
		}
		stream := pack[pos+3]
		end := pos + 6 + int(binary.BigEndian.Uint16(pack[pos+4:]))
		if end > len(pack) {
			return out, fmt.Errorf("vobsub: PES packet at %d exceeds pack", base+int64(pos))
		}
		if stream == streamPriv1 && pos+pesHeaderMin <= end {
			flags := pack[pos+7]
			data := pos + pesHeaderMin + int(pack[pos+8])
			if data < end && int(pack[data]) == id {
				p := payload{offset: base + int64(data) + 1, size: int64(end - data - 1)}
				if flags&0x80 != 0 && pos+pesHeaderMin+ptsSize <= end {
					p.pts, p.hasPTS = decodePTS(pack[pos+pesHeaderMin:]), true
				}
				out = append(out, p)
			}
		}
		pos = end
	}
	return out, nil
}

func decodePTS(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 | int64(b[1])<<22 | int64(b[2]>>1)<<15 |
		int64(b[3])<<7 | int64(b[4]>>1)
}

func encodePTS(b []byte, pts int64) {
	b[0] = 0x21 | byte(pts>>29)&0x0e
	b[1] = byte(pts >> 22)
	b[2] = byte(pts>>14) | 0x01
	b[3] = byte(pts >> 7)
	b[4] = byte(pts<<1) | 0x01
}

// putPackHeader writes an MPEG-2 pack header with the given system clock.
func putPackHeader(b []byte, scr int64) {
	copy(b, startCode)
	b[3] = startPack
	b[4] = 0x44 | byte(scr>>27)&0x38 | byte(scr>>28)&0x03
	b[5] = byte(scr >> 20)
	b[6] = byte(scr>>12)&0xf8 | 0x04 | byte(scr>>13)&0x03
	b[7] = byte(scr >> 5)
	b[8] = byte(scr<<3)&0xf8 | 0x04
	b[9] = 0x01
	b[10] = byte(muxRate >> 14)
	b[11] = byte(muxRate >> 6 & 0xff)
	b[12] = byte(muxRate<<2&0xff) | 0x03
	b[13] = 0xf8
}

// packUnit splits a sub-picture unit into 2048 byte packs.
func packUnit(unit []byte, pts int64, id int) []byte {
	var out []byte
	for first := true; first || len(unit) > 0; first = false {
		pack := make([]byte, packSize)
		putPackHeader(pack, pts)
		hdr := pesHeaderMin
		if first {
			hdr += ptsSize
		}
		room := packSize - packHeaderSize - hdr - 1
		n := min(room, len(unit))
		gap := room - n
		stuffing := 0
		if gap > 0 && gap < 6 {
			// too small for a padding packet
			stuffing = gap
		}

		p := pack[packHeaderSize:]
		copy(p, startCode)
		p[3] = streamPriv1
		binary.BigEndian.PutUint16(p[4:], uint16(hdr-6+stuffing+1+n))
		p[6] = 0x81
		p[8] = byte(hdr - pesHeaderMin + stuffing)
		if first {
			p[7] = 0x80
			encodePTS(p[pesHeaderMin:], pts)
		}
		for i := range stuffing {
			p[hdr+i] = 0xff
		}
		p = p[hdr+stuffing:]
		p[0] = byte(id)
		copy(p[1:], unit[:n])
		unit = unit[n:]

		if gap >= 6 {
			pad := p[1+n:]
			copy(pad, startCode)
			pad[3] = streamPad
			binary.BigEndian.PutUint16(pad[4:], uint16(gap-6))
			for i := 6; i < gap; i++ {
				pad[i] = 0xff
			}
		}
		out = append(out, pack...)
	}
	return out
}
