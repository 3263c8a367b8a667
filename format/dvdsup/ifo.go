package dvdsup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/subpic/palette"
)

// IFO layout offsets within the VTS information file.
const (
	ifoMagic       = "DVDVIDEO-VTS"
	ifoSector      = 2048
	ifoPGCITSector = 0xcc
	ifoVideoAttr   = 0x200
	ifoSubCount    = 0x254
	ifoSubAttr     = 0x256
	pgcPalette     = 0xa4
)

// ErrNotIFO is returned for files that are not VTS information files.
var ErrNotIFO = errors.New("dvdsup: not a VTS IFO file")

// IFO is the subtitle related part of a DVD title set information file.
type IFO struct {
	// Palette is the color lookup table of the first program chain.
	Palette *palette.Palette

	// Width and Height are derived from the video standard.
	Width, Height int

	// Language is the two letter code of the first sub-picture stream, if
	// any.
	Language string
}

// ReadIFO parses the VTS information file in r.
func ReadIFO(r io.ReaderAt, cs palette.ColorSpace) (*IFO, error) {
	head := make([]byte, ifoSector)
	if _, err := r.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dvdsup: read IFO header: %w", err)
	}
	if string(head[:len(ifoMagic)]) != ifoMagic {
		return nil, ErrNotIFO
	}
	ifo := &IFO{Width: 720, Height: 576}
	if head[ifoVideoAttr]>>4&0x03 == 0 {
		ifo.Height = 480
	}
	if binary.BigEndian.Uint16(head[ifoSubCount:]) > 0 {
		if lang := head[ifoSubAttr+2 : ifoSubAttr+4]; lang[0] != 0 {
			ifo.Language = string(lang)
		}
	}

	pgcit := int64(binary.BigEndian.Uint32(head[ifoPGCITSector:])) * ifoSector
	var tab [16]byte
	if _, err := r.ReadAt(tab[:], pgcit); err != nil {
		return nil, fmt.Errorf("dvdsup: read PGCIT: %w", err)
	}
	if binary.BigEndian.Uint16(tab[:]) == 0 {
		return nil, fmt.Errorf("dvdsup: IFO without program chains")
	}
	pgc := pgcit + int64(binary.BigEndian.Uint32(tab[12:]))
	raw := make([]byte, 16*4)
	if _, err := r.ReadAt(raw, pgc+pgcPalette); err != nil {
		return nil, fmt.Errorf("dvdsup: read PGC palette: %w", err)
	}
	ifo.Palette = palette.New(16, cs)
	for i := range 16 {
		e := raw[i*4:]
		_ = ifo.Palette.SetYCbCr(i, e[1], e[3], e[2])
		_ = ifo.Palette.SetAlpha(i, 255)
	}
	return ifo, nil
}

// LoadIFO reads the IFO file at path.
func LoadIFO(path string, cs palette.ColorSpace) (*IFO, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("dvdsup: open IFO: %w", err)
	}
	defer f.Close()
	return ReadIFO(f, cs)
}

// ifoPath returns the IFO file that belongs to the SUP file at path.
func ifoPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".ifo"
}

// FindIFO looks for the companion IFO file of path, ignoring the case of
// the extension.
func FindIFO(path string) (string, bool) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".ifo", ".IFO"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext, true
		}
	}
	return "", false
}

// MarshalIFO builds a minimal two sector VTS information file holding a
// single program chain with pal as its color lookup table.
func MarshalIFO(ifo *IFO) []byte {
	out := make([]byte, 2*ifoSector)
	copy(out, ifoMagic)
	binary.BigEndian.PutUint32(out[0x0c:], 1) // last sector of title set
	binary.BigEndian.PutUint32(out[0x1c:], 1) // last sector of IFO
	binary.BigEndian.PutUint16(out[0x20:], 0x0011)
	binary.BigEndian.PutUint32(out[0x80:], 0x3ff) // end of VTS_MAT
	binary.BigEndian.PutUint32(out[ifoPGCITSector:], 1)

	if ifo.Height != 480 {
		out[ifoVideoAttr] = 0x10 // PAL
	}
	if lang := ifo.Language; len(lang) == 2 {
		binary.BigEndian.PutUint16(out[ifoSubCount:], 1)
		out[ifoSubAttr] = 0x01 // language type present
		copy(out[ifoSubAttr+2:], lang)
	}

	pgcit := out[ifoSector:]
	binary.BigEndian.PutUint16(pgcit, 1)
	binary.BigEndian.PutUint32(pgcit[4:], ifoSector-1)
	binary.BigEndian.PutUint32(pgcit[8:], 0x81000000) // entry PGC, title 1
	binary.BigEndian.PutUint32(pgcit[12:], 0x10)
	pgc := pgcit[0x10:]
	for i := range min(ifo.Palette.Size(), 16) {
		y, cb, cr := ifo.Palette.YCbCr(i)
		e := pgc[pgcPalette+i*4:]
		e[1], e[2], e[3] = y, cr, cb
	}
	return out
}
