package subpic

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/format/bdnxml"
	"github.com/gogpu/subpic/format/bdsup"
	"github.com/gogpu/subpic/format/dvdsup"
	"github.com/gogpu/subpic/format/hdsup"
	"github.com/gogpu/subpic/format/vobsub"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// Format identifies a subtitle container.
type Format uint8

// Supported containers.
const (
	FormatUnknown Format = iota
	FormatBDSUP
	FormatHDSUP
	FormatDVDSUP
	FormatVobSub
	FormatXML
)

var formatNames = [...]string{
	FormatUnknown: "unknown",
	FormatBDSUP:   "bdsup",
	FormatHDSUP:   "hdsup",
	FormatDVDSUP:  "dvdsup",
	FormatVobSub:  "vobsub",
	FormatXML:     "xml",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Ext returns the file extension of the main output file.
func (f Format) Ext() string {
	switch f {
	case FormatBDSUP, FormatHDSUP, FormatDVDSUP:
		return ".sup"
	case FormatVobSub:
		return ".idx"
	case FormatXML:
		return ".xml"
	}
	return ""
}

// IsDVD reports whether f stores four color DVD sub-pictures.
func (f Format) IsDVD() bool {
	return f == FormatDVDSUP || f == FormatVobSub
}

// MaxColors returns the palette capacity of a caption in format f.
func (f Format) MaxColors() int {
	switch f {
	case FormatDVDSUP, FormatVobSub:
		return 4
	case FormatXML:
		return 256
	}
	return 255
}

// ParseFormat parses a format name as printed by [Format.String]. "sup"
// and "bd" are accepted for BD SUP, "sub" and "idx" for VobSub.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bdsup", "sup", "bd", "pgs":
		return FormatBDSUP, nil
	case "hdsup", "hd", "hd-dvd":
		return FormatHDSUP, nil
	case "dvdsup", "dvd":
		return FormatDVDSUP, nil
	case "vobsub", "sub", "idx":
		return FormatVobSub, nil
	case "xml", "bdn":
		return FormatXML, nil
	}
	return FormatUnknown, fmt.Errorf("subpic: %w: %q", picture.ErrUnsupported, s)
}

// sniffLen is the number of bytes Detect inspects.
const sniffLen = 12

// Detect identifies the container of a stream from its file name and its
// first bytes. SUP files are told apart by their packet markers: BD SUP
// starts with "PG", HD-DVD and DVD SUP with "SP". HD-DVD units start with
// a 16-bit zero field where DVD units store their nonzero size.
func Detect(name string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".idx", ".sub":
		return FormatVobSub
	case ".xml":
		return FormatXML
	}
	switch {
	case len(head) >= 2 && head[0] == 'P' && head[1] == 'G':
		return FormatBDSUP
	case len(head) >= sniffLen && head[0] == 'S' && head[1] == 'P':
		if head[10] == 0 && head[11] == 0 {
			return FormatHDSUP
		}
		return FormatDVDSUP
	case bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf"), []byte("<")):
		return FormatXML
	}
	return FormatUnknown
}

// DetectFile identifies the container of the file at path.
func DetectFile(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".idx" || ext == ".sub" {
		return FormatVobSub, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return FormatUnknown, fmt.Errorf("subpic: %w", err)
	}
	defer f.Close()
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("subpic: %w", err)
	}
	if ft := Detect(path, head[:n]); ft != FormatUnknown {
		return ft, nil
	}
	return FormatUnknown, fmt.Errorf("subpic: %w: %s", picture.ErrUnsupported, path)
}

// readerOptions translates settings into reader options.
func (s *Settings) readerOptions() []format.Option {
	opts := []format.Option{
		format.WithLogger(s.logger()),
		format.WithColorSpace(s.ColorSpace),
		format.WithPalette(s.DVDPalette),
		format.WithLanguageIndex(s.LanguageIndex),
		format.WithAlphaThreshold(s.AlphaThreshold),
		format.WithFilter(s.Filter),
	}
	if s.SourceFPS != 0 {
		opts = append(opts, format.WithFrameRate(s.SourceFPS))
	}
	return opts
}

// open converts the results of a concrete constructor, so that a failed
// call yields a nil interface.
func open[T any](v T, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// openReader opens the file at path as container f. preload reads SUP
// streams into memory so that captions can be decoded in parallel without
// contending for the file.
func openReader(path string, f Format, s *Settings, preload bool) (picture.Reader, error) {
	opts := s.readerOptions()
	switch f {
	case FormatVobSub:
		return open[picture.Reader](vobsub.Open(path, append(opts, format.WithPreload(preload))...))
	case FormatXML:
		return open[picture.Reader](bdnxml.Open(path, opts...))
	case FormatBDSUP, FormatHDSUP, FormatDVDSUP:
	default:
		return nil, fmt.Errorf("subpic: %w: %v", picture.ErrUnsupported, f)
	}

	if !preload {
		switch f {
		case FormatBDSUP:
			return open[picture.Reader](bdsup.Open(path, opts...))
		case FormatHDSUP:
			return open[picture.Reader](hdsup.Open(path, opts...))
		default:
			return open[picture.Reader](dvdsup.Open(path, opts...))
		}
	}

	src, err := picture.LoadSource(path)
	if err != nil {
		return nil, err
	}
	var r picture.Reader
	switch f {
	case FormatBDSUP:
		r, err = open[picture.Reader](bdsup.NewReader(src, opts...))
	case FormatHDSUP:
		r, err = open[picture.Reader](hdsup.NewReader(src, opts...))
	default:
		r, err = open[picture.Reader](dvdsup.NewReader(src, loadIFO(path, s), opts...))
	}
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return r, nil
}

// loadIFO reads the companion IFO file of a DVD SUP file, if there is a
// readable one.
func loadIFO(path string, s *Settings) *dvdsup.IFO {
	p, ok := dvdsup.FindIFO(path)
	if !ok {
		return nil
	}
	ifo, err := dvdsup.LoadIFO(p, s.ColorSpace)
	if err != nil {
		s.logger().Warn("subpic: ignoring IFO file", "path", p, "err", err)
		return nil
	}
	return ifo
}

// Target describes the output stream of a conversion.
type Target struct {
	Format     Format
	Resolution Resolution
	FrameRate  timecode.FrameRate
}

// Create creates an output file for the stream in. The container is
// s.OutputFormat; the frame size and rate follow from the settings and the
// source stream.
func Create(path string, in *Stream, s Settings) (picture.Writer, error) {
	t := in.target(&s)
	opts := []format.Option{
		format.WithLogger(s.logger()),
		format.WithColorSpace(s.ColorSpace),
		format.WithFrameRate(t.FrameRate),
		format.WithResolution(t.Resolution.Width, t.Resolution.Height),
		format.WithLanguage(s.Language),
		format.WithPalette(in.outputPalette(&s)),
		format.WithAlphaThreshold(s.AlphaThreshold),
		format.WithIFO(s.WritePalette),
	}
	switch t.Format {
	case FormatBDSUP:
		return open[picture.Writer](bdsup.Create(path, opts...))
	case FormatHDSUP:
		return open[picture.Writer](hdsup.Create(path, opts...))
	case FormatDVDSUP:
		return open[picture.Writer](dvdsup.Create(path, opts...))
	case FormatVobSub:
		return open[picture.Writer](vobsub.Create(path, opts...))
	case FormatXML:
		return open[picture.Writer](bdnxml.Create(path, opts...))
	}
	return nil, fmt.Errorf("subpic: %w: %v", picture.ErrUnsupported, t.Format)
}
