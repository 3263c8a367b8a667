// Package format holds the configuration shared by the container readers
// and writers in its sub-packages.
//
// Every reader and writer accepts a list of [Option] values:
//
//	r, err := bdsup.Open("movie.sup", format.WithLogger(log))
//	w, err := vobsub.Create("movie", format.WithPalette(dvdPal), format.WithLanguage("de"))
//
// Options a container does not use are ignored.
package format

import (
	"log/slog"

	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/internal/logging"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/timecode"
)

// Option configures a reader or writer.
type Option func(*Config)

// Config is the resolved configuration of a reader or writer.
type Config struct {
	Logger     *slog.Logger
	ColorSpace palette.ColorSpace

	// FrameRate is the video frame rate. Readers of formats that store it
	// overwrite the value with the one found in the stream.
	FrameRate timecode.FrameRate

	// Palette is the 16 color DVD palette used by DVD based writers, and
	// by DVD SUP readers when no IFO file is found.
	Palette *palette.Palette

	// Language is the ISO 639-1 code written to VobSub and BDN files.
	Language string

	// LanguageIndex selects the VobSub stream to read.
	LanguageIndex int

	// Width and Height are the video frame size written by writers of
	// formats that store it.
	Width, Height int

	// AlphaThreshold is the minimum alpha of a visible pixel.
	AlphaThreshold int

	// WriteIFO makes the DVD SUP writer emit a companion IFO file.
	WriteIFO bool

	// Filter resamples images whose size differs from the size the
	// container declares for them.
	Filter filter.Filter

	// Preload makes readers that open their own data files read them into
	// memory, so captions can be decoded concurrently without file I/O.
	Preload bool
}

// NewConfig applies opts to the defaults.
func NewConfig(opts ...Option) Config {
	c := Config{
		ColorSpace:     palette.BT709,
		FrameRate:      timecode.FPS23976,
		Language:       "en",
		Width:          1920,
		Height:         1080,
		AlphaThreshold: 80,
	}
	for _, o := range opts {
		o(&c)
	}
	c.Logger = logging.OrNop(c.Logger)
	if c.Filter == nil {
		c.Filter = filter.Bilinear
	}
	if c.Palette == nil {
		c.Palette = palette.DefaultDVD(c.ColorSpace)
	}
	return c
}

// WithLogger sets the logger for warnings about malformed captions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithColorSpace selects the YCbCr matrix.
func WithColorSpace(cs palette.ColorSpace) Option {
	return func(c *Config) { c.ColorSpace = cs }
}

// WithFrameRate sets the video frame rate.
func WithFrameRate(f timecode.FrameRate) Option {
	return func(c *Config) { c.FrameRate = f }
}

// WithPalette sets the 16 color DVD palette.
func WithPalette(p *palette.Palette) Option {
	return func(c *Config) { c.Palette = p }
}

// WithLanguage sets the language code written by VobSub and BDN writers.
func WithLanguage(code string) Option {
	return func(c *Config) { c.Language = code }
}

// WithLanguageIndex selects the VobSub stream to read.
func WithLanguageIndex(i int) Option {
	return func(c *Config) { c.LanguageIndex = i }
}

// WithResolution sets the video frame size written to the output.
func WithResolution(w, h int) Option {
	return func(c *Config) { c.Width, c.Height = w, h }
}

// WithAlphaThreshold sets the minimum alpha of a visible pixel.
func WithAlphaThreshold(a int) Option {
	return func(c *Config) { c.AlphaThreshold = a }
}

// WithFilter sets the filter used to resample images to their declared size.
func WithFilter(f filter.Filter) Option {
	return func(c *Config) { c.Filter = f }
}

// WithIFO makes the DVD SUP writer emit an IFO file next to the SUP file.
func WithIFO(on bool) Option {
	return func(c *Config) { c.WriteIFO = on }
}

// WithPreload makes readers hold their data files in memory.
func WithPreload(on bool) Option {
	return func(c *Config) { c.Preload = on }
}
