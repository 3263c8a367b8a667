package subpic

import (
	"log/slog"

	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/internal/logging"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/timecode"
)

// Settings is the configuration of a conversion session. A session takes
// a copy when it is created; later changes to the value it came from have
// no effect on the session.
//
// Use [NewSettings] with options rather than a zero Settings:
//
//	s := subpic.NewSettings(
//	    subpic.WithOutputFormat(subpic.FormatVobSub),
//	    subpic.WithResolution(subpic.PAL),
//	    subpic.WithFrameRates(timecode.FPS23976, timecode.FPS25),
//	)
type Settings struct {
	// LanguageIndex selects the VobSub stream to read.
	LanguageIndex int

	// Language is the language code written to VobSub and BDN XML output.
	Language string

	// ForcedOnly drops every caption that is not flagged forced.
	ForcedOnly bool

	// WritePalette makes DVD targets carry the palette of a DVD source
	// instead of DVDPalette, and makes the DVD SUP writer emit an IFO file.
	WritePalette bool

	// OutputFormat is the container written by [Session.Convert] callers
	// that go through [Create].
	OutputFormat Format

	ColorSpace palette.ColorSpace

	// AlphaThreshold is the minimum alpha of a visible color when reducing
	// to four DVD colors.
	AlphaThreshold int

	// AlphaCropThreshold is the minimum alpha of a pixel kept by cropping.
	AlphaCropThreshold int

	// LumaThresholds split visible colors into the pattern and emphasis
	// slots of a DVD target.
	LumaThresholds [2]int

	// Resolution is the target frame size. The zero value keeps the source
	// size, except for DVD targets, which pick PAL or NTSC.
	Resolution Resolution

	// SourceFPS is the frame rate of the source. Zero means the rate stored
	// in the stream, or a guess from its frame height.
	SourceFPS timecode.FrameRate

	// TargetFPS is the output frame rate. Zero keeps the source rate.
	TargetFPS timecode.FrameRate

	// Delay is added to every timestamp, in 90 kHz ticks. It may be
	// negative.
	Delay int64

	// MinDisplayTime is the shortest display time in 90 kHz ticks. Shorter
	// captions are extended if the next caption leaves room.
	MinDisplayTime int64

	// FixOverlaps shortens captions that would still be visible when the
	// next one starts.
	FixOverlaps bool

	// Filter resamples captions when the frame size changes.
	Filter filter.Filter

	// Crop trims transparent borders from each caption.
	Crop bool

	// Workers is the number of goroutines decoding and encoding captions.
	// Values below 2 convert on the calling goroutine.
	Workers int

	// DVDPalette is the 16 color palette of DVD targets, and of DVD SUP
	// sources without an IFO file.
	DVDPalette *palette.Palette

	Logger *slog.Logger
}

// Option configures [Settings].
type Option func(*Settings)

// NewSettings returns the default settings with opts applied.
func NewSettings(opts ...Option) Settings {
	s := Settings{
		Language:           "en",
		OutputFormat:       FormatBDSUP,
		ColorSpace:         palette.BT709,
		AlphaThreshold:     palette.DefaultThresholds.Alpha,
		AlphaCropThreshold: 14,
		LumaThresholds:     palette.DefaultThresholds.Luma,
		MinDisplayTime:     timecode.Clock / 2,
		FixOverlaps:        true,
		Filter:             filter.Bilinear,
		Crop:               true,
		Workers:            1,
	}
	for _, o := range opts {
		o(&s)
	}
	if s.Filter == nil {
		s.Filter = filter.Bilinear
	}
	if s.DVDPalette == nil {
		s.DVDPalette = palette.DefaultDVD(s.ColorSpace)
	}
	return s
}

// logger returns the configured logger, or the package logger.
func (s *Settings) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.OrNop(Logger())
}

// thresholds returns the parameters of four color reduction.
func (s *Settings) thresholds() palette.Thresholds {
	return palette.Thresholds{Alpha: s.AlphaThreshold, Luma: s.LumaThresholds}
}

// WithLanguageIndex selects the VobSub stream to read.
func WithLanguageIndex(i int) Option {
	return func(s *Settings) { s.LanguageIndex = i }
}

// WithLanguage sets the language written to VobSub and BDN XML output.
func WithLanguage(code string) Option {
	return func(s *Settings) { s.Language = code }
}

// WithForcedOnly keeps only forced captions.
func WithForcedOnly(on bool) Option {
	return func(s *Settings) { s.ForcedOnly = on }
}

// WithWritePalette keeps the palette of a DVD source in DVD output and
// writes an IFO file next to DVD SUP output.
func WithWritePalette(on bool) Option {
	return func(s *Settings) { s.WritePalette = on }
}

// WithOutputFormat sets the output container.
func WithOutputFormat(f Format) Option {
	return func(s *Settings) { s.OutputFormat = f }
}

// WithColorSpace selects the YCbCr matrix.
func WithColorSpace(cs palette.ColorSpace) Option {
	return func(s *Settings) { s.ColorSpace = cs }
}

// WithAlphaThreshold sets the minimum alpha of a visible color.
func WithAlphaThreshold(a int) Option {
	return func(s *Settings) { s.AlphaThreshold = a }
}

// WithAlphaCropThreshold sets the minimum alpha of a pixel kept by cropping.
func WithAlphaCropThreshold(a int) Option {
	return func(s *Settings) { s.AlphaCropThreshold = a }
}

// WithLumaThresholds sets the luminance limits of the pattern and
// emphasis-1 slots.
func WithLumaThresholds(pattern, emphasis int) Option {
	return func(s *Settings) { s.LumaThresholds = [2]int{pattern, emphasis} }
}

// WithResolution sets the target frame size.
func WithResolution(r Resolution) Option {
	return func(s *Settings) { s.Resolution = r }
}

// WithFrameRates sets the source and target frame rates. Zero values keep
// the stream's own rate.
func WithFrameRates(src, dst timecode.FrameRate) Option {
	return func(s *Settings) { s.SourceFPS, s.TargetFPS = src, dst }
}

// WithDelay shifts every caption by d ticks of the 90 kHz clock.
func WithDelay(d int64) Option {
	return func(s *Settings) { s.Delay = d }
}

// WithMinDisplayTime sets the shortest display time in 90 kHz ticks.
func WithMinDisplayTime(d int64) Option {
	return func(s *Settings) { s.MinDisplayTime = d }
}

// WithFixOverlaps enables or disables overlap fixing.
func WithFixOverlaps(on bool) Option {
	return func(s *Settings) { s.FixOverlaps = on }
}

// WithFilter sets the resampling filter.
func WithFilter(f filter.Filter) Option {
	return func(s *Settings) { s.Filter = f }
}

// WithCrop enables or disables cropping of transparent borders.
func WithCrop(on bool) Option {
	return func(s *Settings) { s.Crop = on }
}

// WithWorkers sets the number of conversion goroutines.
func WithWorkers(n int) Option {
	return func(s *Settings) { s.Workers = n }
}

// WithDVDPalette sets the 16 color palette of DVD targets.
func WithDVDPalette(p *palette.Palette) Option {
	return func(s *Settings) { s.DVDPalette = p }
}

// WithLogger sets the logger of the session.
func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) { s.Logger = l }
}
