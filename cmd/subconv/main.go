// Command subconv converts bitmap subtitle streams between the Blu-ray SUP,
// HD-DVD SUP, DVD SUP, VobSub and BDN XML formats.
//
// Usage:
//
//	subconv [flags] input [output]
//
// The output format is taken from -format, or from the extension of the
// output file. Without an output file the input name is used with the
// extension of the output format.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/gogpu/subpic"
	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/timecode"
)

// options holds the parsed command line.
type options struct {
	input, output string
	format        string
	info          bool
	verbose       bool
	trace         bool
	quiet         bool
	settings      []subpic.Option
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("subconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: subconv [flags] input [output]\n\nflags:\n")
		fs.PrintDefaults()
	}

	var (
		o          options
		resolution = fs.String("resolution", "keep", "target frame size: keep, pal, ntsc, 720p, 1080p, 1440x1080 or WxH")
		fpsSrc     = fs.String("fps-src", "", "source frame rate (default: from the stream)")
		fpsDst     = fs.String("fps-dst", "", "target frame rate (default: source rate)")
		delay      = fs.Float64("delay", 0, "delay added to all captions in milliseconds")
		minTime    = fs.Float64("min-time", 500, "minimum display time in milliseconds")
		noOverlap  = fs.Bool("no-fix-overlaps", false, "keep overlapping captions")
		filterName = fs.String("filter", filter.Bilinear.Name(), "scaling filter: "+strings.Join(filter.Names(), ", "))
		noCrop     = fs.Bool("no-crop", false, "keep transparent borders")
		forced     = fs.Bool("forced", false, "export forced captions only")
		lang       = fs.String("lang", "en", "language code of VobSub and BDN XML output")
		langIdx    = fs.Int("lang-index", 0, "VobSub stream to read")
		writePal   = fs.Bool("write-palette", false, "keep the palette of DVD sources and write an IFO file for DVD SUP output")
		bt601      = fs.Bool("bt601", false, "use the BT.601 YCbCr matrix instead of BT.709")
		alpha      = fs.Int("alpha", palette.DefaultThresholds.Alpha, "alpha threshold of visible pixels for DVD output")
		alphaCrop  = fs.Int("alpha-crop", 14, "alpha threshold of pixels kept by cropping")
		lumaHi     = fs.Int("luma-pattern", palette.DefaultThresholds.Luma[0], "luminance above which a color is the DVD pattern color")
		lumaLo     = fs.Int("luma-emphasis", palette.DefaultThresholds.Luma[1], "luminance above which a color is the first DVD emphasis color")
		workers    = fs.Int("workers", 1, "number of conversion goroutines")
	)
	fs.StringVar(&o.format, "format", "", "output format: bdsup, hdsup, dvdsup, vobsub or xml")
	fs.BoolVar(&o.info, "info", false, "list the captions of the input and exit")
	fs.BoolVar(&o.verbose, "v", false, "verbose logging")
	fs.BoolVar(&o.trace, "trace", false, "log every parsed segment")
	fs.BoolVar(&o.quiet, "q", false, "log errors only")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch fs.NArg() {
	case 1:
		o.input = fs.Arg(0)
	case 2:
		o.input, o.output = fs.Arg(0), fs.Arg(1)
	default:
		fs.Usage()
		return nil, errors.New("subconv: expected an input file and an optional output file")
	}

	res, err := subpic.ParseResolution(*resolution)
	if err != nil {
		return nil, err
	}
	var src, dst timecode.FrameRate
	if *fpsSrc != "" {
		if src, err = timecode.ParseFrameRate(*fpsSrc); err != nil {
			return nil, err
		}
	}
	if *fpsDst != "" {
		if dst, err = timecode.ParseFrameRate(*fpsDst); err != nil {
			return nil, err
		}
	}
	f, err := filter.ByName(*filterName)
	if err != nil {
		return nil, err
	}
	out, err := o.outputFormat()
	if err != nil {
		return nil, err
	}
	cs := palette.BT709
	if *bt601 {
		cs = palette.BT601
	}

	o.settings = []subpic.Option{
		subpic.WithOutputFormat(out),
		subpic.WithResolution(res),
		subpic.WithFrameRates(src, dst),
		subpic.WithDelay(msToTicks(*delay)),
		subpic.WithMinDisplayTime(msToTicks(*minTime)),
		subpic.WithFixOverlaps(!*noOverlap),
		subpic.WithFilter(f),
		subpic.WithCrop(!*noCrop),
		subpic.WithForcedOnly(*forced),
		subpic.WithLanguage(*lang),
		subpic.WithLanguageIndex(*langIdx),
		subpic.WithWritePalette(*writePal),
		subpic.WithColorSpace(cs),
		subpic.WithAlphaThreshold(*alpha),
		subpic.WithAlphaCropThreshold(*alphaCrop),
		subpic.WithLumaThresholds(*lumaHi, *lumaLo),
		subpic.WithWorkers(*workers),
	}
	return &o, nil
}

func msToTicks(ms float64) int64 {
	return int64(ms * timecode.Clock / 1000)
}

// outputFormat resolves the output format from -format or the extension of
// the output file.
func (o *options) outputFormat() (subpic.Format, error) {
	if o.format != "" {
		return subpic.ParseFormat(o.format)
	}
	if o.output != "" {
		switch strings.ToLower(filepath.Ext(o.output)) {
		case ".idx", ".sub":
			return subpic.FormatVobSub, nil
		case ".xml":
			return subpic.FormatXML, nil
		}
	}
	return subpic.FormatBDSUP, nil
}

// outputPath returns the output file name.
func (o *options) outputPath(f subpic.Format) string {
	if o.output != "" {
		return o.output
	}
	base := strings.TrimSuffix(o.input, filepath.Ext(o.input))
	out := base + f.Ext()
	if out == o.input {
		out = base + "_" + f.String() + f.Ext()
	}
	return out
}

func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case o.trace:
		level = subpic.LevelTrace
	case o.verbose:
		level = slog.LevelDebug
	case o.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	log := o.logger(stderr)
	s := subpic.NewSession(subpic.NewSettings(append(o.settings, subpic.WithLogger(log))...))

	in, err := s.Open(o.input)
	if err != nil {
		return err
	}
	defer in.Close()

	if o.info {
		return printInfo(stdout, in)
	}

	target := s.Target(in)
	path := o.outputPath(target.Format)
	w, err := s.Create(path, in)
	if err != nil {
		return err
	}
	p := newProgress(w, stderr, len(in.Pictures()))
	rep, err := s.Convert(ctx, in, p)
	p.done()
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d captions written (%s %v at %v fps), %d skipped, %d blanked\n",
		path, rep.Written, target.Format, target.Resolution, target.FrameRate, rep.Skipped, rep.Blanked)
	return nil
}

// printInfo lists the captions of a stream.
func printInfo(w io.Writer, in *subpic.Stream) error {
	fmt.Fprintf(w, "%s: %v, %v at %v fps, %d captions\n",
		in.Path, in.Format, in.FrameSize(), in.FrameRate(), len(in.Pictures()))
	for i, p := range in.Pictures() {
		forced := ""
		if p.Forced {
			forced = " forced"
		}
		_, err := fmt.Fprintf(w, "%4d  %s --> %s  %dx%d at %d,%d%s\n", i+1,
			timecode.PTSToTimeStr(p.Start), timecode.PTSToTimeStr(p.End),
			p.Image.Width, p.Image.Height, p.Image.X, p.Image.Y, forced)
		if err != nil {
			return err
		}
	}
	return nil
}
