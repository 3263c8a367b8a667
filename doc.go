// Package subpic converts bitmap subtitle streams between the Blu-ray SUP,
// HD-DVD SUP, DVD SUP, VobSub and BDN XML containers.
//
// # Overview
//
// A conversion reads a stream, decodes the run-length encoded image of each
// caption, fits it to the output (erase patches, cropping, scaling, palette
// reduction) and encodes it again:
//
//	s := subpic.NewSession(subpic.NewSettings(
//	    subpic.WithOutputFormat(subpic.FormatVobSub),
//	    subpic.WithLanguage("de"),
//	))
//	in, err := s.Open("movie.sup")
//	if err != nil {
//	    return err
//	}
//	defer in.Close()
//
//	out, err := s.Create("movie.idx", in)
//	if err != nil {
//	    return err
//	}
//	rep, err := s.Convert(ctx, in, out)
//	if cerr := out.Close(); err == nil {
//	    err = cerr
//	}
//
// The steps are also available one by one: [ParseSource],
// [Session.DecodeSubPicture], [Session.Transform] and
// [Session.EncodeAndWrite].
//
// # Packages
//
// The containers live in format/bdsup, format/hdsup, format/dvdsup,
// format/vobsub and format/bdnxml and can be used without this package.
// The caption model and error types are in picture, palettes and the
// YCbCr matrices in palette, indexed rasters in bitmap, resampling filters
// in filter and timestamp formatting in timecode.
//
// # Timestamps
//
// All timestamps are ticks of the 90 kHz MPEG clock. Frame rate conversion
// keeps frame numbers: converting 23.976 fps material to 25 fps plays it
// faster, as a PAL transfer does.
//
// # Errors
//
// Structural problems that make a stream unreadable are returned as
// *picture.ParseError. A caption with a corrupt image is logged and replaced
// by a transparent one, so the timeline of the output stays complete.
// Palettes too large for the target are always reduced, never rejected.
//
// # Logging
//
// subpic logs through log/slog and is silent by default. See [SetLogger]
// and [WithLogger].
package subpic
