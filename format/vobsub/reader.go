package vobsub

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/logging"
	"github.com/gogpu/subpic/internal/spu"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// maxPacks limits the number of packs searched for the rest of a unit.
const maxPacks = 64

// fallbackDuration is the display time of a last caption without a stop
// command.
const fallbackDuration = 2 * timecode.Clock

// Reader parses one language track of a VobSub SUB/IDX pair.
type Reader struct {
	src    *picture.Source
	cfg    format.Config
	log    *slog.Logger
	index  *Index
	stream *Stream
	pics   []*picture.SubPicture
}

// basePath strips a .idx or .sub extension.
func basePath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".idx", ".sub":
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}

// Open opens the IDX and SUB files for path, which may name either of them.
// The track is selected with [format.WithLanguageIndex].
func Open(path string, opts ...format.Option) (*Reader, error) {
	cfg := format.NewConfig(opts...)
	base := basePath(path)
	f, err := os.Open(filepath.Clean(base + ".idx"))
	if err != nil {
		return nil, fmt.Errorf("vobsub: open idx: %w", err)
	}
	idx, err := ParseIndex(f, cfg.ColorSpace)
	_ = f.Close()
	if err != nil {
		return nil, err
	}
	src, err := picture.OpenSource(base + ".sub")
	if err != nil {
		return nil, err
	}
	if cfg.Preload {
		mem, err := src.Preload()
		_ = src.Close()
		if err != nil {
			return nil, fmt.Errorf("vobsub: load sub: %w", err)
		}
		src = mem
	}
	r, err := NewReader(src, idx, opts...)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads the captions listed in idx from the SUB stream held by
// src and takes ownership of src.
func NewReader(src *picture.Source, idx *Index, opts ...format.Option) (*Reader, error) {
	cfg := format.NewConfig(opts...)
	r := &Reader{src: src, cfg: cfg, log: cfg.Logger, index: idx}
	s, ok := idx.Stream(cfg.LanguageIndex)
	if !ok {
		return nil, fmt.Errorf("vobsub: %w: no stream with index %d", picture.ErrUnsupported, cfg.LanguageIndex)
	}
	r.stream = s
	for i, e := range s.Entries {
		if err := r.add(e); err != nil {
			r.log.Warn("vobsub: skipping caption", "index", i, "filepos", e.FilePos, "err", err)
		}
	}
	if n := len(r.pics); n > 0 && r.pics[n-1].End == r.pics[n-1].Start {
		last := r.pics[n-1]
		last.End = last.Start + fallbackDuration
		r.log.Warn("vobsub: last caption has no end time", "start", timecode.PTSToTimeStr(last.Start))
	}
	return r, nil
}

// Pictures returns the captions of the selected track in presentation
// order.
func (r *Reader) Pictures() []*picture.SubPicture { return r.pics }

// Index returns the parsed IDX file.
func (r *Reader) Index() *Index { return r.index }

// Languages returns the language codes of all tracks, ordered by index.
func (r *Reader) Languages() []string {
	out := make([]string, len(r.index.Streams))
	for i, s := range r.index.Streams {
		out[i] = s.Language
	}
	return out
}

// Close closes the underlying source.
func (r *Reader) Close() error { return r.src.Close() }

// collect gathers the payload fragments of the unit starting in the pack
// at pos.
func (r *Reader) collect(pos int64) ([]picture.Fragment, int64, error) {
	id := substreamBase + r.stream.Index
	var frags []picture.Fragment
	var have, size int64
	for n := 0; n < maxPacks; n++ {
		off := pos + int64(n)*packSize
		if off >= r.src.Size() {
			break
		}
		pack, err := r.src.Bytes(off, min(packSize, r.src.Size()-off))
		if err != nil {
			return nil, 0, err
		}
		pls, err := parsePack(pack, off, id)
		if err != nil && len(pls) == 0 {
			return nil, 0, fmt.Errorf("pack at %d: %w", off, err)
		}
		for _, p := range pls {
			if size == 0 {
				if p.size < spu.HeaderSize {
					return nil, 0, fmt.Errorf("%w: unit header at %d", picture.ErrTruncated, p.offset)
				}
				b, err := r.src.Bytes(p.offset, 2)
				if err != nil {
					return nil, 0, err
				}
				size = int64(b[0])<<8 | int64(b[1])
			}
			take := min(p.size, size-have)
			frags = append(frags, picture.Fragment{Offset: p.offset, Size: take})
			if have += take; have == size {
				return frags, size, nil
			}
		}
	}
	return nil, 0, fmt.Errorf("%w: unit of %d bytes, found %d", picture.ErrTruncated, size, have)
}

func (r *Reader) add(e Entry) error {
	frags, size, err := r.collect(e.FilePos)
	if err != nil {
		return err
	}
	parts, err := r.src.ReadFragments(frags)
	if err != nil {
		return err
	}
	u, err := spu.Parse(join(parts, size))
	if err != nil {
		return err
	}
	logging.Trace(r.log, "vobsub: unit", "filepos", e.FilePos, "pts", timecode.PTSToTimeStr(e.PTS),
		"size", size, "fragments", len(frags))

	pic := u.Picture(picture.KindVobSub, e.PTS)
	pic.Width, pic.Height = r.index.Width, r.index.Height
	pic.SPU.StreamID = substreamBase + r.stream.Index
	pic.Objects = []picture.ImageObject{{
		BufferSize: size,
		Width:      pic.Image.Width,
		Height:     pic.Image.Height,
		X:          pic.Image.X,
		Y:          pic.Image.Y,
		Fragments:  frags,
	}}
	if n := len(r.pics); n > 0 {
		prev := r.pics[n-1]
		if pic.Start < prev.Start {
			r.log.Warn("vobsub: captions out of order", "start", timecode.PTSToTimeStr(pic.Start))
		} else if prev.End == prev.Start {
			prev.End = pic.Start
		}
	}
	if err := pic.Validate(); err != nil {
		return err
	}
	r.pics = append(r.pics, pic)
	return nil
}

func join(parts [][]byte, size int64) []byte {
	if len(parts) == 1 {
		return parts[0]
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Decode reads and decodes the image of pic. The palette has four entries
// taken from the IDX palette.
func (r *Reader) Decode(pic *picture.SubPicture) (*bitmap.Bitmap, *palette.Palette, error) {
	if pic.SPU == nil || len(pic.Objects) != 1 {
		return nil, nil, fmt.Errorf("vobsub: %w: not a VobSub caption", picture.ErrUnsupported)
	}
	obj := &pic.Objects[0]
	parts, err := r.src.ReadFragments(obj.Fragments)
	if err != nil {
		return nil, nil, fmt.Errorf("vobsub: %w", err)
	}
	bm, pal, st, err := spu.Decode(join(parts, obj.BufferSize), r.index.Palette)
	if err != nil {
		return nil, nil, fmt.Errorf("vobsub: %w", err)
	}
	if st.Clipped > 0 || st.Truncated {
		r.log.Warn("vobsub: irregular RLE data", "start", timecode.PTSToTimeStr(pic.Start),
			"clipped", st.Clipped, "truncated", st.Truncated)
	}
	pic.WasDecoded = true
	return bm, pal, nil
}
