package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
)

// progress wraps the output writer and draws a progress bar on stderr
// while captions are written. Nothing is drawn when stderr is not a
// terminal.
type progress struct {
	picture.Writer
	out   io.Writer
	total int
	n     int
	width int
}

func newProgress(w picture.Writer, out io.Writer, total int) *progress {
	p := &progress{Writer: w, out: out, total: total}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.width = 40
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 30 {
			p.width = min(cols-30, 60)
		}
	}
	return p
}

// WritePicture writes one caption and advances the bar.
func (p *progress) WritePicture(pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error {
	if err := p.Writer.WritePicture(pic, bm, pal); err != nil {
		return err
	}
	p.n++
	p.draw()
	return nil
}

func (p *progress) draw() {
	if p.width == 0 || p.total == 0 {
		return
	}
	filled := p.width * p.n / p.total
	fmt.Fprintf(p.out, "\r[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat(" ", p.width-filled), p.n, p.total)
}

// done ends the progress line.
func (p *progress) done() {
	if p.width > 0 && p.n > 0 {
		fmt.Fprintln(p.out)
	}
}
