package picture

import (
	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/palette"
)

// Reader is implemented by the container parsers.
type Reader interface {
	// Pictures returns the captions in presentation order.
	Pictures() []*SubPicture

	// Decode materializes the image of a caption.
	Decode(p *SubPicture) (*bitmap.Bitmap, *palette.Palette, error)

	Close() error
}

// Writer is implemented by the container writers. Captions must be written
// in presentation order.
type Writer interface {
	WritePicture(p *SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error
	Close() error
}
