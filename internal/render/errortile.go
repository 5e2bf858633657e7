package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const errorTileSize = 256

var errorTilePNG []byte

func init() {
	errorTilePNG = buildErrorTile()
}

// ErrorTile returns the fixed diagonal-stripe placeholder tile emitted when
// a build fails with a non-cacheable error (spec.md §4.6/§6). It is built
// once at package init and a fresh copy is handed out on every call, since
// the caller may append the bytes directly onto an HTTP response buffer.
func ErrorTile() []byte {
	out := make([]byte, len(errorTilePNG))
	copy(out, errorTilePNG)
	return out
}

var transparentTilePNG []byte

func init() {
	transparentTilePNG = buildTransparentTile()
}

// TransparentTile returns the fixed fully-transparent placeholder tile
// served (and cached) when a build completes with no data to show
// (spec.md §7's NoData result), rather than an empty byte slice. A fresh
// copy is handed out on every call for the same append-safety reason as
// ErrorTile.
func TransparentTile() []byte {
	out := make([]byte, len(transparentTilePNG))
	copy(out, transparentTilePNG)
	return out
}

func buildTransparentTile() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, errorTileSize, errorTileSize))
	// Zero-value NRGBA pixels are already fully transparent; nothing to draw.

	var buf bytes.Buffer
	// Ignored: encoding a fixed in-memory image never fails.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func buildErrorTile() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, errorTileSize, errorTileSize))
	stripe := color.NRGBA{R: 200, G: 60, B: 60, A: 255}
	bg := color.NRGBA{R: 40, G: 40, B: 40, A: 255}
	const stripeWidth = 16

	for y := 0; y < errorTileSize; y++ {
		for x := 0; x < errorTileSize; x++ {
			if ((x+y)/stripeWidth)%2 == 0 {
				img.SetNRGBA(x, y, stripe)
			} else {
				img.SetNRGBA(x, y, bg)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(errorTileSize/2-20, errorTileSize/2),
	}
	d.DrawString("ERROR")

	var buf bytes.Buffer
	// Ignored: encoding a fixed in-memory image never fails.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
