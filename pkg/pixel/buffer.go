// Package pixel provides the raw RGBA buffer every metric works on.
package pixel

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-quality/pkg/types"
)

// Buffer is a row-major RGBA byte sequence of Width*Height*4 bytes.
// Alpha is carried but ignored by every metric. Metrics never write to Pix.
type Buffer struct {
	Pix    []byte
	Width  int
	Height int
}

// New wraps pix as a Buffer after checking its length
func New(pix []byte, width, height int) (Buffer, error) {
	if width <= 0 || height <= 0 {
		return Buffer{}, fmt.Errorf("%w: %dx%d", types.ErrInvalidDimensions, width, height)
	}
	if len(pix) != width*height*4 {
		return Buffer{}, fmt.Errorf("%w: have %d bytes, want %d for %dx%d",
			types.ErrInvalidDimensions, len(pix), width*height*4, width, height)
	}
	return Buffer{Pix: pix, Width: width, Height: height}, nil
}

// FromImage converts any image into a tightly packed non-premultiplied buffer
func FromImage(img image.Image) Buffer {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return Buffer{Pix: nrgba.Pix, Width: b.Dx(), Height: b.Dy()}
}

// Image exposes the buffer as an *image.NRGBA sharing the same bytes
func (b Buffer) Image() *image.NRGBA {
	return &image.NRGBA{Pix: b.Pix, Stride: b.Width * 4, Rect: image.Rect(0, 0, b.Width, b.Height)}
}

// Len returns the number of pixels
func (b Buffer) Len() int {
	return len(b.Pix) / 4
}

// Empty reports whether the buffer holds no pixels
func (b Buffer) Empty() bool {
	return b.Width <= 0 || b.Height <= 0 || len(b.Pix) < 4
}

// RGB returns the colour channels of pixel i
func (b Buffer) RGB(i int) (r, g, bl uint8) {
	o := i * 4
	return b.Pix[o], b.Pix[o+1], b.Pix[o+2]
}

// Luma returns the (R+G+B)/3 brightness of pixel i in 0-255 units
func (b Buffer) Luma(i int) float64 {
	o := i * 4
	return (float64(b.Pix[o]) + float64(b.Pix[o+1]) + float64(b.Pix[o+2])) / 3
}

// LumaAt returns the luma at (x, y)
func (b Buffer) LumaAt(x, y int) float64 {
	return b.Luma(y*b.Width + x)
}

// LumaPlane computes the luma of every pixel once, for passes that visit
// each pixel several times
func (b Buffer) LumaPlane() []float64 {
	n := b.Len()
	plane := make([]float64, n)
	for i := 0; i < n; i++ {
		plane[i] = b.Luma(i)
	}
	return plane
}

// Crop copies the given region into a new buffer. The rectangle is clamped
// to the buffer bounds first, so the result may be empty.
func (b Buffer) Crop(r types.Rectangle) Buffer {
	r = r.Clamp(b.Width, b.Height)
	if r.Empty() {
		return Buffer{}
	}
	out := make([]byte, r.Width*r.Height*4)
	rowLen := r.Width * 4
	for y := 0; y < r.Height; y++ {
		src := ((r.Y+y)*b.Width + r.X) * 4
		copy(out[y*rowLen:(y+1)*rowLen], b.Pix[src:src+rowLen])
	}
	return Buffer{Pix: out, Width: r.Width, Height: r.Height}
}
