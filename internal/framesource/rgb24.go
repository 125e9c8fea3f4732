package framesource

import (
	"image"
	"image/color"
)

// RGB24 is a packed 8-bit RGB frame as ffmpeg emits it. A source may refill
// Pix on its next Read, so a frame kept past that must go through Materialize.
type RGB24 struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func newRGB24(pix []byte, width, height int) *RGB24 {
	return &RGB24{Pix: pix, Stride: width * 3, Rect: image.Rect(0, 0, width, height)}
}

func (p *RGB24) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB24) Bounds() image.Rectangle { return p.Rect }

func (p *RGB24) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xff}
}

// ToRGBA copies the frame into a new RGBA image
func (p *RGB24) ToRGBA() *image.RGBA {
	return rgb24ToRGBA(p.Pix, p.Rect.Dx(), p.Rect.Dy())
}

// Materialize detaches img from any buffer its source reuses. Other images are returned as is.
func Materialize(img image.Image) image.Image {
	if frame, ok := img.(*RGB24); ok {
		return frame.ToRGBA()
	}
	return img
}
