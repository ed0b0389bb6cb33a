package image16bit

import (
	"image"
	"image/color"
)

// RGB565 is a 16-bit color: 5 bits red, 6 bits green, 5 bits blue.
type RGB565 uint16

// Common colors.
const (
	Black RGB565 = 0x0000
	White RGB565 = 0xFFFF
)

// From packs 8-bit-per-channel values into an RGB565 color.
// The low bits of each channel are truncated.
func From(r, g, b uint8) RGB565 {
	return RGB565(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// RGBA converts the RGB565 color to standard 16-bit-per-channel RGBA.
// It implements color.Color.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	// Replicate the high bits into the low bits so full intensity maps to
	// 0xFFFF rather than 0xF800.
	r = uint32(c>>11) & 0x1F
	r = r<<3 | r>>2
	r |= r << 8
	g = uint32(c>>5) & 0x3F
	g = g<<2 | g>>4
	g |= g << 8
	b = uint32(c) & 0x1F
	b = b<<3 | b>>2
	b |= b << 8
	return r, g, b, 0xFFFF
}

// toRGB565 converts any color.Color to RGB565.
func toRGB565(c color.Color) color.Color {
	if c565, ok := c.(RGB565); ok {
		return c565
	}
	r, g, b, _ := c.RGBA()
	return From(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// RGB565Model converts colors to RGB565.
var RGB565Model = color.ModelFunc(toRGB565)

// Image is an RGB565 image stored as big-endian 16-bit pixels, row-major,
// top-to-bottom. Its byte layout matches the ST77xx memory-write data stream,
// so Pix can be sent to the controller without conversion.
type Image struct {
	Pix    []byte          // Pixel data, 2 bytes per pixel, big-endian
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// New creates a new RGB565 image with the specified bounds, filled with black.
func New(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	stride := w * 2
	return &Image{
		Pix:    make([]byte, stride*h),
		Stride: stride,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return RGB565Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the RGB565 color of the pixel at (x, y).
func (p *Image) RGB565At(x, y int) RGB565 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Black
	}
	o := p.PixOffset(x, y)
	return RGB565(uint16(p.Pix[o])<<8 | uint16(p.Pix[o+1]))
}

// Set sets the color of the pixel at (x, y).
// It implements the draw.Image interface.
func (p *Image) Set(x, y int, c color.Color) {
	p.SetRGB565(x, y, RGB565Model.Convert(c).(RGB565))
}

// SetRGB565 sets the RGB565 color of the pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *Image) SetRGB565(x, y int, c RGB565) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	o := p.PixOffset(x, y)
	p.Pix[o] = byte(c >> 8)
	p.Pix[o+1] = byte(c)
}

// Fill sets every pixel to c.
func (p *Image) Fill(c RGB565) {
	hi, lo := byte(c>>8), byte(c)
	for i := 0; i < len(p.Pix); i += 2 {
		p.Pix[i] = hi
		p.Pix[i+1] = lo
	}
}

// PixOffset returns the byte offset of the first byte of the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}
