package st77xx

import (
	"image"
	"image/draw"
	"math"

	"periph.io/x/devices/v3/st77xx/image16bit"
	"periph.io/x/devices/v3/st77xx/image1bit"
)

// surface is the pixel sink the raster primitives draw through. The wire
// implementation re-issues an addressing window per call; the buffered
// implementations mutate memory until Show streams the frame. All
// coordinates are pre-clipped by the primitives; spans and rects are
// inclusive.
type surface interface {
	setPixel(x, y int, c image16bit.RGB565) error
	fillSpan(x0, x1, y int, c image16bit.RGB565) error
	fillVSpan(x, y0, y1 int, c image16bit.RGB565) error
	fillRect(x0, y0, x1, y1 int, c image16bit.RGB565) error
	fill(c image16bit.RGB565) error
}

// wireSurface streams every pixel and span straight to the controller.
type wireSurface struct {
	d *Dev
}

func (s *wireSurface) setPixel(x, y int, c image16bit.RGB565) error {
	d := s.d
	return d.tx(func() error {
		if err := d.setWindow(x, y, x, y); err != nil {
			return err
		}
		return d.sendData([]byte{byte(c >> 8), byte(c)})
	})
}

func (s *wireSurface) fillSpan(x0, x1, y int, c image16bit.RGB565) error {
	d := s.d
	return d.tx(func() error {
		if err := d.setWindow(x0, y, x1, y); err != nil {
			return err
		}
		return d.sendData(d.colorRow(c, x1-x0+1))
	})
}

func (s *wireSurface) fillVSpan(x, y0, y1 int, c image16bit.RGB565) error {
	d := s.d
	return d.tx(func() error {
		if err := d.setWindow(x, y0, x, y1); err != nil {
			return err
		}
		return d.sendData(d.colorRow(c, y1-y0+1))
	})
}

func (s *wireSurface) fillRect(x0, y0, x1, y1 int, c image16bit.RGB565) error {
	d := s.d
	return d.tx(func() error {
		if err := d.setWindow(x0, y0, x1, y1); err != nil {
			return err
		}
		row := d.colorRow(c, x1-x0+1)
		for y := y0; y <= y1; y++ {
			if err := d.sendData(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *wireSurface) fill(c image16bit.RGB565) error {
	return s.d.fillScreenWire(c)
}

// fbSurface composes into an RGB565 framebuffer.
type fbSurface struct {
	fb *image16bit.Image
}

func (s *fbSurface) setPixel(x, y int, c image16bit.RGB565) error {
	s.fb.SetRGB565(x, y, c)
	return nil
}

func (s *fbSurface) fillSpan(x0, x1, y int, c image16bit.RGB565) error {
	hi, lo := byte(c>>8), byte(c)
	o := s.fb.PixOffset(x0, y)
	for i := 0; i <= x1-x0; i++ {
		s.fb.Pix[o] = hi
		s.fb.Pix[o+1] = lo
		o += 2
	}
	return nil
}

func (s *fbSurface) fillVSpan(x, y0, y1 int, c image16bit.RGB565) error {
	for y := y0; y <= y1; y++ {
		s.fb.SetRGB565(x, y, c)
	}
	return nil
}

func (s *fbSurface) fillRect(x0, y0, x1, y1 int, c image16bit.RGB565) error {
	for y := y0; y <= y1; y++ {
		if err := s.fillSpan(x0, x1, y, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *fbSurface) fill(c image16bit.RGB565) error {
	s.fb.Fill(c)
	return nil
}

// monoSurface composes into a 1-bit framebuffer. Colors at or above half
// intensity map to lit pixels.
type monoSurface struct {
	img *image1bit.HorizontalMSB
}

func monoBit(c image16bit.RGB565) image1bit.Bit {
	return image1bit.BitModel.Convert(c).(image1bit.Bit)
}

func (s *monoSurface) setPixel(x, y int, c image16bit.RGB565) error {
	s.img.SetBit(x, y, monoBit(c))
	return nil
}

func (s *monoSurface) fillSpan(x0, x1, y int, c image16bit.RGB565) error {
	b := monoBit(c)
	for x := x0; x <= x1; x++ {
		s.img.SetBit(x, y, b)
	}
	return nil
}

func (s *monoSurface) fillVSpan(x, y0, y1 int, c image16bit.RGB565) error {
	b := monoBit(c)
	for y := y0; y <= y1; y++ {
		s.img.SetBit(x, y, b)
	}
	return nil
}

func (s *monoSurface) fillRect(x0, y0, x1, y1 int, c image16bit.RGB565) error {
	for y := y0; y <= y1; y++ {
		if err := s.fillSpan(x0, x1, y, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *monoSurface) fill(c image16bit.RGB565) error {
	var v byte
	if monoBit(c) {
		v = 0xFF
	}
	for i := range s.img.Pix {
		s.img.Pix[i] = v
	}
	return nil
}

// SetPixel sets one pixel. Out-of-range coordinates are a silent no-op, not
// an error.
func (d *Dev) SetPixel(x, y int, c image16bit.RGB565) error {
	if d.halted {
		return errHalted
	}
	if !(image.Point{X: x, Y: y}.In(d.rect)) {
		return nil
	}
	return d.surf.setPixel(x, y, c)
}

// HLine fills the horizontal span from (x0,y) to (x1,y) inclusive. The span
// is clamped to the panel; a span fully outside is a silent no-op.
func (d *Dev) HLine(x0, x1, y int, c image16bit.RGB565) error {
	if d.halted {
		return errHalted
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y < 0 || y >= d.rect.Max.Y || x1 < 0 || x0 >= d.rect.Max.X {
		return nil
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 >= d.rect.Max.X {
		x1 = d.rect.Max.X - 1
	}
	return d.surf.fillSpan(x0, x1, y, c)
}

// VLine fills the vertical span from (x,y0) to (x,y1) inclusive, clamped to
// the panel.
func (d *Dev) VLine(x, y0, y1 int, c image16bit.RGB565) error {
	if d.halted {
		return errHalted
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if x < 0 || x >= d.rect.Max.X || y1 < 0 || y0 >= d.rect.Max.Y {
		return nil
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 >= d.rect.Max.Y {
		y1 = d.rect.Max.Y - 1
	}
	return d.surf.fillVSpan(x, y0, y1, c)
}

// Line draws a line between two points using Bresenham's algorithm.
// Horizontal and vertical lines short-circuit to span fills, which cost one
// window set instead of one per pixel.
func (d *Dev) Line(x0, y0, x1, y1 int, c image16bit.RGB565) error {
	if y0 == y1 {
		return d.HLine(x0, x1, y0, c)
	}
	if x0 == x1 {
		return d.VLine(x0, y0, y1, c)
	}

	dx := abs(x1 - x0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	dy := -abs(y1 - y0)
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if err := d.SetPixel(x0, y0, c); err != nil {
			return err
		}
		if x0 == x1 && y0 == y1 {
			return nil
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Rect draws a w×h rectangle with its top-left corner at (x,y), outlined or
// filled. Empty rectangles are a silent no-op.
func (d *Dev) Rect(x, y, w, h int, c image16bit.RGB565, fill bool) error {
	if d.halted {
		return errHalted
	}
	if w <= 0 || h <= 0 {
		return nil
	}
	x1 := x + w - 1
	y1 := y + h - 1
	if !fill {
		if err := d.HLine(x, x1, y, c); err != nil {
			return err
		}
		if err := d.HLine(x, x1, y1, c); err != nil {
			return err
		}
		if err := d.VLine(x, y, y1, c); err != nil {
			return err
		}
		return d.VLine(x1, y, y1, c)
	}
	if x1 < 0 || y1 < 0 || x >= d.rect.Max.X || y >= d.rect.Max.Y {
		return nil
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x1 >= d.rect.Max.X {
		x1 = d.rect.Max.X - 1
	}
	if y1 >= d.rect.Max.Y {
		y1 = d.rect.Max.Y - 1
	}
	return d.surf.fillRect(x, y, x1, y1, c)
}

// Fill sets the whole panel to one color.
func (d *Dev) Fill(c image16bit.RGB565) error {
	if d.halted {
		return errHalted
	}
	return d.surf.fill(c)
}

// Circle draws a circle centered at (cx,cy) using the midpoint algorithm.
// Filled mode draws horizontal spans between the symmetric point pairs of
// each step; outline mode plots eight symmetric points per step. Radius 0
// plots a single pixel.
func (d *Dev) Circle(cx, cy, r int, c image16bit.RGB565, fill bool) error {
	if d.halted {
		return errHalted
	}
	if r < 0 {
		return nil
	}

	f := 1 - r
	ddx := 1
	ddy := -2 * r
	x := 0
	y := r

	if fill {
		// Diameter row.
		if err := d.HLine(cx-r, cx+r, cy, c); err != nil {
			return err
		}
	} else {
		// Leftmost and rightmost points.
		if err := d.SetPixel(cx-r, cy, c); err != nil {
			return err
		}
		if err := d.SetPixel(cx+r, cy, c); err != nil {
			return err
		}
	}

	for x < y {
		if f >= 0 {
			y--
			ddy += 2
			f += ddy
		}
		x++
		ddx += 2
		f += ddx

		if fill {
			// One horizontal span per symmetric point pair, four per
			// step, instead of plotting individual pixels.
			if err := d.HLine(cx-x, cx+x, cy+y, c); err != nil {
				return err
			}
			if err := d.HLine(cx-x, cx+x, cy-y, c); err != nil {
				return err
			}
			if err := d.HLine(cx-y, cx+y, cy+x, c); err != nil {
				return err
			}
			if err := d.HLine(cx-y, cx+y, cy-x, c); err != nil {
				return err
			}
			continue
		}
		// One point per octant.
		for _, p := range [8][2]int{
			{cx + x, cy + y}, {cx - x, cy + y},
			{cx + x, cy - y}, {cx - x, cy - y},
			{cx + y, cy + x}, {cx - y, cy + x},
			{cx + y, cy - x}, {cx - y, cy - x},
		} {
			if err := d.SetPixel(p[0], p[1], c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Triangle draws a triangle, outlined or filled. Filled mode sorts the
// vertices by ascending y and scanline-fills between the two active edges;
// zero-height edges use a zero inverse slope instead of dividing by zero, so
// collinear vertices degenerate to a line or single pixel.
func (d *Dev) Triangle(x0, y0, x1, y1, x2, y2 int, c image16bit.RGB565, fill bool) error {
	if d.halted {
		return errHalted
	}
	if !fill {
		if err := d.Line(x0, y0, x1, y1, c); err != nil {
			return err
		}
		if err := d.Line(x1, y1, x2, y2, c); err != nil {
			return err
		}
		return d.Line(x2, y2, x0, y0, c)
	}

	// Sort vertices by ascending y.
	if y0 > y1 {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}
	if y1 > y2 {
		x1, y1, x2, y2 = x2, y2, x1, y1
	}
	if y0 > y1 {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}

	if y0 == y2 {
		// All vertices on one scanline.
		return d.HLine(min3(x0, x1, x2), max3(x0, x1, x2), y0, c)
	}

	inv01 := 0.0
	if y1 != y0 {
		inv01 = float64(x1-x0) / float64(y1-y0)
	}
	inv02 := float64(x2-x0) / float64(y2-y0)
	inv12 := 0.0
	if y2 != y1 {
		inv12 = float64(x2-x1) / float64(y2-y1)
	}

	// Top half: from the top vertex down to the split vertex.
	xa, xb := float64(x0), float64(x0)
	for y := y0; y < y1; y++ {
		if err := d.HLine(round(xa), round(xb), y, c); err != nil {
			return err
		}
		xa += inv01
		xb += inv02
	}
	// Bottom half: from the split vertex down to the bottom vertex.
	xa = float64(x1)
	for y := y1; y <= y2; y++ {
		if err := d.HLine(round(xa), round(xb), y, c); err != nil {
			return err
		}
		xa += inv12
		xb += inv02
	}
	return nil
}

// Show flushes the framebuffer to the panel with a single full-panel window
// set, regardless of how many primitives were drawn since the last flush.
// In Direct mode there is nothing buffered and Show is a no-op.
func (d *Dev) Show() error {
	if d.halted {
		return errHalted
	}
	switch d.mode {
	case Buffered:
		return d.tx(func() error {
			if err := d.setWindow(0, 0, d.rect.Max.X-1, d.rect.Max.Y-1); err != nil {
				return err
			}
			return d.sendData(d.fb.Pix)
		})
	case BufferedMono:
		return d.tx(func() error {
			if err := d.setWindow(0, 0, d.rect.Max.X-1, d.rect.Max.Y-1); err != nil {
				return err
			}
			// Expand one packed row at a time through the lookup table;
			// a full expanded frame is never materialized.
			row := d.rowBuf[:d.rect.Max.X*2]
			for y := 0; y < d.rect.Max.Y; y++ {
				packed := d.mono.Pix[y*d.mono.Stride : (y+1)*d.mono.Stride]
				for i, b := range packed {
					copy(row[i*16:(i+1)*16], monoLUT[b][:])
				}
				if err := d.sendData(row); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return nil
}

// Framebuffer returns the owned framebuffer in the buffered modes, nil in
// Direct mode. Mutations become visible on the panel after Show.
func (d *Dev) Framebuffer() draw.Image {
	switch d.mode {
	case Buffered:
		return d.fb
	case BufferedMono:
		return d.mono
	}
	return nil
}

// fillScreenWire streams a solid color to the whole panel, bypassing any
// framebuffer. Used for the init-time clear, which must reach the device in
// every mode.
func (d *Dev) fillScreenWire(c image16bit.RGB565) error {
	return d.tx(func() error {
		if err := d.setWindow(0, 0, d.rect.Max.X-1, d.rect.Max.Y-1); err != nil {
			return err
		}
		row := d.colorRow(c, d.rect.Max.X)
		for y := 0; y < d.rect.Max.Y; y++ {
			if err := d.sendData(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// colorRow fills the scratch row buffer with n big-endian copies of c.
func (d *Dev) colorRow(c image16bit.RGB565, n int) []byte {
	row := d.rowBuf[:n*2]
	hi, lo := byte(c>>8), byte(c)
	for i := 0; i < len(row); i += 2 {
		row[i] = hi
		row[i+1] = lo
	}
	return row
}

// monoLUT maps a packed monochrome byte (MSB = leftmost pixel) to the
// 16-byte RGB565 expansion of its eight pixels: 0xFFFF for set bits, 0x0000
// for clear bits. Precomputing it avoids per-bit branching during flush.
var monoLUT = buildMonoLUT()

func buildMonoLUT() (t [256][16]byte) {
	for b := 0; b < 256; b++ {
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>uint(bit)) != 0 {
				t[b][bit*2] = 0xFF
				t[b][bit*2+1] = 0xFF
			}
		}
	}
	return
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round(v float64) int {
	return int(math.Round(v))
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c int) int {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}
