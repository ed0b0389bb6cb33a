package st77xx

import (
	"image"
	"image/draw"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/st77xx/image16bit"
)

// glyphSize is the fixed character cell edge in pixels.
const glyphSize = 8

// GlyphSource rasterizes single characters into a fixed 8×8 cell. It is the
// boundary to the external font bitmap source; the driver blits cells but
// never renders glyph strokes itself.
type GlyphSource interface {
	// Glyph fills dst with bg and draws c in fg. dst is always the 8×8
	// scratch cell owned by the device.
	Glyph(dst *image16bit.Image, c rune, bg, fg image16bit.RGB565)
}

// FaceSource adapts a golang.org/x/image/font Face as a GlyphSource. Glyphs
// wider or taller than the 8×8 cell are cropped to the cell.
type FaceSource struct {
	Face font.Face
	// Baseline is the y coordinate of the text baseline inside the cell.
	// Zero means the bottom cell row.
	Baseline int
}

// Glyph implements GlyphSource.
func (s *FaceSource) Glyph(dst *image16bit.Image, c rune, bg, fg image16bit.RGB565) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	baseline := s.Baseline
	if baseline == 0 {
		baseline = glyphSize - 1
	}
	fd := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: s.Face,
		Dot:  fixed.P(0, baseline),
	}
	fd.DrawString(string(c))
}

func defaultFont() GlyphSource {
	return &FaceSource{Face: basicfont.Face7x13}
}

// DrawChar renders one glyph with its top-left corner at (x,y). The glyph is
// rasterized into the reused scratch cell, then blitted to the panel in one
// transfer. When the cell overflows a panel edge, only the visible
// sub-region is extracted row by row; no write ever targets a coordinate
// outside the panel.
func (d *Dev) DrawChar(x, y int, c rune, bg, fg image16bit.RGB565) error {
	if d.halted {
		return errHalted
	}
	cell := image.Rect(x, y, x+glyphSize, y+glyphSize)
	vis := cell.Intersect(d.rect)
	if vis.Empty() {
		return nil
	}
	d.font.Glyph(d.glyph, c, bg, fg)

	switch d.mode {
	case Buffered:
		draw.Draw(d.fb, vis, d.glyph, vis.Min.Sub(cell.Min), draw.Src)
		return nil
	case BufferedMono:
		draw.Draw(d.mono, vis, d.glyph, vis.Min.Sub(cell.Min), draw.Src)
		return nil
	}

	return d.tx(func() error {
		if err := d.setWindow(vis.Min.X, vis.Min.Y, vis.Max.X-1, vis.Max.Y-1); err != nil {
			return err
		}
		if vis == cell {
			// Fully visible: the scratch cell is already in wire order.
			return d.sendData(d.glyph.Pix)
		}
		gx := vis.Min.X - cell.Min.X
		for gy := vis.Min.Y - cell.Min.Y; gy < vis.Max.Y-cell.Min.Y; gy++ {
			o := d.glyph.PixOffset(gx, gy)
			if err := d.sendData(d.glyph.Pix[o : o+vis.Dx()*2]); err != nil {
				return err
			}
		}
		return nil
	})
}

// DrawText renders a string starting at (x,y), advancing one fixed glyph
// width per character. Characters past the right panel edge are clipped.
func (d *Dev) DrawText(x, y int, text string, bg, fg image16bit.RGB565) error {
	for _, c := range text {
		if x >= d.rect.Max.X {
			break
		}
		if err := d.DrawChar(x, y, c, bg, fg); err != nil {
			return err
		}
		x += glyphSize
	}
	return nil
}

// DrawRGB565 blits a w×h big-endian RGB565 raster read from r, with its
// top-left corner at (x,y). Rows overflowing the panel edges are clipped to
// the visible sub-region. A raster fully outside the panel is a silent
// no-op and r is not consumed.
func (d *Dev) DrawRGB565(x, y, w, h int, r io.Reader) error {
	if d.halted {
		return errHalted
	}
	if w <= 0 || h <= 0 {
		return nil
	}
	vis := image.Rect(x, y, x+w, y+h).Intersect(d.rect)
	if vis.Empty() {
		return nil
	}

	// One source row; w may exceed the panel width, so the scratch row
	// buffer cannot be used.
	row := make([]byte, w*2)
	segOff := (vis.Min.X - x) * 2
	segLen := vis.Dx() * 2

	if d.mode == Direct {
		return d.tx(func() error {
			if err := d.setWindow(vis.Min.X, vis.Min.Y, vis.Max.X-1, vis.Max.Y-1); err != nil {
				return err
			}
			for sy := 0; sy < h; sy++ {
				if _, err := io.ReadFull(r, row); err != nil {
					return err
				}
				py := y + sy
				if py < vis.Min.Y || py >= vis.Max.Y {
					continue
				}
				if err := d.sendData(row[segOff : segOff+segLen]); err != nil {
					return err
				}
			}
			return nil
		})
	}

	for sy := 0; sy < h; sy++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return err
		}
		py := y + sy
		if py < vis.Min.Y || py >= vis.Max.Y {
			continue
		}
		seg := row[segOff : segOff+segLen]
		if d.mode == Buffered {
			copy(d.fb.Pix[d.fb.PixOffset(vis.Min.X, py):], seg)
			continue
		}
		for i := 0; i < vis.Dx(); i++ {
			c := image16bit.RGB565(uint16(seg[i*2])<<8 | uint16(seg[i*2+1]))
			d.mono.SetBit(vis.Min.X+i, py, monoBit(c))
		}
	}
	return nil
}
