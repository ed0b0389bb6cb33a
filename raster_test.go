package st77xx

import (
	"image"
	"image/color"
	"testing"

	"periph.io/x/devices/v3/st77xx/image16bit"
)

// panel replays a recorded command stream into a pixel grid, emulating the
// controller's window addressing. Writes outside the panel or past the armed
// window fail the test.
type panel struct {
	t          *testing.T
	w, h       int
	xOff, yOff int
	pix        []uint16
}

func newPanel(t *testing.T, w, h, xOff, yOff int) *panel {
	return &panel{t: t, w: w, h: h, xOff: xOff, yOff: yOff, pix: make([]uint16, w*h)}
}

func (p *panel) replay(ops []txOp) {
	p.t.Helper()
	var cmd byte
	var addr []byte
	x0, x1 := 0, p.w-1
	y0, y1 := 0, p.h-1
	cx, cy := 0, 0
	for _, op := range ops {
		if !op.data {
			if len(op.w) != 1 {
				p.t.Fatalf("multi-byte command transfer %#v", op.w)
			}
			cmd = op.w[0]
			addr = nil
			if cmd == cmdRAMWR {
				cx, cy = x0, y0
			}
			continue
		}
		switch cmd {
		case cmdCASET, cmdRASET:
			addr = append(addr, op.w...)
			if len(addr) < 4 {
				continue
			}
			s := int(addr[0])<<8 | int(addr[1])
			e := int(addr[2])<<8 | int(addr[3])
			if cmd == cmdCASET {
				x0, x1 = s-p.xOff, e-p.xOff
				if x0 < 0 || x1 >= p.w || x0 > x1 {
					p.t.Fatalf("column window %d..%d outside panel width %d", x0, x1, p.w)
				}
			} else {
				y0, y1 = s-p.yOff, e-p.yOff
				if y0 < 0 || y1 >= p.h || y0 > y1 {
					p.t.Fatalf("row window %d..%d outside panel height %d", y0, y1, p.h)
				}
			}
		case cmdRAMWR:
			for i := 0; i+1 < len(op.w); i += 2 {
				if cy > y1 {
					p.t.Fatalf("pixel stream overflows window %d..%d x %d..%d", x0, x1, y0, y1)
				}
				p.pix[cy*p.w+cx] = uint16(op.w[i])<<8 | uint16(op.w[i+1])
				cx++
				if cx > x1 {
					cx, cy = x0, cy+1
				}
			}
		}
	}
}

func (p *panel) at(x, y int) uint16 {
	return p.pix[y*p.w+x]
}

// count returns how many panel pixels hold the color.
func (p *panel) count(c image16bit.RGB565) int {
	n := 0
	for _, v := range p.pix {
		if v == uint16(c) {
			n++
		}
	}
	return n
}

// fbGrid snapshots a framebuffer in the panel's grid layout.
func fbGrid(fb *image16bit.Image) []uint16 {
	b := fb.Bounds()
	g := make([]uint16, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g[y*b.Dx()+x] = uint16(fb.RGB565At(x, y))
		}
	}
	return g
}

func TestSetPixelOutOfRange(t *testing.T) {
	d, rec := newTestDev(8, 8, Direct)
	if err := d.SetPixel(-1, 0, image16bit.White); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPixel(8, 0, image16bit.White); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPixel(0, 8, image16bit.White); err != nil {
		t.Fatal(err)
	}
	if len(rec.ops) != 0 {
		t.Errorf("out-of-range SetPixel issued %d transfers, want none", len(rec.ops))
	}
}

func TestLineSinglePoint(t *testing.T) {
	d, rec := newTestDev(16, 16, Direct)
	if err := d.Line(5, 6, 5, 6, image16bit.White); err != nil {
		t.Fatal(err)
	}
	p := newPanel(t, 16, 16, 0, 0)
	p.replay(rec.ops)
	if p.at(5, 6) != 0xFFFF {
		t.Error("zero-length line did not light its point")
	}
	if p.count(image16bit.White) != 1 {
		t.Errorf("zero-length line lit %d pixels, want 1", p.count(image16bit.White))
	}
}

func TestLineFastPaths(t *testing.T) {
	// A horizontal line must produce the same pixels as HLine, in a single
	// window set rather than one per pixel.
	dl, recL := newTestDev(16, 16, Direct)
	if err := dl.Line(12, 4, 2, 4, image16bit.White); err != nil {
		t.Fatal(err)
	}
	dh, recH := newTestDev(16, 16, Direct)
	if err := dh.HLine(2, 12, 4, image16bit.White); err != nil {
		t.Fatal(err)
	}

	if n := countCommand(recL.ops, cmdCASET); n != 1 {
		t.Errorf("horizontal line issued %d window sets, want 1", n)
	}
	pl := newPanel(t, 16, 16, 0, 0)
	pl.replay(recL.ops)
	ph := newPanel(t, 16, 16, 0, 0)
	ph.replay(recH.ops)
	for i := range pl.pix {
		if pl.pix[i] != ph.pix[i] {
			t.Fatalf("pixel %d differs between Line and HLine", i)
		}
	}

	dv, recV := newTestDev(16, 16, Direct)
	if err := dv.Line(7, 13, 7, 1, image16bit.White); err != nil {
		t.Fatal(err)
	}
	if n := countCommand(recV.ops, cmdCASET); n != 1 {
		t.Errorf("vertical line issued %d window sets, want 1", n)
	}
	pv := newPanel(t, 16, 16, 0, 0)
	pv.replay(recV.ops)
	for y := 1; y <= 13; y++ {
		if pv.at(7, y) != 0xFFFF {
			t.Errorf("vertical line missing pixel at y=%d", y)
		}
	}
	if pv.count(image16bit.White) != 13 {
		t.Errorf("vertical line lit %d pixels, want 13", pv.count(image16bit.White))
	}
}

func TestLineDiagonal(t *testing.T) {
	d, _ := newTestDev(16, 16, Buffered)
	if err := d.Line(2, 3, 9, 10, image16bit.White); err != nil {
		t.Fatal(err)
	}
	if d.fb.RGB565At(2, 3) != image16bit.White || d.fb.RGB565At(9, 10) != image16bit.White {
		t.Error("diagonal line missing an endpoint")
	}
	// A 45° line lights exactly one pixel per step.
	n := 0
	for _, g := range fbGrid(d.fb) {
		if g == 0xFFFF {
			n++
		}
	}
	if n != 8 {
		t.Errorf("diagonal line lit %d pixels, want 8", n)
	}
}

func TestLineClipped(t *testing.T) {
	// Endpoints off the panel are fine; only the on-panel part is drawn.
	d, rec := newTestDev(8, 8, Direct)
	if err := d.Line(-4, -4, 11, 11, image16bit.White); err != nil {
		t.Fatal(err)
	}
	p := newPanel(t, 8, 8, 0, 0)
	p.replay(rec.ops)
	for i := 0; i < 8; i++ {
		if p.at(i, i) != 0xFFFF {
			t.Errorf("clipped line missing pixel at (%d,%d)", i, i)
		}
	}
	if p.count(image16bit.White) != 8 {
		t.Errorf("clipped line lit %d pixels, want 8", p.count(image16bit.White))
	}
}

func TestHLineClamped(t *testing.T) {
	d, rec := newTestDev(8, 4, Direct)
	if err := d.HLine(-5, 3, 2, image16bit.White); err != nil {
		t.Fatal(err)
	}
	p := newPanel(t, 8, 4, 0, 0)
	p.replay(rec.ops)
	for x := 0; x <= 3; x++ {
		if p.at(x, 2) != 0xFFFF {
			t.Errorf("clamped span missing pixel at x=%d", x)
		}
	}
	if p.count(image16bit.White) != 4 {
		t.Errorf("clamped span lit %d pixels, want 4", p.count(image16bit.White))
	}

	// Fully outside: silent no-op.
	d2, rec2 := newTestDev(8, 4, Direct)
	if err := d2.HLine(0, 7, 4, image16bit.White); err != nil {
		t.Fatal(err)
	}
	if err := d2.VLine(8, 0, 3, image16bit.White); err != nil {
		t.Fatal(err)
	}
	if len(rec2.ops) != 0 {
		t.Error("off-panel spans issued bus transfers")
	}
}

func TestRect(t *testing.T) {
	d, _ := newTestDev(8, 8, Buffered)
	if err := d.Rect(1, 1, 4, 3, image16bit.White, false); err != nil {
		t.Fatal(err)
	}
	// Outline only: interior stays black.
	if d.fb.RGB565At(2, 2) != image16bit.Black {
		t.Error("outlined rect filled its interior")
	}
	for x := 1; x <= 4; x++ {
		if d.fb.RGB565At(x, 1) != image16bit.White || d.fb.RGB565At(x, 3) != image16bit.White {
			t.Errorf("outline missing top/bottom pixel at x=%d", x)
		}
	}
	for y := 1; y <= 3; y++ {
		if d.fb.RGB565At(1, y) != image16bit.White || d.fb.RGB565At(4, y) != image16bit.White {
			t.Errorf("outline missing side pixel at y=%d", y)
		}
	}

	df, _ := newTestDev(8, 8, Buffered)
	if err := df.Rect(1, 1, 4, 3, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	if df.fb.RGB565At(2, 2) != image16bit.White {
		t.Error("filled rect left its interior black")
	}

	// Degenerate and fully off-panel rects are silent no-ops.
	dd, recD := newTestDev(8, 8, Direct)
	if err := dd.Rect(2, 2, 0, 5, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	if err := dd.Rect(9, 9, 3, 3, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	if len(recD.ops) != 0 {
		t.Error("degenerate rects issued bus transfers")
	}
}

func TestRectFillSingleWindow(t *testing.T) {
	d, rec := newTestDev(16, 16, Direct)
	if err := d.Rect(2, 3, 5, 4, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	if n := countCommand(rec.ops, cmdCASET); n != 1 {
		t.Errorf("filled rect issued %d window sets, want 1", n)
	}
	p := newPanel(t, 16, 16, 0, 0)
	p.replay(rec.ops)
	if p.count(image16bit.White) != 5*4 {
		t.Errorf("filled rect lit %d pixels, want 20", p.count(image16bit.White))
	}
}

func TestCircleRadiusZero(t *testing.T) {
	for _, fill := range []bool{false, true} {
		d, rec := newTestDev(8, 8, Direct)
		if err := d.Circle(3, 3, 0, image16bit.White, fill); err != nil {
			t.Fatal(err)
		}
		p := newPanel(t, 8, 8, 0, 0)
		p.replay(rec.ops)
		if p.at(3, 3) != 0xFFFF || p.count(image16bit.White) != 1 {
			t.Errorf("fill=%v: radius-0 circle should light exactly the center", fill)
		}
	}
}

func TestCircleFillCoversOutline(t *testing.T) {
	do, _ := newTestDev(32, 32, Buffered)
	if err := do.Circle(15, 15, 9, image16bit.White, false); err != nil {
		t.Fatal(err)
	}
	df, _ := newTestDev(32, 32, Buffered)
	if err := df.Circle(15, 15, 9, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	outline := fbGrid(do.fb)
	filled := fbGrid(df.fb)
	for i := range outline {
		if outline[i] == 0xFFFF && filled[i] != 0xFFFF {
			t.Fatalf("outline pixel %d not covered by the filled circle", i)
		}
	}
	// Interior is filled.
	if df.fb.RGB565At(15, 15) != image16bit.White {
		t.Error("filled circle left its center black")
	}
	if do.fb.RGB565At(15, 15) != image16bit.Black {
		t.Error("outlined circle filled its center")
	}
	// Extremes on all four axes.
	for _, pt := range [][2]int{{15, 6}, {15, 24}, {6, 15}, {24, 15}} {
		if do.fb.RGB565At(pt[0], pt[1]) != image16bit.White {
			t.Errorf("outline missing extreme point (%d,%d)", pt[0], pt[1])
		}
	}
}

func TestCircleClipped(t *testing.T) {
	// Center off the panel; only the visible arc is drawn, without errors.
	d, rec := newTestDev(16, 16, Direct)
	if err := d.Circle(0, 0, 10, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	p := newPanel(t, 16, 16, 0, 0)
	p.replay(rec.ops)
	if p.at(0, 0) != 0xFFFF {
		t.Error("clipped filled circle missing the visible corner")
	}
	if p.at(15, 15) == 0xFFFF {
		t.Error("clipped circle lit a pixel far outside its radius")
	}
}

func TestTriangleCollinear(t *testing.T) {
	// All three vertices on one scanline degenerates to a span.
	d, _ := newTestDev(16, 16, Buffered)
	if err := d.Triangle(2, 5, 8, 5, 5, 5, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	for x := 2; x <= 8; x++ {
		if d.fb.RGB565At(x, 5) != image16bit.White {
			t.Errorf("collinear triangle missing pixel at x=%d", x)
		}
	}
	n := 0
	for _, g := range fbGrid(d.fb) {
		if g == 0xFFFF {
			n++
		}
	}
	if n != 7 {
		t.Errorf("collinear triangle lit %d pixels, want 7", n)
	}

	// Vertically collinear vertices degenerate to a vertical line.
	dv, _ := newTestDev(16, 16, Buffered)
	if err := dv.Triangle(3, 1, 3, 4, 3, 7, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	for y := 1; y <= 7; y++ {
		if dv.fb.RGB565At(3, y) != image16bit.White {
			t.Errorf("vertical collinear triangle missing pixel at y=%d", y)
		}
	}
}

func TestTriangleFilled(t *testing.T) {
	d, _ := newTestDev(32, 32, Buffered)
	if err := d.Triangle(4, 4, 28, 6, 14, 26, image16bit.White, true); err != nil {
		t.Fatal(err)
	}
	// All three vertices and the centroid are covered.
	for _, pt := range [][2]int{{4, 4}, {28, 6}, {14, 26}, {15, 12}} {
		if d.fb.RGB565At(pt[0], pt[1]) != image16bit.White {
			t.Errorf("filled triangle missing (%d,%d)", pt[0], pt[1])
		}
	}
	if d.fb.RGB565At(30, 30) != image16bit.Black {
		t.Error("filled triangle lit a pixel outside itself")
	}
}

func TestTriangleOutlineClosed(t *testing.T) {
	d, _ := newTestDev(32, 32, Buffered)
	if err := d.Triangle(4, 4, 28, 6, 14, 26, image16bit.White, false); err != nil {
		t.Fatal(err)
	}
	for _, pt := range [][2]int{{4, 4}, {28, 6}, {14, 26}} {
		if d.fb.RGB565At(pt[0], pt[1]) != image16bit.White {
			t.Errorf("outline missing vertex (%d,%d)", pt[0], pt[1])
		}
	}
	if d.fb.RGB565At(15, 12) != image16bit.Black {
		t.Error("outlined triangle filled its interior")
	}
}

func TestFill(t *testing.T) {
	d, rec := newTestDev(4, 4, Direct)
	c := image16bit.From(255, 0, 0)
	if err := d.Fill(c); err != nil {
		t.Fatal(err)
	}
	p := newPanel(t, 4, 4, 0, 0)
	p.replay(rec.ops)
	if p.count(c) != 16 {
		t.Errorf("Fill lit %d pixels, want 16", p.count(c))
	}
	if n := countCommand(rec.ops, cmdCASET); n != 1 {
		t.Errorf("Fill issued %d window sets, want 1", n)
	}
}

func TestDirectBufferedEquivalence(t *testing.T) {
	// The same drawing sequence must leave identical pixels whether it is
	// streamed directly or composed in a framebuffer and flushed.
	scene := func(d *Dev) error {
		bg := image16bit.From(0, 0, 64)
		if err := d.Fill(bg); err != nil {
			return err
		}
		if err := d.Rect(-2, 3, 8, 5, image16bit.From(255, 128, 0), true); err != nil {
			return err
		}
		if err := d.Circle(20, 10, 6, image16bit.White, false); err != nil {
			return err
		}
		if err := d.Triangle(2, 28, 16, 18, 28, 30, image16bit.From(0, 255, 0), true); err != nil {
			return err
		}
		if err := d.Line(0, 0, 31, 31, image16bit.From(255, 0, 0)); err != nil {
			return err
		}
		if err := d.SetPixel(40, 40, image16bit.White); err != nil {
			return err
		}
		return d.HLine(25, 40, 2, image16bit.White)
	}

	dd, recD := newTestDev(32, 32, Direct)
	if err := scene(dd); err != nil {
		t.Fatal(err)
	}
	direct := newPanel(t, 32, 32, 0, 0)
	direct.replay(recD.ops)

	db, recB := newTestDev(32, 32, Buffered)
	if err := scene(db); err != nil {
		t.Fatal(err)
	}
	if len(recB.ops) != 0 {
		t.Fatal("buffered drawing touched the bus before Show")
	}
	if err := db.Show(); err != nil {
		t.Fatal(err)
	}
	flushed := newPanel(t, 32, 32, 0, 0)
	flushed.replay(recB.ops)

	fb := fbGrid(db.fb)
	for i := range direct.pix {
		if direct.pix[i] != fb[i] {
			t.Fatalf("pixel (%d,%d): direct %#04x, framebuffer %#04x",
				i%32, i/32, direct.pix[i], fb[i])
		}
		if direct.pix[i] != flushed.pix[i] {
			t.Fatalf("pixel (%d,%d): direct %#04x, flushed %#04x",
				i%32, i/32, direct.pix[i], flushed.pix[i])
		}
	}
}

func TestShowSingleWindow(t *testing.T) {
	d, rec := newTestDev(16, 8, Buffered)
	for i := 0; i < 10; i++ {
		if err := d.Circle(8, 4, i, image16bit.White, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Show(); err != nil {
		t.Fatal(err)
	}
	if n := countCommand(rec.ops, cmdCASET); n != 1 {
		t.Errorf("Show issued %d window sets, want 1", n)
	}
	if got := payload(rec.ops, cmdRAMWR); len(got) != 16*8*2 {
		t.Errorf("Show streamed %d bytes, want %d", len(got), 16*8*2)
	}
}

func TestShowDirectNoop(t *testing.T) {
	d, rec := newTestDev(8, 8, Direct)
	if err := d.Show(); err != nil {
		t.Fatal(err)
	}
	if len(rec.ops) != 0 {
		t.Error("Show in direct mode issued bus transfers")
	}
}

func TestMonoLUT(t *testing.T) {
	for i, b := range monoLUT[0x00] {
		if b != 0 {
			t.Fatalf("monoLUT[0x00][%d] = %#02x, want 0", i, b)
		}
	}
	for i, b := range monoLUT[0xFF] {
		if b != 0xFF {
			t.Fatalf("monoLUT[0xFF][%d] = %#02x, want 0xFF", i, b)
		}
	}
	// MSB is the leftmost pixel.
	want := [16]byte{0xFF, 0xFF}
	if monoLUT[0x80] != want {
		t.Errorf("monoLUT[0x80] = %#v", monoLUT[0x80])
	}
	want = [16]byte{14: 0xFF, 15: 0xFF}
	if monoLUT[0x01] != want {
		t.Errorf("monoLUT[0x01] = %#v", monoLUT[0x01])
	}
}

func TestShowMono(t *testing.T) {
	d, rec := newTestDev(16, 2, BufferedMono)
	if err := d.SetPixel(0, 0, image16bit.White); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPixel(15, 1, image16bit.White); err != nil {
		t.Fatal(err)
	}
	// Dark colors clear the bit.
	if err := d.SetPixel(1, 0, image16bit.From(10, 10, 10)); err != nil {
		t.Fatal(err)
	}
	if err := d.Show(); err != nil {
		t.Fatal(err)
	}

	p := newPanel(t, 16, 2, 0, 0)
	p.replay(rec.ops)
	if p.at(0, 0) != 0xFFFF {
		t.Error("lit monochrome pixel did not expand to white")
	}
	if p.at(15, 1) != 0xFFFF {
		t.Error("last pixel of the second row did not expand to white")
	}
	if p.count(image16bit.White) != 2 {
		t.Errorf("mono flush lit %d pixels, want 2", p.count(image16bit.White))
	}
	if n := countCommand(rec.ops, cmdCASET); n != 1 {
		t.Errorf("mono Show issued %d window sets, want 1", n)
	}
}

func TestMonoFill(t *testing.T) {
	d, _ := newTestDev(16, 2, BufferedMono)
	if err := d.Fill(image16bit.White); err != nil {
		t.Fatal(err)
	}
	for i, b := range d.mono.Pix {
		if b != 0xFF {
			t.Fatalf("Pix[%d] = %#02x after white fill", i, b)
		}
	}
	if err := d.Fill(image16bit.Black); err != nil {
		t.Fatal(err)
	}
	for i, b := range d.mono.Pix {
		if b != 0 {
			t.Fatalf("Pix[%d] = %#02x after black fill", i, b)
		}
	}
}

func TestFramebuffer(t *testing.T) {
	dd, _ := newTestDev(8, 8, Direct)
	if dd.Framebuffer() != nil {
		t.Error("direct mode should have no framebuffer")
	}
	db, _ := newTestDev(8, 8, Buffered)
	if db.Framebuffer() == nil {
		t.Error("buffered mode should expose its framebuffer")
	}
	dm, _ := newTestDev(8, 8, BufferedMono)
	if dm.Framebuffer() == nil {
		t.Error("monochrome mode should expose its framebuffer")
	}
}

func TestDrawDirect(t *testing.T) {
	d, rec := newTestDev(4, 4, Direct)
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	if err := d.Draw(d.Bounds(), src, image.Point{}); err != nil {
		t.Fatal(err)
	}
	p := newPanel(t, 4, 4, 0, 0)
	p.replay(rec.ops)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := uint16(image16bit.From(uint8(x*60), uint8(y*60), 128))
			if p.at(x, y) != want {
				t.Fatalf("pixel (%d,%d) = %#04x, want %#04x", x, y, p.at(x, y), want)
			}
		}
	}
}

func TestDrawBuffered(t *testing.T) {
	d, rec := newTestDev(4, 4, Buffered)
	src := image.NewUniform(color.RGBA{R: 255, A: 255})
	if err := d.Draw(image.Rect(1, 1, 3, 3), src, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if len(rec.ops) != 0 {
		t.Error("buffered Draw touched the bus")
	}
	if d.fb.RGB565At(1, 1) != 0xF800 {
		t.Errorf("framebuffer pixel = %#04x, want 0xF800", d.fb.RGB565At(1, 1))
	}
	if d.fb.RGB565At(0, 0) != image16bit.Black {
		t.Error("Draw wrote outside its destination rectangle")
	}
}
