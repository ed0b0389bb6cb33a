package st77xx

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/st77xx/image16bit"
	"periph.io/x/devices/v3/st77xx/image1bit"
)

// ST77xx command subset used by this driver. The controllers are write-only
// in this configuration; no read commands are issued.
const (
	cmdNOP     = 0x00
	cmdSWRESET = 0x01 // Software reset
	cmdSLPIN   = 0x10 // Sleep in
	cmdSLPOUT  = 0x11 // Sleep out
	cmdNORON   = 0x13 // Normal display mode on
	cmdINVOFF  = 0x20 // Display inversion off
	cmdINVON   = 0x21 // Display inversion on
	cmdDISPOFF = 0x28 // Display off
	cmdDISPON  = 0x29 // Display on
	cmdCASET   = 0x2A // Column address set
	cmdRASET   = 0x2B // Row address set
	cmdRAMWR   = 0x2C // Memory write
	cmdVSCRDEF = 0x33 // Vertical scrolling definition
	cmdMADCTL  = 0x36 // Memory access control
	cmdVSCSAD  = 0x37 // Vertical scroll start address
	cmdCOLMOD  = 0x3A // Interface pixel format
)

// MADCTL register bits.
const (
	madctlMY  = 0x80 // Row address order
	madctlMX  = 0x40 // Column address order
	madctlMV  = 0x20 // Row/column exchange
	madctlML  = 0x10 // Vertical refresh order
	madctlBGR = 0x08 // BGR color filter panel order
	madctlMH  = 0x04 // Horizontal refresh order
)

// COLMOD values. This driver always runs the controller in 65K-color,
// 16-bit-per-pixel mode.
const (
	colorMode65K   = 0x50
	colorMode16Bit = 0x05
)

// The largest panels in the ST77xx family (ST7796) address 320×480 of
// controller memory.
const (
	maxColumns = 480
	maxRows    = 480
)

// Mode selects the pixel streaming strategy, fixed at construction.
type Mode int

const (
	// Direct issues an addressing window and a color write on the bus for
	// every pixel or span. No framebuffer is allocated. Cost is dominated
	// by the number of window-set operations, not bytes transferred.
	Direct Mode = iota
	// Buffered owns a full RGB565 framebuffer. Drawing primitives mutate
	// memory only; Show streams the whole frame after a single full-panel
	// window set.
	Buffered
	// BufferedMono owns a 1-bit-per-pixel framebuffer (an eighth of the
	// RGB565 footprint). Show expands each packed byte to its 16-byte
	// RGB565 run through a precomputed table while streaming, without ever
	// materializing a full color frame.
	BufferedMono
)

// Opts is the configuration for the ST77xx display.
type Opts struct {
	// Display dimensions in pixels, as mounted. Required.
	W int
	H int

	// Physical offset of the panel inside the controller's addressable
	// memory, for panels smaller than the controller RAM. When both are
	// zero the offset is looked up from known panel sizes (e.g. the
	// 135×240 ST7789 panels sit at 52,40); unknown sizes use zero.
	XOffset int
	YOffset int

	// Orientation, written to MADCTL during init.
	Landscape bool
	MirrorX   bool
	MirrorY   bool
	BGR       bool // Panel wired blue-green-red instead of red-green-blue
	Inversion bool // Many IPS panels need inversion on for correct colors

	// Mode selects the pixel streaming strategy.
	Mode Mode

	// Optional pins. DC is mandatory and passed to NewSPI directly.
	RST       gpio.PinIO  // Hardware reset (nil to rely on software reset)
	CS        gpio.PinOut // Chip select, when not handled by the SPI port
	Backlight gpio.PinOut // Backlight enable

	// SharedBus deasserts CS after every transaction so other devices can
	// use the bus. The default keeps CS asserted for the device's lifetime,
	// which is measurably faster on slow hosts.
	SharedBus bool

	// Font is the glyph source used by DrawChar and DrawText. Defaults to
	// a basicfont-backed source.
	Font GlyphSource
}

// Dev is the device handle for an ST77xx display.
type Dev struct {
	// Communication
	c         conn.Conn
	dc        gpio.PinOut
	rst       gpio.PinIO
	cs        gpio.PinOut
	bl        gpio.PinOut
	sharedBus bool
	maxTxSize int

	// Display geometry
	rect    image.Rectangle
	xOffset int
	yOffset int

	// Orientation, mirrored into MADCTL
	landscape bool
	mirrorX   bool
	mirrorY   bool
	bgr       bool

	// Pixel streaming
	mode   Mode
	surf   surface
	fb     *image16bit.Image        // Buffered
	mono   *image1bit.HorizontalMSB // BufferedMono
	rowBuf []byte                   // One panel row or column of RGB565, reused

	// Text
	glyph *image16bit.Image // 8×8 scratch cell, reused for every character
	font  GlyphSource

	// State
	halted bool
	sleep  func(time.Duration)
}

// NewSPI creates a new ST77xx device connected via SPI and runs the full
// power-up sequence.
//
// The SPI port is configured for 40MHz, Mode0, 8-bit transfers. The dc
// (Data/Command) GPIO pin must be provided and configured as an output.
//
// opts can be nil to use defaults (240×240, direct mode).
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{W: 240, H: 240}
	}

	xOff, yOff, err := checkOpts(opts)
	if err != nil {
		return nil, err
	}

	c, err := p.Connect(40*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}

	// Get the maxTxSize from the conn if it implements conn.Limits,
	// otherwise use a conservative default.
	maxTxSize := 0
	if limits, ok := c.(conn.Limits); ok {
		maxTxSize = limits.MaxTxSize()
	}
	if maxTxSize == 0 {
		maxTxSize = 4096
	}

	d := &Dev{
		c:         c,
		dc:        dc,
		rst:       opts.RST,
		cs:        opts.CS,
		bl:        opts.Backlight,
		sharedBus: opts.SharedBus,
		maxTxSize: maxTxSize,
		rect:      image.Rect(0, 0, opts.W, opts.H),
		xOffset:   xOff,
		yOffset:   yOff,
		landscape: opts.Landscape,
		mirrorX:   opts.MirrorX,
		mirrorY:   opts.MirrorY,
		bgr:       opts.BGR,
		mode:      opts.Mode,
		rowBuf:    make([]byte, max(opts.W, opts.H)*2),
		glyph:     image16bit.New(image.Rect(0, 0, glyphSize, glyphSize)),
		font:      opts.Font,
		sleep:     time.Sleep,
	}
	if d.font == nil {
		d.font = defaultFont()
	}

	switch opts.Mode {
	case Buffered:
		d.fb = image16bit.New(d.rect)
		d.surf = &fbSurface{fb: d.fb}
	case BufferedMono:
		d.mono = image1bit.NewHorizontalMSB(d.rect)
		d.surf = &monoSurface{img: d.mono}
	default:
		d.surf = &wireSurface{d: d}
	}

	if err := d.init(opts.Inversion); err != nil {
		return nil, err
	}

	return d, nil
}

// checkOpts validates the construction options and resolves the physical
// panel offset.
func checkOpts(opts *Opts) (xOff, yOff int, err error) {
	if opts.W <= 0 || opts.H <= 0 {
		return 0, 0, errors.New("st77xx: width and height must be positive")
	}
	if opts.XOffset < 0 || opts.YOffset < 0 {
		return 0, 0, errors.New("st77xx: offsets must not be negative")
	}
	xOff, yOff = opts.XOffset, opts.YOffset
	if xOff == 0 && yOff == 0 {
		xOff, yOff = defaultOffset(opts.W, opts.H)
	}
	if opts.W+xOff > maxColumns || opts.H+yOff > maxRows {
		return 0, 0, errors.New("st77xx: panel exceeds controller memory")
	}
	if opts.Mode == BufferedMono && opts.W%8 != 0 {
		return 0, 0, errors.New("st77xx: monochrome mode needs a width that is a multiple of 8")
	}
	return xOff, yOff, nil
}

// defaultOffset returns the physical panel offset for known panel sizes.
// Unknown sizes fall back to zero, the safe default for full-size panels.
func defaultOffset(w, h int) (int, int) {
	switch {
	case w == 135 && h == 240:
		return 52, 40
	case w == 240 && h == 135:
		return 40, 52
	default:
		return 0, 0
	}
}

// init runs the mandated power-up sequence. The ordering and the delays are
// a hardware contract: skipping or reordering steps can leave the controller
// in an undefined or visually corrupted state.
func (d *Dev) init(inversion bool) error {
	// Chip select is asserted once and left active for the device's
	// lifetime unless the bus is shared.
	if d.cs != nil {
		if err := d.cs.Out(gpio.Low); err != nil {
			return fmt.Errorf("st77xx: failed to assert CS: %w", err)
		}
	}

	if err := d.hardReset(); err != nil {
		return err
	}
	if err := d.softReset(); err != nil {
		return err
	}
	if err := d.Sleep(false); err != nil {
		return err
	}

	if err := d.writeCmd(cmdCOLMOD, colorMode65K|colorMode16Bit); err != nil {
		return err
	}
	d.sleep(50 * time.Millisecond)

	if err := d.writeCmd(cmdMADCTL, d.madctl()); err != nil {
		return err
	}
	if err := d.Invert(inversion); err != nil {
		return err
	}
	d.sleep(10 * time.Millisecond)

	if err := d.writeCmd(cmdNORON); err != nil {
		return err
	}
	d.sleep(10 * time.Millisecond)

	// Controller RAM content is random at power up. Clear the whole panel
	// before turning the display on.
	if err := d.fillScreenWire(image16bit.Black); err != nil {
		return err
	}
	if err := d.writeCmd(cmdDISPON); err != nil {
		return err
	}
	d.sleep(500 * time.Millisecond)

	if d.bl != nil {
		if err := d.bl.Out(gpio.High); err != nil {
			return fmt.Errorf("st77xx: failed to enable backlight: %w", err)
		}
	}
	return nil
}

// hardReset drives the reset line through a low pulse with settle delays,
// guaranteeing a defined power-on state even if the bus is not configured
// yet. It is a no-op when no reset pin was provided.
func (d *Dev) hardReset() error {
	if d.rst == nil {
		return nil
	}
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("st77xx: failed to pull RST high: %w", err)
	}
	d.sleep(50 * time.Millisecond)
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("st77xx: failed to pull RST low: %w", err)
	}
	d.sleep(50 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("st77xx: failed to pull RST high: %w", err)
	}
	d.sleep(150 * time.Millisecond)
	return nil
}

// softReset issues a software reset and waits for the controller to settle.
func (d *Dev) softReset() error {
	if err := d.writeCmd(cmdSWRESET); err != nil {
		return err
	}
	d.sleep(150 * time.Millisecond)
	return nil
}

// madctl composes the memory-access-control register value from the current
// orientation flags.
func (d *Dev) madctl() byte {
	var m byte
	if d.landscape {
		m |= madctlMV
	}
	if d.mirrorX {
		m |= madctlMX
	}
	if d.mirrorY {
		m |= madctlMY
	}
	if d.bgr {
		m |= madctlBGR
	}
	return m
}

// Sleep puts the controller in or out of its low-power sleep mode. Display
// RAM is retained.
func (d *Dev) Sleep(enter bool) error {
	if enter {
		return d.writeCmd(cmdSLPIN)
	}
	return d.writeCmd(cmdSLPOUT)
}

// Invert switches display color inversion on or off.
func (d *Dev) Invert(on bool) error {
	if on {
		return d.writeCmd(cmdINVON)
	}
	return d.writeCmd(cmdINVOFF)
}

// SetOrientation re-applies the memory access control register with new
// rotation and mirror flags. Panel dimensions are unchanged.
func (d *Dev) SetOrientation(landscape, mirrorX, mirrorY bool) error {
	d.landscape = landscape
	d.mirrorX = mirrorX
	d.mirrorY = mirrorY
	return d.writeCmd(cmdMADCTL, d.madctl())
}

// SetBGR switches the panel between blue-green-red and red-green-blue
// component order.
func (d *Dev) SetBGR(bgr bool) error {
	d.bgr = bgr
	return d.writeCmd(cmdMADCTL, d.madctl())
}

// SetBacklight turns the backlight on or off. It is a no-op when no
// backlight pin was provided.
func (d *Dev) SetBacklight(on bool) error {
	if d.bl == nil {
		return nil
	}
	return d.bl.Out(gpio.Level(on))
}

// SetScrollArea defines a vertical scroll region with fixed areas of the
// given heights at the top and bottom of the panel.
func (d *Dev) SetScrollArea(topFixed, bottomFixed int) error {
	scroll := d.rect.Dy() - topFixed - bottomFixed
	if topFixed < 0 || bottomFixed < 0 || scroll < 0 {
		return errors.New("st77xx: scroll area outside panel")
	}
	return d.writeCmd(cmdVSCRDEF,
		byte(topFixed>>8), byte(topFixed),
		byte(scroll>>8), byte(scroll),
		byte(bottomFixed>>8), byte(bottomFixed))
}

// SetScroll sets the vertical scroll start line.
func (d *Dev) SetScroll(line int) error {
	if line < 0 || line >= d.rect.Dy() {
		return errors.New("st77xx: scroll line outside panel")
	}
	return d.writeCmd(cmdVSCSAD, byte(line>>8), byte(line))
}

// StopScroll returns the display to normal, unscrolled mode.
func (d *Dev) StopScroll() error {
	return d.writeCmd(cmdNORON)
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image16bit.RGB565Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Draw draws an image onto the display. It implements display.Drawer.
//
// In Direct mode the source is converted to RGB565 and streamed to the
// controller row by row. In the buffered modes it is composed into the
// framebuffer; call Show to flush.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return errHalted
	}
	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	switch d.mode {
	case Buffered:
		draw.Draw(d.fb, dst, src, sp, draw.Src)
		return nil
	case BufferedMono:
		draw.Draw(d.mono, dst, src, sp, draw.Src)
		return nil
	}

	return d.tx(func() error {
		if err := d.setWindow(dst.Min.X, dst.Min.Y, dst.Max.X-1, dst.Max.Y-1); err != nil {
			return err
		}
		w := dst.Dx()
		row := d.rowBuf[:w*2]
		for y := 0; y < dst.Dy(); y++ {
			for x := 0; x < w; x++ {
				c := image16bit.RGB565Model.Convert(src.At(sp.X+x, sp.Y+y)).(image16bit.RGB565)
				row[x*2] = byte(c >> 8)
				row[x*2+1] = byte(c)
			}
			if err := d.sendData(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// Write streams a raw full frame of big-endian RGB565 pixels to the display.
// The data must be exactly W*H*2 bytes. It is not available in monochrome
// mode.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, errHalted
	}
	if d.mode == BufferedMono {
		return 0, errors.New("st77xx: Write needs an RGB565 mode")
	}
	if len(pixels) != d.rect.Dx()*d.rect.Dy()*2 {
		return 0, errors.New("st77xx: invalid buffer size")
	}
	err := d.tx(func() error {
		if err := d.setWindow(0, 0, d.rect.Dx()-1, d.rect.Dy()-1); err != nil {
			return err
		}
		return d.sendData(pixels)
	})
	if err != nil {
		return 0, err
	}
	if d.mode == Buffered {
		copy(d.fb.Pix, pixels)
	}
	return len(pixels), nil
}

// Halt turns the display off and puts the controller to sleep. After calling
// Halt the device will not respond to further drawing until re-initialized.
func (d *Dev) Halt() error {
	if err := d.SetBacklight(false); err != nil {
		return err
	}
	if err := d.writeCmd(cmdDISPOFF); err != nil {
		return err
	}
	if err := d.writeCmd(cmdSLPIN); err != nil {
		return err
	}
	d.halted = true
	return nil
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("st77xx.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

var errHalted = errors.New("st77xx: halted")

// setWindow translates a logical rectangle into device column/row commands,
// applying the panel's physical offset, then arms the controller for the
// following data stream. Coordinates must already be clipped to the panel;
// the window is re-issued on every call, never cached. The caller owns the
// transaction bracket, since the pixel stream that follows must stay in the
// same transaction.
func (d *Dev) setWindow(x0, y0, x1, y1 int) error {
	x0 += d.xOffset
	x1 += d.xOffset
	y0 += d.yOffset
	y1 += d.yOffset
	if err := d.rawWriteCmd(cmdCASET,
		byte(x0>>8), byte(x0),
		byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.rawWriteCmd(cmdRASET,
		byte(y0>>8), byte(y0),
		byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	return d.sendCommand(cmdRAMWR)
}

// writeCmd issues a command byte with optional data payload as one bus
// transaction.
func (d *Dev) writeCmd(cmd byte, data ...byte) error {
	return d.tx(func() error {
		return d.rawWriteCmd(cmd, data...)
	})
}

// rawWriteCmd issues a command byte with optional data payload. The caller
// owns the transaction bracket.
func (d *Dev) rawWriteCmd(cmd byte, data ...byte) error {
	if err := d.sendCommand(cmd); err != nil {
		return err
	}
	if len(data) > 0 {
		return d.sendData(data)
	}
	return nil
}

// tx runs f as a single bus transaction. On a shared bus chip select is
// asserted around f; on a dedicated bus CS stays permanently asserted and
// only the halted check applies.
func (d *Dev) tx(f func() error) error {
	if d.halted {
		return errHalted
	}
	if err := d.txBegin(); err != nil {
		return err
	}
	if err := f(); err != nil {
		return err
	}
	return d.txEnd()
}

// sendCommand sends a single command byte with DC low.
func (d *Dev) sendCommand(cmd byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	return d.c.Tx([]byte{cmd}, nil)
}

// sendData sends a data payload with DC high, chunked to the connection's
// maximum transaction size.
func (d *Dev) sendData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(data) != 0 {
		var chunk []byte
		if len(data) > d.maxTxSize {
			chunk, data = data[:d.maxTxSize], data[d.maxTxSize:]
		} else {
			chunk, data = data, nil
		}
		if err := d.c.Tx(chunk, nil); err != nil {
			return err
		}
	}
	return nil
}

// txBegin asserts chip select for one transaction on a shared bus. On a
// dedicated bus CS stays asserted and this is a no-op.
func (d *Dev) txBegin() error {
	if d.cs == nil || !d.sharedBus {
		return nil
	}
	return d.cs.Out(gpio.Low)
}

// txEnd releases chip select on a shared bus.
func (d *Dev) txEnd() error {
	if d.cs == nil || !d.sharedBus {
		return nil
	}
	return d.cs.Out(gpio.High)
}
