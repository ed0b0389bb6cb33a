// Package st77xx controls ST77xx-family TFT display controllers (ST7735,
// ST7789, ST7796) via SPI.
//
// The ST77xx controllers drive small RGB TFT panels of up to 320×480 pixels.
// This driver speaks the write-only command subset shared across the family
// and exposes a 2D raster API: pixels, lines, rectangles, circles,
// triangles, text and raw image blits, in 16-bit RGB565 color. It implements
// the display.Drawer interface from periph.io.
//
// # Display Characteristics
//
//   - 16-bit RGB565 color (65K colors), big-endian on the wire
//   - Configurable rotation, mirroring and RGB/BGR order via MADCTL
//   - Per-panel physical offsets for panels smaller than controller RAM
//   - Hardware vertical scrolling
//   - Sleep mode and display inversion
//
// # Hardware Connection
//
// Connect the display to your system via SPI:
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCL/CLK     → SPI Clock (SCLK)
//	SDA/MOSI    → SPI Data (MOSI)
//	DC          → GPIO (any available pin)
//	CS          → SPI Chip Select (or a GPIO via Opts.CS)
//	RES         → Optional: GPIO for hardware reset
//	BLK         → Optional: GPIO for backlight
//
// # Basic Usage
//
//	package main
//
//	import (
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/spi/spireg"
//		"periph.io/x/devices/v3/st77xx"
//		"periph.io/x/devices/v3/st77xx/image16bit"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		// Initialize periph.io
//		host.Init()
//
//		// Open SPI bus
//		spiBus, _ := spireg.Open("")
//
//		// Get Data/Command GPIO pin
//		dcPin := gpioreg.ByName("GPIO25")
//
//		// Create device; this runs the full power-up sequence
//		dev, _ := st77xx.NewSPI(spiBus, dcPin, &st77xx.Opts{
//			W: 240,
//			H: 240,
//		})
//		defer dev.Halt()
//
//		// Draw
//		red := image16bit.From(255, 0, 0)
//		dev.Fill(image16bit.Black)
//		dev.Circle(120, 120, 80, red, true)
//		dev.DrawText(40, 20, "hello", image16bit.Black, image16bit.White)
//	}
//
// # Pixel Streaming Modes
//
// The streaming strategy is fixed at construction via Opts.Mode:
//
//   - Direct: every pixel or span write re-issues the addressing window and
//     streams color bytes. No framebuffer is allocated. Cost is dominated by
//     the number of window sets, which matters on slow buses.
//   - Buffered: a full RGB565 framebuffer is owned by the device. Drawing
//     mutates memory; Show() streams the frame after one window set, so the
//     visible update is atomic from the viewer's perspective.
//   - BufferedMono: a 1-bit framebuffer at an eighth of the memory,
//     expanded to RGB565 through a precomputed table while flushing.
//
// Both strategies produce pixel-identical results for the same drawing
// calls; only timing and memory footprint differ.
//
// # Panel Offsets
//
// Some panels are smaller than the controller's addressable memory and sit
// at a fixed offset inside it; the well-known 135×240 ST7789 panels use
// (52,40). Known sizes are detected automatically, or set Opts.XOffset and
// Opts.YOffset explicitly. Unknown sizes default to zero.
//
// # Text
//
// DrawChar and DrawText blit fixed 8×8 character cells rasterized by an
// external GlyphSource. The default source wraps basicfont from
// golang.org/x/image; any font.Face can be used via FaceSource.
//
// # Chip Select
//
// By default the driver asserts CS once during init and leaves it asserted
// for the device's lifetime, which avoids per-transaction pin toggling. Set
// Opts.SharedBus when other devices share the bus.
//
// # Datasheet
//
// For detailed register descriptions and timing information, see:
// https://www.rhydolabz.com/documents/33/ST7789.pdf
//
// # Compatibility with periph.io
//
// This driver implements the display.Drawer interface from periph.io:
// https://pkg.go.dev/periph.io/x/conn/v3/display
//
// It can be used with any periph.io tool or library expecting a
// display.Drawer.
package st77xx
