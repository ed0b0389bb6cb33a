// Package image1bit provides a 1-bit-per-pixel image format for the ST77xx
// driver's memory-constrained monochrome framebuffer mode.
//
// Each byte packs 8 horizontally adjacent pixels, most significant bit
// leftmost. A 128×160 panel therefore needs only 2560 bytes of framebuffer
// instead of 40960 bytes in RGB565. The driver expands each byte to its
// 16-byte RGB565 run during flush using a precomputed table.
//
// Memory layout example for an 8-pixel row:
//
//	Pixels: 0 1 2 3 4 5 6 7
//	Values: 1 0 1 0 0 0 0 1
//	Byte:   0xA1
//
// This package provides:
//
// - Bit: a binary color type (On/Off)
// - BitModel: a color model for converting standard Go colors to Bit
// - HorizontalMSB: an image.Image/draw.Image implementation in panel bit order
//
// Example usage:
//
//	img := image1bit.NewHorizontalMSB(image.Rect(0, 0, 128, 160))
//	img.SetBit(10, 20, image1bit.On)
//	if img.BitAt(10, 20) {
//		// pixel is lit
//	}
package image1bit
