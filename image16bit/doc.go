// Package image16bit provides the 16-bit RGB565 image format used by ST77xx
// TFT controllers.
//
// RGB565 packs a color into 16 bits: 5 bits red, 6 bits green, 5 bits blue.
// Pixels are stored big-endian, two bytes per pixel, row-major — exactly the
// byte order an ST77xx memory write expects, so a frame can be streamed to
// the controller without conversion.
//
// Memory layout example for a 2-pixel row:
//
//	Pixels: red            green
//	Values: 0xF800         0x07E0
//	Bytes:  0xF8 0x00      0x07 0xE0
//
// This package provides:
//
// - RGB565: a color type implementing color.Color
// - RGB565Model: a color model for converting standard Go colors to RGB565
// - Image: an image.Image/draw.Image implementation in wire byte order
//
// Example usage:
//
//	// Create a 240x240 image
//	img := image16bit.New(image.Rect(0, 0, 240, 240))
//
//	// Set a pixel to orange
//	img.SetRGB565(10, 20, image16bit.From(255, 128, 0))
//
//	// Use with standard Go image operations
//	draw.Draw(img, img.Bounds(), image.NewUniform(image16bit.White), image.Point{}, draw.Src)
package image16bit
