package danfe

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
)

// Bit-image commands: select 8-dot single-density mode, tighten the
// line feed to the stripe height while printing, restore after.
var (
	cmdSelectBitImage = []byte{0x1B, 0x2A, 0x00}
	cmdLineSpacing8   = []byte{0x1B, 0x33, 0x08}
	cmdLineSpacingDef = []byte{0x1B, 0x32}
)

// rasterize prints an image as stripes of 8 vertical dots. The image
// is first reduced to pure black and white with error-diffusion
// dithering so grayscale anti-aliasing from the code generator does
// not smear on thermal paper.
func rasterize(buf *bytes.Buffer, img image.Image) {
	mono := dither(img)
	bounds := mono.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	buf.Write(cmdLineSpacing8)
	for top := 0; top < height; top += 8 {
		buf.Write(cmdSelectBitImage)
		buf.WriteByte(byte(width & 0xFF))
		buf.WriteByte(byte(width >> 8))

		for x := 0; x < width; x++ {
			var column byte
			for bit := 0; bit < 8; bit++ {
				y := top + bit
				if y >= height {
					break
				}
				if isBlack(mono, bounds.Min.X+x, bounds.Min.Y+y) {
					column |= 0x80 >> bit
				}
			}
			buf.WriteByte(column)
		}
		buf.WriteByte(0x0A)
	}
	buf.Write(cmdLineSpacingDef)
}

// dither reduces img to a two-color palette with Floyd-Steinberg
// error diffusion
func dither(img image.Image) *image.Paletted {
	palette := color.Palette{color.White, color.Black}
	dst := image.NewPaletted(img.Bounds(), palette)
	draw.FloydSteinberg.Draw(dst, img.Bounds(), img, img.Bounds().Min)
	return dst
}

func isBlack(img *image.Paletted, x, y int) bool {
	return img.ColorIndexAt(x, y) == 1
}
