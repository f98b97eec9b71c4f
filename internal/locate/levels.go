package locate

import (
	"image"
	"image/draw"
	gomath "math"
)

// Levels is a per-channel contrast stretch. Inputs are fractions of full
// scale: channel values below InMin become OutMin, above InMax become
// OutMax, and values between are mapped linearly.
type Levels struct {
	InMin, InMax   float64
	OutMin, OutMax float64
}

// IdentityLevels leaves images unchanged.
func IdentityLevels() Levels {
	return Levels{InMin: 0, InMax: 1, OutMin: 0, OutMax: 1}
}

// Apply returns a processed copy of img. Alpha is preserved.
func (l Levels) Apply(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)

	lut := l.table()
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = lut[out.Pix[i]]
		out.Pix[i+1] = lut[out.Pix[i+1]]
		out.Pix[i+2] = lut[out.Pix[i+2]]
	}
	return out
}

func (l Levels) table() [256]uint8 {
	var lut [256]uint8
	span := l.InMax - l.InMin
	for v := 0; v < 256; v++ {
		f := float64(v) / 255
		var n float64
		switch {
		case f > l.InMax:
			n = 1
		case f < l.InMin:
			n = 0
		case span > 0:
			n = (f - l.InMin) / span
		default:
			n = f
		}
		o := (n*(l.OutMax-l.OutMin) + l.OutMin) * 255
		lut[v] = uint8(min(255, max(0, gomath.Round(o))))
	}
	return lut
}
