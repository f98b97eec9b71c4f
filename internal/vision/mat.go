// Package vision holds the OpenCV-backed parts of the image pipeline:
// template matching, marker detection and motion sensing.
package vision

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("empty image")

// imageToMat converts img into a BGR Mat. The caller closes the result.
func imageToMat(img image.Image) (gocv.Mat, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), ErrEmptyImage
	}

	buf := make([]byte, w*h*3)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			for x := 0; x < w; x++ {
				o := (y*w + x) * 3
				buf[o] = row[x*4+2]
				buf[o+1] = row[x*4+1]
				buf[o+2] = row[x*4]
			}
		}
	} else {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				o := (y*w + x) * 3
				buf[o] = uint8(bl >> 8)
				buf[o+1] = uint8(g >> 8)
				buf[o+2] = uint8(r >> 8)
			}
		}
	}
	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, buf)
}

// grayToMat converts a grayscale image into a single channel Mat.
func grayToMat(img *image.Gray) (gocv.Mat, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), ErrEmptyImage
	}
	buf := make([]byte, w*h)
	for y := 0; y < h; y++ {
		off := y * img.Stride
		copy(buf[y*w:(y+1)*w], img.Pix[off:off+w])
	}
	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, buf)
}

// hsvMask thresholds a BGR Mat in HSV space. The caller closes the result.
func hsvMask(bgr gocv.Mat, r HSVRange) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, r.lower(), r.upper(), &mask)
	return mask
}

// HSVRange is an inclusive OpenCV HSV range (H in 0..179).
type HSVRange struct {
	Lower [3]float64
	Upper [3]float64
}

// Marker and motion trail colors of the minimap.
var (
	CyanRange  = HSVRange{Lower: [3]float64{80, 100, 100}, Upper: [3]float64{100, 255, 255}}
	GreenRange = HSVRange{Lower: [3]float64{50, 180, 180}, Upper: [3]float64{70, 255, 255}}
)

func (r HSVRange) lower() gocv.Scalar {
	return gocv.NewScalar(r.Lower[0], r.Lower[1], r.Lower[2], 0)
}

func (r HSVRange) upper() gocv.Scalar {
	return gocv.NewScalar(r.Upper[0], r.Upper[1], r.Upper[2], 0)
}
