package locate

import (
	"errors"
	"image"
	gomath "math"
)

// ErrCropTooLarge is returned when the template does not fit in the world.
var ErrCropTooLarge = errors.New("template larger than reference world")

// MatchResult is the best template position in a world image.
type MatchResult struct {
	// Loc is the top-left corner of the best match, in world pixels.
	Loc image.Point

	// Score is the normalized correlation at Loc, in [-1, 1].
	Score float64
}

// Matcher locates a grayscale template inside a grayscale world image.
type Matcher interface {
	Match(world, template *image.Gray) (MatchResult, error)
}

// NCCMatcher is a pure Go zero-mean normalized cross-correlation matcher.
// Window sums come from integral images; the cross term is computed directly.
type NCCMatcher struct{}

// Match slides template over every position where it fits entirely inside
// world and returns the first position with the highest score.
func (NCCMatcher) Match(world, template *image.Gray) (MatchResult, error) {
	ww, wh := world.Rect.Dx(), world.Rect.Dy()
	tw, th := template.Rect.Dx(), template.Rect.Dy()
	if tw == 0 || th == 0 {
		return MatchResult{}, errors.New("empty template")
	}
	if tw > ww || th > wh {
		return MatchResult{}, ErrCropTooLarge
	}

	n := float64(tw * th)

	// Zero-mean template.
	var tsum float64
	for y := 0; y < th; y++ {
		row := template.Pix[y*template.Stride : y*template.Stride+tw]
		for _, v := range row {
			tsum += float64(v)
		}
	}
	tmean := tsum / n
	tz := make([]float64, tw*th)
	var tvar float64
	for y := 0; y < th; y++ {
		row := template.Pix[y*template.Stride : y*template.Stride+tw]
		for x, v := range row {
			d := float64(v) - tmean
			tz[y*tw+x] = d
			tvar += d * d
		}
	}

	sum, sq := integral(world)
	stride := ww + 1

	best := MatchResult{Score: gomath.Inf(-1)}
	for y := 0; y+th <= wh; y++ {
		for x := 0; x+tw <= ww; x++ {
			s := windowSum(sum, stride, x, y, tw, th)
			s2 := windowSum(sq, stride, x, y, tw, th)
			ivar := s2 - s*s/n

			var score float64
			denom := gomath.Sqrt(tvar * ivar)
			if denom > 1e-9 {
				var cross float64
				for ty := 0; ty < th; ty++ {
					row := world.Pix[(y+ty)*world.Stride+x : (y+ty)*world.Stride+x+tw]
					trow := tz[ty*tw : ty*tw+tw]
					for i, v := range row {
						cross += trow[i] * float64(v)
					}
				}
				score = cross / denom
			}
			if score > best.Score {
				best = MatchResult{Loc: image.Pt(x, y), Score: score}
			}
		}
	}
	return best, nil
}

// integral returns summed-area tables of pixel values and squared values,
// each (w+1)*(h+1) with a zero first row and column.
func integral(img *image.Gray) (sum, sq []float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	stride := w + 1
	sum = make([]float64, stride*(h+1))
	sq = make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rs, rq float64
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x, v := range row {
			f := float64(v)
			rs += f
			rq += f * f
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + rs
			sq[(y+1)*stride+x+1] = sq[y*stride+x+1] + rq
		}
	}
	return sum, sq
}

func windowSum(t []float64, stride, x, y, w, h int) float64 {
	return t[(y+h)*stride+x+w] - t[y*stride+x+w] - t[(y+h)*stride+x] + t[y*stride+x]
}
