package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// MarkerDetector finds the agent marker as the centroid of the largest
// blob inside an HSV range.
type MarkerDetector struct {
	Range HSVRange
}

// NewMarkerDetector returns a detector for the cyan minimap marker.
func NewMarkerDetector() MarkerDetector {
	return MarkerDetector{Range: CyanRange}
}

// FindMarker implements locate.MarkerFinder.
func (d MarkerDetector) FindMarker(img image.Image) (image.Point, bool) {
	bgr, err := imageToMat(img)
	if err != nil {
		return image.Point{}, false
	}
	defer bgr.Close()

	mask := hsvMask(bgr, d.Range)
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best, bestArea := -1, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return image.Point{}, false
	}
	return centroid(contours.At(best).ToPoints())
}

// centroid returns the area centroid of a closed polygon, truncated to
// integer pixels. Degenerate polygons report false.
func centroid(pts []image.Point) (image.Point, bool) {
	var m00, m10, m01 float64
	n := len(pts)
	for i := 0; i < n; i++ {
		p, q := pts[i], pts[(i+1)%n]
		cross := float64(p.X*q.Y - q.X*p.Y)
		m00 += cross
		m10 += float64(p.X+q.X) * cross
		m01 += float64(p.Y+q.Y) * cross
	}
	if m00 == 0 {
		return image.Point{}, false
	}
	// Orientation cancels out in the ratios.
	cx := m10 / (3 * m00)
	cy := m01 / (3 * m00)
	return image.Pt(int(cx), int(cy)), true
}
