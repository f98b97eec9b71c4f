package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/Faultbox/rucoy-nav/internal/locate"
)

// TemplateMatcher runs OpenCV's normalized correlation coefficient match.
// The reference Mat is converted once and reused while the same world
// image is passed in.
type TemplateMatcher struct {
	mu    sync.Mutex
	world *image.Gray
	mat   gocv.Mat
}

// NewTemplateMatcher returns an empty matcher. Close releases its Mat.
func NewTemplateMatcher() *TemplateMatcher {
	return &TemplateMatcher{mat: gocv.NewMat()}
}

// Match implements locate.Matcher.
func (m *TemplateMatcher) Match(world, tmpl *image.Gray) (locate.MatchResult, error) {
	if tmpl.Rect.Dx() > world.Rect.Dx() || tmpl.Rect.Dy() > world.Rect.Dy() {
		return locate.MatchResult{}, fmt.Errorf("%w: %v in %v", locate.ErrCropTooLarge, tmpl.Rect.Size(), world.Rect.Size())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.world != world {
		mat, err := grayToMat(world)
		if err != nil {
			return locate.MatchResult{}, fmt.Errorf("converting reference: %w", err)
		}
		m.mat.Close()
		m.mat = mat
		m.world = world
	}

	t, err := grayToMat(tmpl)
	if err != nil {
		return locate.MatchResult{}, fmt.Errorf("converting template: %w", err)
	}
	defer t.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(m.mat, t, &result, gocv.TmCcoeffNormed, mask)

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	return locate.MatchResult{Loc: maxLoc, Score: float64(maxVal)}, nil
}

// Close releases the cached reference.
func (m *TemplateMatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.world = nil
	return m.mat.Close()
}
