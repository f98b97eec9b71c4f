package main

import (
	"image"
	"testing"

	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/internal/raster"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

func TestParseLevels(t *testing.T) {
	got, err := parseLevels("0.1, 0.9,0,1")
	if err != nil {
		t.Fatalf("parseLevels() error = %v", err)
	}
	if got.InputMin != 0.1 || got.InputMax != 0.9 || got.OutputMin != 0 || got.OutputMax != 1 {
		t.Errorf("parseLevels() = %+v", got)
	}

	for _, bad := range []string{"0,1", "a,b,c,d", ""} {
		if _, err := parseLevels(bad); err == nil {
			t.Errorf("parseLevels(%q) succeeded", bad)
		}
	}
}

func TestPlanRoute_FallsBackToBase(t *testing.T) {
	// A 3-cell corridor that a margin of 2 closes completely.
	const w, h = 40, 20
	mask := make([]bool, w*h)
	for y := 9; y <= 11; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = true
		}
	}
	base := raster.FromMask(w, h, mask)
	img := maskImage(w, h, mask)
	r, err := raster.Build(img, raster.Options{Threshold: 10, Margin: 2})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	settings := pathfindSettings{pathfind.DefaultOptions(), pathfind.SimplifyOptions{MinSpacing: 5, MaxSpacing: 10}}

	route, fallback, err := planRoute(r, settings, math.Pt(2, 10), math.Pt(37, 10))
	if err != nil {
		t.Fatalf("planRoute() error = %v", err)
	}
	if !fallback {
		t.Error("expected the base raster fallback")
	}
	if route.Goal != math.Pt(37, 10) {
		t.Errorf("goal = %v", route.Goal)
	}

	if _, fallback, err := planRoute(base, settings, math.Pt(2, 10), math.Pt(37, 10)); err != nil || fallback {
		t.Errorf("planRoute(base) fallback = %v, err = %v", fallback, err)
	}
}

func maskImage(w, h int, mask []bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, ok := range mask {
		if ok {
			img.Pix[i] = 255
		}
	}
	return img
}
