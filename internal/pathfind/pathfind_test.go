package pathfind

import (
	"errors"
	"image"
	"image/color"
	gomath "math"
	"testing"

	"github.com/Faultbox/rucoy-nav/internal/raster"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// mockGrid is a simple walkability grid for testing.
type mockGrid struct {
	w, h    int
	blocked map[math.Point]bool
}

func newMockGrid(width, height int, blocked [][2]int) *mockGrid {
	g := &mockGrid{w: width, h: height, blocked: make(map[math.Point]bool)}
	for _, b := range blocked {
		g.blocked[math.Pt(b[0], b[1])] = true
	}
	return g
}

func (g *mockGrid) Width() int  { return g.w }
func (g *mockGrid) Height() int { return g.h }
func (g *mockGrid) Walkable(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.w && y < g.h && !g.blocked[math.Pt(x, y)]
}

func TestFinder_FindPath_Simple(t *testing.T) {
	pf := NewFinder(newMockGrid(5, 5, nil), DefaultOptions())

	res, err := pf.FindPath(math.Pt(0, 0), math.Pt(4, 4))
	if err != nil {
		t.Fatalf("expected path, got %v", err)
	}

	path := res.Raw
	if path[0] != math.Pt(0, 0) {
		t.Errorf("path should start at (0,0), got %s", path[0])
	}
	if path[len(path)-1] != math.Pt(4, 4) {
		t.Errorf("path should end at (4,4), got %s", path[len(path)-1])
	}
	// Straight diagonal: 5 cells.
	if len(path) != 5 {
		t.Errorf("expected 5 cells, got %d", len(path))
	}
	if res.GoalAdjusted {
		t.Error("goal should not be adjusted")
	}
}

func TestFinder_FindPath_WithObstacle(t *testing.T) {
	blocked := [][2]int{
		{2, 0}, {2, 1}, {2, 2}, {2, 3},
	}
	pf := NewFinder(newMockGrid(5, 5, blocked), DefaultOptions())

	res, err := pf.FindPath(math.Pt(0, 2), math.Pt(4, 2))
	if err != nil {
		t.Fatalf("expected path around obstacle, got %v", err)
	}

	for _, p := range res.Raw {
		if p.X == 2 && p.Y < 4 {
			t.Errorf("path went through blocked cell at %s", p)
		}
	}
	assertConnected(t, res.Raw)
}

func TestFinder_FindPath_NoPath(t *testing.T) {
	blocked := [][2]int{
		{2, 0}, {2, 1}, {2, 2}, {2, 3}, {2, 4},
	}
	pf := NewFinder(newMockGrid(5, 5, blocked), DefaultOptions())

	_, err := pf.FindPath(math.Pt(0, 2), math.Pt(4, 2))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound when wall blocks path, got %v", err)
	}
}

func TestFinder_FindPath_SameStartGoal(t *testing.T) {
	pf := NewFinder(newMockGrid(5, 5, nil), DefaultOptions())

	res, err := pf.FindPath(math.Pt(2, 2), math.Pt(2, 2))
	if err != nil {
		t.Fatalf("expected path, got %v", err)
	}
	if len(res.Raw) != 1 {
		t.Errorf("expected single-point path, got %d points", len(res.Raw))
	}
}

func TestFinder_FindPath_StartBlocked(t *testing.T) {
	pf := NewFinder(newMockGrid(5, 5, [][2]int{{0, 0}}), DefaultOptions())

	for _, start := range []math.Point{{X: 0, Y: 0}, {X: -1, Y: 0}, {X: 10, Y: 10}} {
		if _, err := pf.FindPath(start, math.Pt(4, 4)); !errors.Is(err, ErrStartBlocked) {
			t.Errorf("start %s: expected ErrStartBlocked, got %v", start, err)
		}
	}
}

func TestFinder_FindPath_BlockedGoalAdjusted(t *testing.T) {
	// Goal sits inside a 9x9 blocked block; the first ring at radius 5
	// reaches walkable ground.
	var blocked [][2]int
	for y := 16; y <= 24; y++ {
		for x := 16; x <= 24; x++ {
			blocked = append(blocked, [2]int{x, y})
		}
	}
	pf := NewFinder(newMockGrid(40, 40, blocked), DefaultOptions())

	res, err := pf.FindPath(math.Pt(2, 2), math.Pt(20, 20))
	if err != nil {
		t.Fatalf("expected adjusted path, got %v", err)
	}
	if !res.GoalAdjusted {
		t.Fatal("expected GoalAdjusted")
	}
	if res.Goal != math.Pt(25, 20) {
		t.Errorf("adjusted goal = %s, want (25,20)", res.Goal)
	}
	if last := res.Raw[len(res.Raw)-1]; last != res.Goal {
		t.Errorf("path ends at %s, want %s", last, res.Goal)
	}
}

func TestFinder_FindPath_GoalUnreachable(t *testing.T) {
	// Only the start cell is walkable and no ring around the goal reaches it.
	var blocked [][2]int
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if x != 0 || y != 0 {
				blocked = append(blocked, [2]int{x, y})
			}
		}
	}
	pf := NewFinder(newMockGrid(20, 20, blocked), DefaultOptions())

	_, err := pf.FindPath(math.Pt(0, 0), math.Pt(19, 19))
	if !errors.Is(err, ErrGoalUnreachable) {
		t.Errorf("expected ErrGoalUnreachable, got %v", err)
	}
}

func TestFinder_FindPath_IterationBudget(t *testing.T) {
	pf := NewFinder(newMockGrid(50, 50, nil), Options{MaxIterations: 10})

	_, err := pf.FindPath(math.Pt(0, 0), math.Pt(49, 49))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound once the budget is spent, got %v", err)
	}
}

func TestFinder_DefaultBudgetCoversGrid(t *testing.T) {
	if n := DefaultOptions().MaxIterations; n != 0 {
		t.Fatalf("default MaxIterations = %d, want 0 (grid size)", n)
	}
	var wall [][2]int
	for y := 0; y < 39; y++ {
		wall = append(wall, [2]int{20, y})
	}
	pf := NewFinder(newMockGrid(40, 40, wall), DefaultOptions())

	res, err := pf.FindPath(math.Pt(0, 0), math.Pt(39, 0))
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if last := res.Raw[len(res.Raw)-1]; last != math.Pt(39, 0) {
		t.Errorf("path ends at %s, want (39,0)", last)
	}
}

func TestFinder_NoCornerCutting(t *testing.T) {
	// (1,0) and (0,1) blocked: the diagonal (0,0)->(1,1) must not be taken.
	pf := NewFinder(newMockGrid(3, 3, [][2]int{{1, 0}, {0, 1}}), DefaultOptions())

	_, err := pf.FindPath(math.Pt(0, 0), math.Pt(2, 2))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFinder_Deterministic(t *testing.T) {
	pf := NewFinder(newMockGrid(30, 30, [][2]int{{10, 10}, {11, 10}, {12, 10}}), DefaultOptions())

	first, err := pf.FindPath(math.Pt(0, 0), math.Pt(29, 20))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := pf.FindPath(math.Pt(0, 0), math.Pt(29, 20))
		if err != nil {
			t.Fatal(err)
		}
		if len(again.Raw) != len(first.Raw) {
			t.Fatalf("run %d: length %d, want %d", i, len(again.Raw), len(first.Raw))
		}
		for j := range again.Raw {
			if again.Raw[j] != first.Raw[j] {
				t.Fatalf("run %d: cell %d differs: %s vs %s", i, j, again.Raw[j], first.Raw[j])
			}
		}
	}
}

func TestLineOfSight(t *testing.T) {
	g := newMockGrid(20, 20, [][2]int{{10, 10}})

	tests := []struct {
		a, b math.Point
		want bool
	}{
		{math.Pt(0, 0), math.Pt(19, 19), false},
		{math.Pt(0, 0), math.Pt(19, 0), true},
		{math.Pt(0, 10), math.Pt(19, 10), false},
		{math.Pt(0, 11), math.Pt(19, 11), true},
		{math.Pt(5, 5), math.Pt(5, 5), true},
		{math.Pt(0, 0), math.Pt(25, 0), false},
	}
	for _, tt := range tests {
		if got := LineOfSight(g, tt.a, tt.b); got != tt.want {
			t.Errorf("LineOfSight(%s,%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLine_Endpoints(t *testing.T) {
	var cells []math.Point
	Line(math.Pt(3, 7), math.Pt(-2, 1), func(x, y int) bool {
		cells = append(cells, math.Pt(x, y))
		return true
	})
	if cells[0] != math.Pt(3, 7) || cells[len(cells)-1] != math.Pt(-2, 1) {
		t.Errorf("line endpoints = %s..%s", cells[0], cells[len(cells)-1])
	}
	assertConnected(t, cells)
}

func TestSimplify_Spacing(t *testing.T) {
	g := newMockGrid(400, 10, nil)
	var raw []math.Point
	for x := 0; x < 400; x++ {
		raw = append(raw, math.Pt(x, 5))
	}

	got := Simplify(g, raw, DefaultSimplifyOptions())
	if got[0] != raw[0] || got[len(got)-1] != raw[len(raw)-1] {
		t.Fatalf("simplified path must keep endpoints, got %v", got)
	}
	for i := 1; i < len(got)-1; i++ {
		d := got[i-1].Dist(got[i])
		if d < 50 || d > 100 {
			t.Errorf("segment %d spacing %.1f outside [50,100]", i, d)
		}
	}
	// 399 px in steps of at most 100.
	if len(got) != 5 {
		t.Errorf("expected 5 waypoints, got %d: %v", len(got), got)
	}
}

func TestSimplify_ShortPaths(t *testing.T) {
	g := newMockGrid(10, 10, nil)
	if got := Simplify(g, nil, DefaultSimplifyOptions()); len(got) != 0 {
		t.Errorf("nil path: got %v", got)
	}
	raw := []math.Point{math.Pt(0, 0), math.Pt(1, 1)}
	if got := Simplify(g, raw, DefaultSimplifyOptions()); len(got) != 2 {
		t.Errorf("two-point path: got %v", got)
	}
	// Everything closer than MinSpacing: falls back to raw steps then the end.
	raw = []math.Point{math.Pt(0, 0), math.Pt(1, 0), math.Pt(2, 0), math.Pt(3, 0)}
	got := Simplify(g, raw, DefaultSimplifyOptions())
	if got[len(got)-1] != math.Pt(3, 0) {
		t.Errorf("last waypoint = %s, want (3,0)", got[len(got)-1])
	}
}

// TestPlan_AroundBlock routes across a 1000x1000 world with a black
// 100x100 square in the way.
func TestPlan_AroundBlock(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 1000))
	for y := 0; y < 1000; y++ {
		for x := 0; x < 1000; x++ {
			if x >= 400 && x < 500 && y >= 400 && y < 500 {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{60, 140, 60, 255})
			}
		}
	}

	for _, margin := range []int{0, 5} {
		r, err := raster.Build(img, raster.Options{Threshold: 10, Margin: margin})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		pf := NewFinder(r, DefaultOptions())

		route, err := pf.Plan(math.Pt(0, 0), math.Pt(600, 600), DefaultSimplifyOptions())
		if err != nil {
			t.Fatalf("margin %d: Plan failed: %v", margin, err)
		}
		if route.GoalAdjusted {
			t.Errorf("margin %d: goal should not be adjusted", margin)
		}

		for _, p := range route.Raw {
			if p.X >= 400 && p.X < 500 && p.Y >= 400 && p.Y < 500 {
				t.Fatalf("margin %d: raw path enters the square at %s", margin, p)
			}
		}
		for i, wp := range route.Waypoints {
			if !r.Walkable(wp.X, wp.Y) {
				t.Errorf("margin %d: waypoint %d %s not walkable", margin, i, wp)
			}
			if d := distToSquare(wp); d < float64(margin) {
				t.Errorf("margin %d: waypoint %s only %.2f px from the square", margin, wp, d)
			}
			if i > 0 && !LineOfSight(r, route.Waypoints[i-1], wp) {
				t.Errorf("margin %d: no line of sight %s -> %s", margin, route.Waypoints[i-1], wp)
			}
		}
		if last := route.Waypoints[len(route.Waypoints)-1]; last != math.Pt(600, 600) {
			t.Errorf("margin %d: route ends at %s", margin, last)
		}
	}
}

func distToSquare(p math.Point) float64 {
	dx := gomath.Max(gomath.Max(400-float64(p.X), 0), float64(p.X)-499)
	dy := gomath.Max(gomath.Max(400-float64(p.Y), 0), float64(p.Y)-499)
	return gomath.Hypot(dx, dy)
}

func assertConnected(t *testing.T, path []math.Point) {
	t.Helper()
	for i := 1; i < len(path); i++ {
		d := path[i].Sub(path[i-1])
		if math.Abs(d.X) > 1 || math.Abs(d.Y) > 1 || (d.X == 0 && d.Y == 0) {
			t.Fatalf("cells %d and %d are not 8-adjacent: %s %s", i-1, i, path[i-1], path[i])
		}
	}
}
