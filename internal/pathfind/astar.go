// Package pathfind computes routes over a walkability grid.
package pathfind

import (
	"container/heap"
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Pathfinding errors.
var (
	ErrStartBlocked    = errors.New("start position is not walkable")
	ErrGoalUnreachable = errors.New("no walkable cell near goal")
	ErrNotFound        = errors.New("no path found")
)

// Grid is the walkability surface searched by the Finder.
type Grid interface {
	Width() int
	Height() int
	Walkable(x, y int) bool
}

const (
	straightCost = 1.0
	diagonalCost = gomath.Sqrt2
)

// pathNode represents a node in the A* search.
type pathNode struct {
	x, y   int
	g      float64 // Cost from start
	f      float64 // g + heuristic
	seq    uint64  // Insertion order, breaks ties deterministically
	parent *pathNode
	index  int // Index in heap
	closed bool
}

// pathHeap implements a priority queue ordered by f, then insertion order.
type pathHeap []*pathNode

func (h pathHeap) Len() int { return len(h) }
func (h pathHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h pathHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pathHeap) Push(x interface{}) {
	n := len(*h)
	node := x.(*pathNode)
	node.index = n
	*h = append(*h, node)
}

func (h *pathHeap) Pop() interface{} {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[0 : n-1]
	return node
}

// Options tunes the search.
type Options struct {
	// MaxIterations bounds node expansions. Zero means width*height.
	MaxIterations int

	// RingStep and RingMax control the expanding ring search used when the
	// goal is not walkable: radii RingStep, 2*RingStep, ... below RingMax.
	RingStep int
	RingMax  int

	// AngleStep is the angular resolution of each ring, in degrees.
	AngleStep int
}

// DefaultOptions returns the standard search options.
func DefaultOptions() Options {
	return Options{
		RingStep:  5,
		RingMax:   100,
		AngleStep: 15,
	}
}

// Result is the outcome of a successful search.
type Result struct {
	// Raw is the cell-by-cell path from start to Goal, both included.
	Raw []math.Point

	// Goal is the effective goal. It differs from the requested goal when
	// GoalAdjusted is set.
	Goal         math.Point
	GoalAdjusted bool

	Iterations int
}

// Finder runs A* over a Grid.
type Finder struct {
	grid   Grid
	width  int
	height int
	opts   Options
}

// NewFinder creates a new pathfinder.
func NewFinder(grid Grid, opts Options) *Finder {
	if grid == nil {
		return nil
	}
	d := DefaultOptions()
	if opts.RingStep <= 0 {
		opts.RingStep = d.RingStep
	}
	if opts.RingMax <= 0 {
		opts.RingMax = d.RingMax
	}
	if opts.AngleStep <= 0 {
		opts.AngleStep = d.AngleStep
	}
	return &Finder{
		grid:   grid,
		width:  grid.Width(),
		height: grid.Height(),
		opts:   opts,
	}
}

// Grid returns the grid the finder searches.
func (pf *Finder) Grid() Grid { return pf.grid }

// FindPath finds a path from start to goal using A*.
//
// Moves are 8-connected; diagonal moves may not cut the corner between two
// cells when either orthogonal neighbor is blocked. An unwalkable goal is
// replaced by the nearest walkable cell found by NearestWalkable.
func (pf *Finder) FindPath(start, goal math.Point) (Result, error) {
	if pf == nil {
		return Result{}, ErrNotFound
	}
	if !pf.IsWalkable(start.X, start.Y) {
		return Result{}, fmt.Errorf("%w: %s", ErrStartBlocked, start)
	}

	res := Result{Goal: goal}
	if !pf.IsWalkable(goal.X, goal.Y) {
		adjusted, ok := pf.NearestWalkable(goal)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrGoalUnreachable, goal)
		}
		res.Goal = adjusted
		res.GoalAdjusted = true
		goal = adjusted
	}

	if start == goal {
		res.Raw = []math.Point{start}
		return res, nil
	}

	openSet := &pathHeap{}
	heap.Init(openSet)

	nodes := make([]*pathNode, pf.width*pf.height)
	var seq uint64

	startNode := &pathNode{
		x: start.X,
		y: start.Y,
		f: heuristic(start.X, start.Y, goal.X, goal.Y),
	}
	heap.Push(openSet, startNode)
	nodes[pf.key(start.X, start.Y)] = startNode

	// 8-way movement, cardinal directions at even indices.
	directions := [8][2]int{
		{0, 1},   // S
		{-1, 1},  // SW
		{-1, 0},  // W
		{-1, -1}, // NW
		{0, -1},  // N
		{1, -1},  // NE
		{1, 0},   // E
		{1, 1},   // SE
	}

	maxIterations := pf.opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = pf.width * pf.height
	}
	iterations := 0

	for openSet.Len() > 0 && iterations < maxIterations {
		iterations++

		current := heap.Pop(openSet).(*pathNode)
		if current.x == goal.X && current.y == goal.Y {
			res.Raw = reconstructPath(current)
			res.Iterations = iterations
			return res, nil
		}
		current.closed = true

		for i, dir := range directions {
			nx, ny := current.x+dir[0], current.y+dir[1]
			if !pf.IsWalkable(nx, ny) {
				continue
			}

			moveCost := straightCost
			if i%2 == 1 {
				moveCost = diagonalCost
				if !pf.grid.Walkable(current.x+dir[0], current.y) ||
					!pf.grid.Walkable(current.x, current.y+dir[1]) {
					continue
				}
			}

			g := current.g + moveCost
			k := pf.key(nx, ny)
			neighbor := nodes[k]
			switch {
			case neighbor == nil:
				seq++
				neighbor = &pathNode{
					x:      nx,
					y:      ny,
					g:      g,
					f:      g + heuristic(nx, ny, goal.X, goal.Y),
					seq:    seq,
					parent: current,
				}
				nodes[k] = neighbor
				heap.Push(openSet, neighbor)
			case neighbor.closed:
				continue
			case g < neighbor.g:
				// Found better path
				neighbor.f += g - neighbor.g
				neighbor.g = g
				neighbor.parent = current
				heap.Fix(openSet, neighbor.index)
			}
		}
	}

	return Result{}, fmt.Errorf("%w: %s -> %s after %d iterations", ErrNotFound, start, goal, iterations)
}

// IsWalkable checks bounds and walkability of a cell.
func (pf *Finder) IsWalkable(x, y int) bool {
	if pf == nil || !pf.inBounds(x, y) {
		return false
	}
	return pf.grid.Walkable(x, y)
}

// heuristic is the Euclidean distance between two cells.
func heuristic(x1, y1, x2, y2 int) float64 {
	return gomath.Hypot(float64(x2-x1), float64(y2-y1))
}

func (pf *Finder) inBounds(x, y int) bool {
	return x >= 0 && x < pf.width && y >= 0 && y < pf.height
}

func (pf *Finder) key(x, y int) int {
	return y*pf.width + x
}

func reconstructPath(node *pathNode) []math.Point {
	var path []math.Point
	for node != nil {
		path = append(path, math.Point{X: node.x, Y: node.y})
		node = node.parent
	}
	// Reverse path (it's built from goal to start)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
