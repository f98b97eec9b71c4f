// navtool is a CLI utility for inspecting rasters, routes and position fixes
// offline.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Faultbox/rucoy-nav/internal/assets"
	"github.com/Faultbox/rucoy-nav/internal/config"
	"github.com/Faultbox/rucoy-nav/internal/debug"
	"github.com/Faultbox/rucoy-nav/internal/locate"
	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/internal/raster"
	"github.com/Faultbox/rucoy-nav/internal/viewport"
	"github.com/Faultbox/rucoy-nav/internal/vision"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "raster":
		err = cmdRaster(args)
	case "path", "route":
		err = cmdPath(args)
	case "project":
		err = cmdProject(args)
	case "locate":
		err = cmdLocate(args)
	case "zones":
		err = cmdZones(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`navtool - offline navigation utility

Usage:
  navtool <command> [options]

Commands:
  raster  [-config f] [-map m] [-margin n] [-no-cache]   Build the walkability raster and print stats
  path    [-config f] -from x,y -to x,y [-png out.png]   Plan a route and print its waypoints
  project [-config f] -at x,y (-world x,y | -screen x,y) Convert between world and screen pixels
  locate  [-config f] -crop minimap.png [-frame]         Estimate a position from a minimap image
  zones   [-config f]                                    List the zone table

Examples:
  navtool raster -map world_map.png -margin 3
  navtool path -from 379,1147 -to 374,1342 -png route.png
  navtool project -at 379,1147 -world 420,1160
  navtool locate -crop minimap.png`)
}

// loadConfig returns the defaults, or path merged over them.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

func newAssets(cfg *config.Config) *assets.Manager {
	m := assets.NewManager()
	for _, dir := range cfg.Data.Dirs {
		if err := m.AddDir(dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return m
}

// loadRaster builds or reads the configured raster.
func loadRaster(cfg *config.Config, useCache bool) (*raster.Raster, bool, error) {
	opts, err := cfg.RasterOptions()
	if err != nil {
		return nil, false, err
	}
	m := newAssets(cfg)
	defer m.Close()

	img, err := m.Image(cfg.Data.ReferenceMap)
	if err != nil {
		return nil, false, err
	}
	cachePath := ""
	if useCache && cfg.Data.Cache != "" {
		cachePath = m.WritePath(cfg.Data.Cache)
	}
	r, hit, err := raster.LoadCached(img, cachePath, opts)
	if r == nil {
		return nil, false, err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return r, hit, nil
}

func cmdRaster(args []string) error {
	fs := flag.NewFlagSet("raster", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	mapPath := fs.String("map", "", "Reference map (overrides config)")
	margin := fs.Int("margin", -1, "Safety margin in world pixels (overrides config)")
	threshold := fs.Int("threshold", -1, "Walkable channel threshold (overrides config)")
	noCache := fs.Bool("no-cache", false, "Neither read nor write the raster cache")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *mapPath != "" {
		cfg.Data.ReferenceMap = *mapPath
	}
	if *margin >= 0 {
		cfg.Data.Margin = *margin
	}
	if *threshold >= 0 {
		cfg.Data.Threshold = *threshold
	}

	r, hit, err := loadRaster(cfg, !*noCache)
	if err != nil {
		return err
	}

	s := r.Stats()
	fmt.Printf("Map:       %s\n", cfg.Data.ReferenceMap)
	fmt.Printf("Size:      %dx%d\n", s.Width, s.Height)
	fmt.Printf("Margin:    %d\n", s.Margin)
	fmt.Printf("Cached:    %v\n", hit)
	fmt.Printf("Walkable:  %d (%.2f%%)\n", s.Walkable, s.Percent())
	fmt.Printf("Base:      %d\n", s.BaseWalkable)

	if len(s.Regions) > 0 {
		fmt.Println()
		fmt.Println("Cells by zone:")
		ids := make([]int, 0, len(s.Regions))
		for id := range s.Regions {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Printf("  %2d %-18s %d\n", id, r.Palette().Name(id), s.Regions[id])
		}
	}
	return nil
}

// planRoute plans on the margin raster and falls back to the base raster.
func planRoute(r *raster.Raster, nc pathfindSettings, start, goal math.Point) (pathfind.Route, bool, error) {
	route, err := pathfind.NewFinder(r, nc.search).Plan(start, goal, nc.simplify)
	if err == nil {
		return route, false, nil
	}
	route, berr := pathfind.NewFinder(r.Base(), nc.search).Plan(start, goal, nc.simplify)
	if berr != nil {
		return pathfind.Route{}, false, fmt.Errorf("%w; without margin: %w", err, berr)
	}
	return route, true, nil
}

type pathfindSettings struct {
	search   pathfind.Options
	simplify pathfind.SimplifyOptions
}

func cmdPath(args []string) error {
	fs := flag.NewFlagSet("path", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	from := fs.String("from", "", "Start world position x,y")
	to := fs.String("to", "", "Goal world position x,y")
	pngOut := fs.String("png", "", "Write a route overlay PNG")
	fs.Parse(args)

	if *from == "" || *to == "" {
		return errors.New("usage: navtool path -from x,y -to x,y")
	}
	start, err := math.ParsePoint(*from)
	if err != nil {
		return err
	}
	goal, err := math.ParsePoint(*to)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	r, _, err := loadRaster(cfg, true)
	if err != nil {
		return err
	}

	nc := cfg.NavConfig()
	geom := cfg.Geometry()
	planner := viewport.NewPlanner(r.Base(), nc.Planner)
	maxClick := planner.MaxClick(geom)
	nc.Simplify.MaxSpacing = min(nc.Simplify.MaxSpacing, maxClick)
	nc.Simplify.MinSpacing = min(nc.Simplify.MinSpacing, nc.Simplify.MaxSpacing)

	route, fallback, err := planRoute(r, pathfindSettings{nc.Pathfind, nc.Simplify}, start, goal)
	if err != nil {
		return err
	}

	fmt.Printf("Start:     %s\n", start)
	fmt.Printf("Goal:      %s", route.Goal)
	if route.GoalAdjusted {
		fmt.Printf(" (requested %s)", route.Requested)
	}
	fmt.Println()
	fmt.Printf("Margin:    %v\n", !fallback)
	fmt.Printf("Raw:       %d cells\n", len(route.Raw))
	fmt.Printf("Length:    %.1f\n", route.Length())
	fmt.Printf("Waypoints: %d (spacing %.0f..%.0f)\n", route.Len(), nc.Simplify.MinSpacing, nc.Simplify.MaxSpacing)
	for i, wp := range route.Waypoints {
		fmt.Printf("  %3d %s\n", i, wp)
	}

	planner.SetRoute(route)
	view := geom.At(start)
	plan := planner.Plan(view)
	fmt.Printf("First tap: screen %s -> world %s (index %d, direct %v)\n",
		plan.Screen, plan.Target, plan.Index, plan.Direct)

	if *pngOut != "" {
		overlay := debug.RouteOverlay{Raster: r, Route: route, View: &view}
		if err := overlay.WritePNG(*pngOut); err != nil {
			return err
		}
		fmt.Printf("Overlay:   %s\n", *pngOut)
	}
	return nil
}

func cmdProject(args []string) error {
	fs := flag.NewFlagSet("project", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	at := fs.String("at", "", "Believed world position x,y")
	world := fs.String("world", "", "World position to project onto the screen")
	screen := fs.String("screen", "", "Screen position to project into the world")
	fs.Parse(args)

	if *at == "" || (*world == "") == (*screen == "") {
		return errors.New("usage: navtool project -at x,y (-world x,y | -screen x,y)")
	}
	believed, err := math.ParsePoint(*at)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	s := cfg.Geometry().At(believed)

	fov := s.FieldOfView()
	fmt.Printf("Believed:  %s\n", believed)
	fmt.Printf("FOV:       ±%.0f x ±%.0f world px\n", fov.X, fov.Y)
	fmt.Printf("Visible:   %v\n", s.VisibleWorld())
	fmt.Printf("Clickable: %v (max click %.0f)\n", s.Clickable(), s.MaxClickDistance())

	if *world != "" {
		w, err := math.ParsePoint(*world)
		if err != nil {
			return err
		}
		p := s.WorldToScreen(w)
		fmt.Printf("World %s -> screen %s (visible %v, clickable %v)\n",
			w, p, s.InFieldOfView(w), s.IsClickable(p))
		return nil
	}
	p, err := math.ParsePoint(*screen)
	if err != nil {
		return err
	}
	fmt.Printf("Screen %s -> world %s (clickable %v)\n", p, s.ScreenToWorld(p), s.IsClickable(p))
	return nil
}

func cmdLocate(args []string) error {
	fs := flag.NewFlagSet("locate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	cropPath := fs.String("crop", "", "Minimap image")
	frame := fs.Bool("frame", false, "Image is a full screenshot; crop the configured minimap region")
	levels := fs.String("levels", "", "Levels in_min,in_max,out_min,out_max (overrides config)")
	fs.Parse(args)

	if *cropPath == "" {
		return errors.New("usage: navtool locate -crop minimap.png")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *levels != "" {
		l, err := parseLevels(*levels)
		if err != nil {
			return err
		}
		cfg.Levels = l
	}

	img, err := raster.DecodeImage(*cropPath)
	if err != nil {
		return err
	}
	if *frame {
		img = locate.Crop(img, cfg.Minimap.Region.Rect())
	}

	m := newAssets(cfg)
	defer m.Close()
	worldName := cfg.Data.MatchMap
	if worldName == "" {
		worldName = cfg.Data.ReferenceMap
	}
	world, err := m.Image(worldName)
	if err != nil {
		return err
	}

	var matcher locate.Matcher = locate.NCCMatcher{}
	if cfg.Minimap.Matcher == "opencv" {
		tm := vision.NewTemplateMatcher()
		defer tm.Close()
		matcher = tm
	}
	est, err := locate.NewEstimator(world, locate.EstimatorOptions{
		Ratio:   cfg.Minimap.Ratio,
		Matcher: matcher,
	})
	if err != nil {
		return err
	}

	processed := cfg.LevelsConfig().Apply(img)
	marker, found := image.Point{}, false
	if cfg.Minimap.Marker == "cyan" {
		marker, found = vision.NewMarkerDetector().FindMarker(processed)
	}
	if !found {
		marker = image.Pt(processed.Rect.Dx()/2, processed.Rect.Dy()/2)
	}

	fix, err := est.Estimate(processed, marker)
	if err != nil {
		return err
	}

	palette, err := cfg.Palette()
	if err != nil {
		return err
	}
	fmt.Printf("Marker:     %v (detected %v)\n", marker, found)
	fmt.Printf("Offset:     %v\n", fix.Offset)
	fmt.Printf("Position:   %s\n", fix.Pos)
	fmt.Printf("Score:      %.4f\n", fix.Score)
	fmt.Printf("Confidence: %d\n", fix.Confidence)
	if ref, err := m.Image(cfg.Data.ReferenceMap); err == nil {
		b := ref.Bounds()
		c := color.RGBAModel.Convert(ref.At(b.Min.X+fix.Pos.X, b.Min.Y+fix.Pos.Y)).(color.RGBA)
		fmt.Printf("Zone:       %s\n", palette.Name(palette.Classify(c)))
	}
	return nil
}

func cmdZones(args []string) error {
	fs := flag.NewFlagSet("zones", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	p, err := cfg.Palette()
	if err != nil {
		return err
	}
	fmt.Printf("%-3s %-18s %-8s %s\n", "ID", "NAME", "COLOR", "SPAWN")
	for _, z := range p.Zones {
		fmt.Printf("%-3d %-18s #%02x%02x%02x %s\n", z.ID, z.Name, z.Color.R, z.Color.G, z.Color.B, z.Spawn)
	}
	return nil
}

// parseLevels parses "in_min,in_max,out_min,out_max".
func parseLevels(s string) (config.LevelsConfig, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return config.LevelsConfig{}, fmt.Errorf("invalid levels %q: want 4 values", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return config.LevelsConfig{}, fmt.Errorf("invalid levels %q: %w", s, err)
		}
		v[i] = f
	}
	return config.LevelsConfig{InputMin: v[0], InputMax: v[1], OutputMin: v[2], OutputMax: v[3]}, nil
}
