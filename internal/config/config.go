// Package config handles navigator configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/Faultbox/rucoy-nav/internal/locate"
	"github.com/Faultbox/rucoy-nav/internal/nav"
	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/internal/raster"
	"github.com/Faultbox/rucoy-nav/internal/viewport"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds all navigator settings.
type Config struct {
	Data        DataConfig        `yaml:"data"`
	Device      DeviceConfig      `yaml:"device"`
	Minimap     MinimapConfig     `yaml:"minimap"`
	Levels      LevelsConfig      `yaml:"levels"`
	Viewport    ViewportConfig    `yaml:"viewport"`
	Navigation  NavigationConfig  `yaml:"navigation"`
	Pathfinding PathfindingConfig `yaml:"pathfinding"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
	Debug       DebugConfig       `yaml:"debug"`

	// Zones overrides the built-in zone table when not empty.
	Zones []ZoneConfig `yaml:"zones"`
}

// DataConfig holds reference map paths and raster build settings.
type DataConfig struct {
	Dirs []string `yaml:"dirs"` // searched in reverse order

	// ReferenceMap is the colored world map walkability is derived from.
	ReferenceMap string `yaml:"reference_map"`

	// MatchMap is the grayscale world the minimap is matched against.
	// Empty uses ReferenceMap.
	MatchMap string `yaml:"match_map"`

	// Cache is the raster cache file; empty disables caching.
	Cache string `yaml:"cache"`

	Threshold int `yaml:"threshold"`
	Margin    int `yaml:"margin"`
}

// DeviceConfig selects the adb device.
type DeviceConfig struct {
	ADB             string        `yaml:"adb"`
	Serial          string        `yaml:"serial"`
	CaptureInterval time.Duration `yaml:"capture_interval"`
}

// RectConfig is a screen rectangle.
type RectConfig struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Rect converts to an image.Rectangle.
func (r RectConfig) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// PointConfig is a screen or world position.
type PointConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Point converts to a math.Point.
func (p PointConfig) Point() math.Point {
	return math.Pt(p.X, p.Y)
}

// MinimapConfig describes the minimap capture.
type MinimapConfig struct {
	Region        RectConfig    `yaml:"region"`
	UseMapButtons bool          `yaml:"use_map_buttons"`
	OpenMap       PointConfig   `yaml:"open_map"`
	CloseMap      PointConfig   `yaml:"close_map"`
	Settle        time.Duration `yaml:"settle"`
	Ratio         float64       `yaml:"ratio"`
	MinConfidence int           `yaml:"min_confidence"`

	// Matcher is "opencv" or "ncc".
	Matcher string `yaml:"matcher"`

	// Marker is "cyan" or "center".
	Marker string `yaml:"marker"`
}

// LevelsConfig is the contrast stretch applied to minimap crops.
type LevelsConfig struct {
	InputMin  float64 `yaml:"input_min"`
	InputMax  float64 `yaml:"input_max"`
	OutputMin float64 `yaml:"output_min"`
	OutputMax float64 `yaml:"output_max"`
}

// ViewportConfig is the on-screen view calibration.
type ViewportConfig struct {
	Region  RectConfig `yaml:"region"`
	MarginX int        `yaml:"margin_x"`
	MarginY int        `yaml:"margin_y"`
	ScaleX  float64    `yaml:"scale_x"`
	ScaleY  float64    `yaml:"scale_y"`

	// MotionRegion is the minimap crop watched for the walking trail.
	MotionRegion    RectConfig `yaml:"motion_region"`
	MotionThreshold float64    `yaml:"motion_threshold"`
	MotionExclusion int        `yaml:"motion_exclusion"`
	DisableMotion   bool       `yaml:"disable_motion"`
}

// NavigationConfig holds the dead-reckoning loop parameters.
type NavigationConfig struct {
	MaxMovesWithoutFix  int           `yaml:"max_moves_without_fix"`
	MotionStartTimeout  time.Duration `yaml:"motion_start_timeout"`
	MotionEndTimeout    time.Duration `yaml:"motion_end_timeout"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	ConfirmFrames       int           `yaml:"confirm_frames"`
	ArrivalTolerance    float64       `yaml:"arrival_tolerance"`
	StuckRadius         float64       `yaml:"stuck_radius"`
	StuckLimit          int           `yaml:"stuck_limit"`
	MaxStuckEscalations int           `yaml:"max_stuck_escalations"`
	SkipAhead           int           `yaml:"skip_ahead"`
	MaxSteps            int           `yaml:"max_steps"`
	MaxSkippedTicks     int           `yaml:"max_skipped_ticks"`
	MaxFixJump          float64       `yaml:"max_fix_jump"`
	MaxJumpRejects      int           `yaml:"max_jump_rejects"`
}

// PathfindingConfig holds search, simplification and click selection settings.
type PathfindingConfig struct {
	MaxIterations  int     `yaml:"max_iterations"`
	RingStep       int     `yaml:"ring_step"`
	RingMax        int     `yaml:"ring_max"`
	AngleStep      int     `yaml:"angle_step"`
	MinSpacing     float64 `yaml:"min_spacing"`
	MaxSpacing     float64 `yaml:"max_spacing"`
	MinClick       float64 `yaml:"min_click"`
	MaxClick       float64 `yaml:"max_click"`
	Neighborhood   int     `yaml:"neighborhood"`
	ResyncDistance float64 `yaml:"resync_distance"`
}

// TelemetryConfig controls the status server.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// DebugConfig controls diagnostic output.
type DebugConfig struct {
	DumpFrames    bool   `yaml:"dump_frames"`
	DumpDir       string `yaml:"dump_dir"`
	DumpThreshold int    `yaml:"dump_threshold"`
}

// ZoneConfig is one named region of the reference map.
type ZoneConfig struct {
	ID    int         `yaml:"id"`
	Name  string      `yaml:"name"`
	Color string      `yaml:"color"` // "#rrggbb"
	Spawn PointConfig `yaml:"spawn"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	nc := nav.DefaultConfig()
	geom := viewport.DefaultGeometry()
	loc := locate.DefaultLocalizerOptions()
	return &Config{
		Data: DataConfig{
			Dirs:         []string{"data"},
			ReferenceMap: "world_map.png",
			Cache:        "world_map.wlk",
			Threshold:    raster.DefaultThreshold,
			Margin:       raster.DefaultOptions().Margin,
		},
		Device: DeviceConfig{
			ADB:             "adb",
			CaptureInterval: 100 * time.Millisecond,
		},
		Minimap: MinimapConfig{
			Region:        rectConfig(loc.Region),
			UseMapButtons: true,
			OpenMap:       PointConfig{X: 1540, Y: 60},
			CloseMap:      PointConfig{X: 1540, Y: 60},
			Settle:        loc.Settle,
			Ratio:         locate.DefaultRatio,
			Matcher:       "opencv",
			Marker:        "cyan",
		},
		Levels: LevelsConfig{InputMin: 0, InputMax: 1, OutputMin: 0, OutputMax: 1},
		Viewport: ViewportConfig{
			Region:          rectConfig(geom.Region),
			MarginX:         geom.MarginX,
			MarginY:         geom.MarginY,
			ScaleX:          geom.ScaleX,
			ScaleY:          geom.ScaleY,
			MotionRegion:    RectConfig{X: 600, Y: 250, Width: 400, Height: 400},
			MotionThreshold: 0.005,
			MotionExclusion: 40,
		},
		Navigation: NavigationConfig{
			MaxMovesWithoutFix:  nc.MaxMovesWithoutFix,
			MotionStartTimeout:  nc.MotionStartTimeout,
			MotionEndTimeout:    nc.MotionEndTimeout,
			PollInterval:        nc.PollInterval,
			ConfirmFrames:       nc.ConfirmFrames,
			ArrivalTolerance:    nc.ArrivalTolerance,
			StuckRadius:         nc.StuckRadius,
			StuckLimit:          nc.StuckLimit,
			MaxStuckEscalations: nc.MaxStuckEscalations,
			SkipAhead:           nc.SkipAhead,
			MaxSteps:            nc.MaxSteps,
			MaxSkippedTicks:     nc.MaxSkippedTicks,
			MaxFixJump:          nc.MaxFixJump,
			MaxJumpRejects:      nc.MaxJumpRejects,
		},
		Pathfinding: PathfindingConfig{
			RingStep:       nc.Pathfind.RingStep,
			RingMax:        nc.Pathfind.RingMax,
			AngleStep:      nc.Pathfind.AngleStep,
			MinSpacing:     nc.Simplify.MinSpacing,
			MaxSpacing:     nc.Simplify.MaxSpacing,
			MinClick:       nc.Planner.MinClick,
			Neighborhood:   nc.Planner.Neighborhood,
			ResyncDistance: nc.Planner.ResyncDistance,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8765",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Debug: DebugConfig{
			DumpDir:       "frames",
			DumpThreshold: 70,
		},
	}
}

func rectConfig(r image.Rectangle) RectConfig {
	return RectConfig{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// NavConfig builds the engine parameters.
func (c *Config) NavConfig() nav.Config {
	n, p := c.Navigation, c.Pathfinding
	return nav.Config{
		MaxMovesWithoutFix:  n.MaxMovesWithoutFix,
		MotionStartTimeout:  n.MotionStartTimeout,
		MotionEndTimeout:    n.MotionEndTimeout,
		PollInterval:        n.PollInterval,
		ConfirmFrames:       n.ConfirmFrames,
		ArrivalTolerance:    n.ArrivalTolerance,
		StuckRadius:         n.StuckRadius,
		StuckLimit:          n.StuckLimit,
		MaxStuckEscalations: n.MaxStuckEscalations,
		SkipAhead:           n.SkipAhead,
		MaxSteps:            n.MaxSteps,
		MaxSkippedTicks:     n.MaxSkippedTicks,
		MaxFixJump:          n.MaxFixJump,
		MaxJumpRejects:      n.MaxJumpRejects,
		Pathfind: pathfind.Options{
			MaxIterations: p.MaxIterations,
			RingStep:      p.RingStep,
			RingMax:       p.RingMax,
			AngleStep:     p.AngleStep,
		},
		Simplify: pathfind.SimplifyOptions{
			MinSpacing: p.MinSpacing,
			MaxSpacing: p.MaxSpacing,
		},
		Planner: viewport.PlannerOptions{
			MinClick:       p.MinClick,
			MaxClick:       p.MaxClick,
			Neighborhood:   p.Neighborhood,
			ResyncDistance: p.ResyncDistance,
		},
	}
}

// Geometry builds the viewport calibration.
func (c *Config) Geometry() viewport.Geometry {
	v := c.Viewport
	return viewport.Geometry{
		Region:  v.Region.Rect(),
		MarginX: v.MarginX,
		MarginY: v.MarginY,
		ScaleX:  v.ScaleX,
		ScaleY:  v.ScaleY,
	}
}

// LevelsConfig builds the minimap contrast stretch.
func (c *Config) LevelsConfig() locate.Levels {
	l := c.Levels
	return locate.Levels{InMin: l.InputMin, InMax: l.InputMax, OutMin: l.OutputMin, OutMax: l.OutputMax}
}

// LocalizerOptions builds the minimap capture parameters.
func (c *Config) LocalizerOptions() locate.LocalizerOptions {
	m := c.Minimap
	return locate.LocalizerOptions{
		Region:        m.Region.Rect(),
		UseMapButtons: m.UseMapButtons,
		OpenMap:       m.OpenMap.Point(),
		CloseMap:      m.CloseMap.Point(),
		Settle:        m.Settle,
		Levels:        c.LevelsConfig(),
		MinConfidence: m.MinConfidence,
	}
}

// RasterOptions builds the raster construction parameters.
func (c *Config) RasterOptions() (raster.Options, error) {
	palette, err := c.Palette()
	if err != nil {
		return raster.Options{}, err
	}
	return raster.Options{
		Threshold: c.Data.Threshold,
		Margin:    c.Data.Margin,
		Palette:   palette,
	}, nil
}

// Palette returns the configured zone table, or the built-in one.
func (c *Config) Palette() (*raster.Palette, error) {
	if len(c.Zones) == 0 {
		return raster.DefaultPalette(), nil
	}
	p := &raster.Palette{Tolerance: raster.DefaultTolerance}
	for _, z := range c.Zones {
		col, err := raster.ParseHexColor(z.Color)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", z.Name, err)
		}
		p.Zones = append(p.Zones, raster.Zone{ID: z.ID, Name: z.Name, Color: col, Spawn: z.Spawn.Point()})
	}
	return p, nil
}

// Validate checks every section and reports the first problem.
func (c *Config) Validate() error {
	if c.Data.ReferenceMap == "" {
		return fmt.Errorf("%w: data.reference_map is empty", ErrInvalid)
	}
	if c.Data.Margin < 0 {
		return fmt.Errorf("%w: data.margin %d is negative", ErrInvalid, c.Data.Margin)
	}
	if c.Minimap.Region.Rect().Empty() {
		return fmt.Errorf("%w: minimap.region is empty", ErrInvalid)
	}
	if c.Minimap.Ratio <= 0 || c.Minimap.Ratio > 1 {
		return fmt.Errorf("%w: minimap.ratio %.3f not in (0, 1]", ErrInvalid, c.Minimap.Ratio)
	}
	switch c.Minimap.Matcher {
	case "opencv", "ncc":
	default:
		return fmt.Errorf("%w: minimap.matcher %q", ErrInvalid, c.Minimap.Matcher)
	}
	switch c.Minimap.Marker {
	case "cyan", "center":
	default:
		return fmt.Errorf("%w: minimap.marker %q", ErrInvalid, c.Minimap.Marker)
	}
	l := c.Levels
	if l.InputMin < 0 || l.InputMax > 1 || l.InputMin >= l.InputMax {
		return fmt.Errorf("%w: levels input range [%.2f, %.2f]", ErrInvalid, l.InputMin, l.InputMax)
	}
	if l.OutputMin < 0 || l.OutputMax > 1 || l.OutputMin > l.OutputMax {
		return fmt.Errorf("%w: levels output range [%.2f, %.2f]", ErrInvalid, l.OutputMin, l.OutputMax)
	}
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("%w: viewport: %w", ErrInvalid, err)
	}
	if err := c.NavConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.Palette(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
