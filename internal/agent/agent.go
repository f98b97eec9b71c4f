// Package agent wires the navigation engine to a device, the reference maps
// and the telemetry server.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/rucoy-nav/internal/assets"
	"github.com/Faultbox/rucoy-nav/internal/capture"
	"github.com/Faultbox/rucoy-nav/internal/clock"
	"github.com/Faultbox/rucoy-nav/internal/config"
	"github.com/Faultbox/rucoy-nav/internal/debug"
	"github.com/Faultbox/rucoy-nav/internal/device"
	"github.com/Faultbox/rucoy-nav/internal/locate"
	"github.com/Faultbox/rucoy-nav/internal/nav"
	"github.com/Faultbox/rucoy-nav/internal/raster"
	"github.com/Faultbox/rucoy-nav/internal/telemetry"
	"github.com/Faultbox/rucoy-nav/internal/vision"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// ErrClosed is returned by operations on a closed agent.
var ErrClosed = errors.New("agent closed")

// Options overrides collaborators, mainly for tests.
type Options struct {
	// Device defaults to adb as configured.
	Device device.Device

	Clock  clock.Clock
	Logger *zap.Logger
}

// Agent owns every long-lived component of a navigator process.
type Agent struct {
	cfg    *config.Config
	logger *zap.Logger

	assets  *assets.Manager
	raster  *raster.Raster
	device  device.Device
	frames  *capture.Latest
	matcher *vision.TemplateMatcher

	localizer *locate.Localizer
	engine    *nav.Engine
	server    *telemetry.Server
	listener  net.Listener

	cancel context.CancelFunc
	closed atomic.Bool
}

// New builds an agent from cfg. Nothing is started until Start.
func New(cfg *config.Config, opts Options) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	a := &Agent{
		cfg:    cfg,
		logger: logger,
		assets: assets.NewManager(),
		device: opts.Device,
	}
	if err := a.build(clk); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	return a, nil
}

func (a *Agent) build(clk clock.Clock) error {
	cfg := a.cfg
	for _, dir := range cfg.Data.Dirs {
		if err := a.assets.AddDir(dir); err != nil {
			a.logger.Warn("skipping data dir", zap.Error(err))
		}
	}

	ropts, err := cfg.RasterOptions()
	if err != nil {
		return err
	}
	reference, err := a.assets.Image(cfg.Data.ReferenceMap)
	if err != nil {
		return fmt.Errorf("loading reference map: %w", err)
	}

	var cachePath string
	if cfg.Data.Cache != "" {
		cachePath = a.assets.WritePath(cfg.Data.Cache)
	}
	r, hit, err := raster.LoadCached(reference, cachePath, ropts)
	if r == nil {
		return fmt.Errorf("building raster: %w", err)
	}
	if err != nil {
		a.logger.Warn("raster cache not written", zap.Error(err))
	}
	a.raster = r

	stats := r.Stats()
	a.logger.Info("raster ready",
		zap.Int("width", r.Width()),
		zap.Int("height", r.Height()),
		zap.Int("margin", r.Margin()),
		zap.Bool("cached", hit),
		zap.Float64("walkable_pct", stats.Percent()))

	world := reference
	if cfg.Data.MatchMap != "" {
		if world, err = a.assets.Image(cfg.Data.MatchMap); err != nil {
			return fmt.Errorf("loading match map: %w", err)
		}
	}

	var matcher locate.Matcher = locate.NCCMatcher{}
	if cfg.Minimap.Matcher == "opencv" {
		a.matcher = vision.NewTemplateMatcher()
		matcher = a.matcher
	}
	est, err := locate.NewEstimator(world, locate.EstimatorOptions{
		Ratio:   cfg.Minimap.Ratio,
		Matcher: matcher,
		Regions: r.Region,
	})
	if err != nil {
		return fmt.Errorf("creating estimator: %w", err)
	}

	if a.device == nil {
		a.device = device.NewADB(cfg.Device.ADB, cfg.Device.Serial, a.logger.Named("adb"))
	}
	a.frames = capture.NewLatest(a.device, cfg.Device.CaptureInterval, a.logger.Named("capture"))

	var marker locate.MarkerFinder
	if cfg.Minimap.Marker == "cyan" {
		marker = vision.NewMarkerDetector()
	}
	a.localizer = locate.NewLocalizer(est, a.frames, a.device, marker, clk,
		cfg.LocalizerOptions(), a.logger.Named("locate"))

	if cfg.Debug.DumpFrames {
		dumper := debug.NewFrameDumper(cfg.Debug.DumpDir, "minimap", cfg.Debug.DumpThreshold, a.logger.Named("debug"))
		a.localizer.OnFrame = dumper.OnFrame
	}

	deps := nav.Deps{
		Localizer: a.localizer,
		Tapper:    a.device,
		Clock:     clk,
		Logger:    a.logger.Named("nav"),
	}
	if !cfg.Viewport.DisableMotion {
		md := vision.NewMotionDetector(a.frames, cfg.Viewport.MotionRegion.Rect(), cfg.LevelsConfig())
		if cfg.Viewport.MotionThreshold > 0 {
			md.Threshold = cfg.Viewport.MotionThreshold
		}
		if cfg.Viewport.MotionExclusion > 0 {
			md.ExclusionRadius = cfg.Viewport.MotionExclusion
		}
		deps.Motion = md
	}

	a.engine, err = nav.New(r, cfg.Geometry(), cfg.NavConfig(), deps)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	if cfg.Telemetry.Enabled {
		a.server = telemetry.NewServer(a.engine, a.logger.Named("telemetry"))
		a.engine.OnUpdate(a.server.Publish)
	}
	return nil
}

// Start launches frame capture and the telemetry server.
func (a *Agent) Start(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.frames.Start(ctx)

	if a.server != nil {
		ln, err := net.Listen("tcp", a.cfg.Telemetry.Addr)
		if err != nil {
			return fmt.Errorf("telemetry listen: %w", err)
		}
		a.listener = ln
		go func() {
			if err := a.server.Serve(ln); err != nil {
				a.logger.Warn("telemetry stopped", zap.Error(err))
			}
		}()
	}
	return nil
}

// Engine returns the navigation engine.
func (a *Agent) Engine() *nav.Engine { return a.engine }

// Raster returns the walkability raster.
func (a *Agent) Raster() *raster.Raster { return a.raster }

// TelemetryAddr returns the bound telemetry address, or nil.
func (a *Agent) TelemetryAddr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// GoTo walks to a world position.
func (a *Agent) GoTo(ctx context.Context, goal math.Point) (nav.Outcome, error) {
	if a.closed.Load() {
		return nav.Outcome{}, ErrClosed
	}
	a.logger.Info("navigating", zap.Stringer("goal", goal))
	out, err := a.engine.Run(ctx, goal)
	if err != nil {
		return out, err
	}
	a.logger.Info("arrived",
		zap.Stringer("position", out.Final.Position),
		zap.Int("steps", out.Steps),
		zap.Int("fixes", out.Fixes),
		zap.Duration("elapsed", out.Elapsed))
	return out, nil
}

// GoToZone walks to the spawn point of a named zone.
func (a *Agent) GoToZone(ctx context.Context, name string) (nav.Outcome, error) {
	zone, err := a.raster.Palette().ByName(name)
	if err != nil {
		return nav.Outcome{}, err
	}
	a.logger.Info("navigating to zone", zap.String("zone", zone.Name))
	return a.GoTo(ctx, zone.Spawn)
}

// Locate takes a single position fix.
func (a *Agent) Locate(ctx context.Context) (locate.Fix, error) {
	if a.closed.Load() {
		return locate.Fix{}, ErrClosed
	}
	return a.engine.Locate(ctx)
}

// Close stops every component. It is safe to call more than once.
func (a *Agent) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	var err error
	if a.cancel != nil {
		a.cancel()
	}
	if a.server != nil && a.listener != nil {
		err = multierr.Append(err, a.server.Shutdown())
	}
	if a.frames != nil {
		a.frames.Stop()
	}
	if a.matcher != nil {
		err = multierr.Append(err, a.matcher.Close())
	}
	a.assets.Close()
	return err
}
