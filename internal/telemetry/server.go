// Package telemetry serves the navigation engine's believed position over
// HTTP and pushes every status change to websocket subscribers.
package telemetry

import (
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/rucoy-nav/internal/nav"
	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Source is the read side of a navigation engine.
type Source interface {
	Snapshot() nav.Status
	Route() pathfind.Route
	RequestFix()
}

// RouteView is the JSON form of the active route.
type RouteView struct {
	Waypoints    []math.Point `json:"waypoints"`
	Requested    math.Point   `json:"requested"`
	Goal         math.Point   `json:"goal"`
	GoalAdjusted bool         `json:"goal_adjusted"`
	Cursor       int          `json:"cursor"`
	Length       float64      `json:"length"`
}

// Server is the telemetry HTTP server.
type Server struct {
	app    *fiber.App
	source Source
	hub    *Hub
	logger *zap.Logger
}

// NewServer creates a server reading from source.
func NewServer(source Source, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		source: source,
		hub:    NewHub("status", logger),
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "rucoy-nav telemetry",
		DisableStartupMessage: true,
	})

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)
	api.Get("/route", s.handleRoute)
	api.Post("/relocalize", s.handleRelocalize)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Hub returns the status hub.
func (s *Server) Hub() *Hub { return s.hub }

// Publish broadcasts a status to websocket clients. It is meant to be
// registered with Engine.OnUpdate and never blocks.
func (s *Server) Publish(status nav.Status) {
	if err := s.hub.BroadcastJSON(status); err != nil {
		s.logger.Warn("encoding status", zap.Error(err))
	}
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	go s.hub.Run()
	s.logger.Info("telemetry listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	go s.hub.Run()
	s.logger.Info("telemetry listening", zap.Stringer("addr", ln.Addr()))
	return s.app.Listener(ln)
}

// Shutdown stops the server and disconnects clients.
func (s *Server) Shutdown() error {
	s.hub.Stop()
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.source.Snapshot())
}

func (s *Server) handleRoute(c *fiber.Ctx) error {
	route := s.source.Route()
	if route.Empty() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active route"})
	}
	return c.JSON(RouteView{
		Waypoints:    route.Waypoints,
		Requested:    route.Requested,
		Goal:         route.Goal,
		GoalAdjusted: route.GoalAdjusted,
		Cursor:       s.source.Snapshot().Cursor,
		Length:       route.Length(),
	})
}

func (s *Server) handleRelocalize(c *fiber.Ctx) error {
	s.source.RequestFix()
	s.logger.Info("re-localization requested", zap.String("remote", c.IP()))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"requested": true})
}

func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := NewClient(s.hub, conn)

	// Current status first, then every change.
	if err := conn.WriteJSON(s.source.Snapshot()); err != nil {
		s.logger.Debug("initial status write failed", zap.Error(err))
	}
	client.Run()
}
