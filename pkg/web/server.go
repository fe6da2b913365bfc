// Package web serves a live view of the pipeline: the annotated video as
// JPEG frames, per-frame face results, status and a stop control.
package web

import (
	"context"
	_ "embed"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facelabel/internal/log"
	"github.com/teslashibe/go-facelabel/pkg/hub"
	"github.com/teslashibe/go-facelabel/pkg/pipeline"
)

//go:embed index.html
var indexHTML []byte

// Pipeline is the part of the orchestrator the server needs.
type Pipeline interface {
	Status() pipeline.Status
	Last() pipeline.TickResult
	Stop()
}

// Server is the web view server
type Server struct {
	app  *fiber.App
	addr string
	pipe Pipeline
	log  *slog.Logger

	// Hubs for websocket broadcast
	videoHub *hub.Hub
	facesHub *hub.Hub
}

// NewServer creates a server listening on addr (e.g. ":8080"). pipe may be
// nil and supplied later with Attach.
func NewServer(addr string, pipe Pipeline) *Server {
	s := &Server{
		addr:     addr,
		pipe:     pipe,
		log:      log.Component("web"),
		videoHub: hub.New("video", hub.WithClientBuffer(4)),
		facesHub: hub.New("faces"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facelabel",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/faces", s.handleFaces)
	api.Post("/stop", s.handleStop)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/video", websocket.New(s.handleVideoWS))
	app.Get("/ws/faces", websocket.New(s.handleFacesWS))

	s.app = app
	return s
}

// Attach sets the pipeline behind the API. It must be called before Run
// when NewServer was given a nil pipeline.
func (s *Server) Attach(pipe Pipeline) {
	s.pipe = pipe
}

// App returns the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.videoHub.Run(ctx)
	go s.facesHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		s.log.Info("web view listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

// BroadcastBinary sends an encoded JPEG frame to every video viewer.
func (s *Server) BroadcastBinary(jpeg []byte) {
	s.videoHub.BroadcastBinary(jpeg)
}

// PublishTick sends one tick's faces to every faces viewer. It is meant to
// be registered with Orchestrator.OnTick.
func (s *Server) PublishTick(res pipeline.TickResult) {
	if err := s.facesHub.BroadcastJSON(res); err != nil {
		s.log.Warn("encode tick", "seq", res.Seq, "error", err)
	}
}

// Viewers returns the number of connected video and faces clients.
func (s *Server) Viewers() (video, faces int) {
	return s.videoHub.ClientCount(), s.facesHub.ClientCount()
}
