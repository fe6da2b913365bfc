package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facelabel/pkg/hub"
	"github.com/teslashibe/go-facelabel/pkg/pipeline"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	pipeline.Status
	VideoViewers int `json:"video_viewers"`
	FaceViewers  int `json:"face_viewers"`
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html")
	return c.Send(indexHTML)
}

// handleStatus returns the pipeline state, run id and metrics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	video, faces := s.Viewers()
	return c.JSON(StatusResponse{
		Status:       s.pipe.Status(),
		VideoViewers: video,
		FaceViewers:  faces,
	})
}

// handleFaces returns the most recent tick
func (s *Server) handleFaces(c *fiber.Ctx) error {
	return c.JSON(s.pipe.Last())
}

// handleStop asks the pipeline to stop. The loop exits at its next tick.
func (s *Server) handleStop(c *fiber.Ctx) error {
	s.pipe.Stop()
	s.log.Info("stop requested over http", "ip", c.IP())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"state": s.pipe.Status().State,
	})
}

// handleVideoWS streams binary JPEG frames
func (s *Server) handleVideoWS(c *websocket.Conn) {
	client := hub.NewClient(s.videoHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// handleFacesWS sends the last tick, then one JSON message per tick
func (s *Server) handleFacesWS(c *websocket.Conn) {
	client := hub.NewClient(s.facesHub, c)
	if client == nil {
		return
	}
	// Safe before Run: the write pump has not started yet.
	if err := c.WriteJSON(s.pipe.Last()); err != nil {
		s.log.Debug("send last tick", "error", err)
	}
	client.Run()
}
