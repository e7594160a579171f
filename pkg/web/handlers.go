package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func (s *Server) routes(app *fiber.App) {
	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/goal", s.handleGoal)
	api.Get("/detections", s.handleDetections)
	api.Get("/modules", s.handleModules)
	api.Get("/voice", s.handleVoice)
	api.Get("/logs", s.handleLogs)
	api.Post("/command", s.handleCommand)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(indexHTML)
}

func unavailable(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": what + " is not available",
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.healths == nil {
		return unavailable(c, "health monitoring")
	}
	return c.JSON(fiber.Map{
		"healthy": s.healths.Healthy(),
		"report":  s.healths.Report(),
	})
}

func (s *Server) handleGoal(c *fiber.Ctx) error {
	if s.goals == nil {
		return unavailable(c, "navigation")
	}
	return c.JSON(s.goals.Snapshot())
}

func (s *Server) handleDetections(c *fiber.Ctx) error {
	if s.detect == nil {
		return unavailable(c, "perception")
	}
	dets, at := s.detect.Latest()
	return c.JSON(fiber.Map{
		"detections":  dets,
		"observed_at": at,
		"stats":       s.detect.Stats(),
	})
}

func (s *Server) handleModules(c *fiber.Ctx) error {
	if s.modules == nil {
		return unavailable(c, "module manager")
	}
	return c.JSON(s.modules.Status())
}

func (s *Server) handleVoice(c *fiber.Ctx) error {
	if s.voices == nil {
		return unavailable(c, "voice pipeline")
	}
	return c.JSON(fiber.Map{
		"pipeline": s.voices.Stats(),
		"source":   s.voices.SourceStats(),
	})
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	return c.JSON(s.recentLogs())
}

// commandRequest is the POST /api/command body.
type commandRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	if s.executor == nil {
		return unavailable(c, "command interpreter")
	}

	var req commandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text is required",
		})
	}

	res := s.executor.Execute(c.UserContext(), req.Text)
	return c.JSON(res)
}

// handleStatusWS streams status events, replaying the latest document
// on connect.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client, err := s.statusHub.Attach(conn)
	if err != nil {
		conn.Close()
		return
	}

	s.mu.Lock()
	last := s.lastStatus
	s.mu.Unlock()
	if last != nil {
		// The write pump has not started yet, so writing here is safe.
		conn.WriteMessage(websocket.TextMessage, last)
	}

	client.Run()
}

// handleLogsWS streams log lines, replaying the recent ring on connect.
func (s *Server) handleLogsWS(conn *websocket.Conn) {
	client, err := s.logHub.Attach(conn)
	if err != nil {
		conn.Close()
		return
	}

	for _, entry := range s.recentLogs() {
		if err := conn.WriteJSON(entry); err != nil {
			break
		}
	}

	client.Run()
}
