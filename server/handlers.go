package server

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/muuya/essence-logic/pkg/history"
)

// handleRoot returns the service descriptor.
func (s *Server) handleRoot(c *fiber.Ctx) error {
	status := "running"
	if !s.configured() {
		status = "not_configured"
	}

	return c.JSON(fiber.Map{
		"name":        serviceName,
		"description": serviceDescription,
		"version":     serviceVersion,
		"status":      status,
	})
}

// handleHealth reports liveness and whether a backend is configured.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	cfg := s.snapshot()

	return c.JSON(fiber.Map{
		"status":            "healthy",
		"client_configured": s.configured(),
		"ai_service":        cfg.AI.Service,
		"environment":       cfg.Server.Environment,
	})
}

// handleReload re-resolves the configuration and rebuilds the backend from
// it. Development only; production deployments restart instead.
func (s *Server) handleReload(c *fiber.Ctx) error {
	if !s.snapshot().IsDevelopment() {
		return detail(c, fiber.StatusForbidden, "this endpoint is only available in development")
	}

	if err := s.Reload(); err != nil {
		s.logger.Error("config reload failed", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "config reload failed: "+err.Error())
	}

	cfg := s.snapshot()
	return c.JSON(fiber.Map{
		"status":            "success",
		"message":           "configuration reloaded",
		"ai_service":        cfg.AI.Service,
		"client_configured": s.configured(),
	})
}

// feedbackRequest is the inbound feedback payload.
type feedbackRequest struct {
	MessageID    string `json:"message_id"`
	FeedbackType string `json:"feedback_type"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
}

// handleFeedback validates and records one feedback entry.
func (s *Server) handleFeedback(c *fiber.Ctx) error {
	var req feedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "invalid request body")
	}

	f := history.Feedback{
		MessageID:    req.MessageID,
		FeedbackType: req.FeedbackType,
		Rating:       req.Rating,
		Comment:      req.Comment,
		IP:           c.IP(),
	}
	if err := f.Validate(); err != nil {
		return detail(c, fiber.StatusBadRequest, err.Error())
	}

	if err := s.store.AddFeedback(f); err != nil {
		s.logger.Error("saving feedback failed", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "failed to save feedback")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "feedback recorded",
	})
}

// scenarioRequest is the inbound usage scenario payload.
type scenarioRequest struct {
	Scenario         string `json:"scenario"`
	UserQuestionType string `json:"user_question_type"`
}

// handleScenario validates and records one usage scenario entry.
func (s *Server) handleScenario(c *fiber.Ctx) error {
	var req scenarioRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "invalid request body")
	}

	sc := history.Scenario{
		Scenario:         req.Scenario,
		UserQuestionType: req.UserQuestionType,
		IP:               c.IP(),
	}
	if err := sc.Validate(); err != nil {
		return detail(c, fiber.StatusBadRequest, err.Error())
	}

	if err := s.store.AddScenario(sc); err != nil {
		s.logger.Error("saving scenario failed", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "failed to save scenario")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "scenario recorded",
	})
}

// handleFeedbackStats returns aggregate feedback statistics. Development only.
func (s *Server) handleFeedbackStats(c *fiber.Ctx) error {
	if !s.snapshot().IsDevelopment() {
		return detail(c, fiber.StatusForbidden, "this endpoint is only available in development")
	}

	stats, err := s.store.FeedbackStats()
	if err != nil {
		s.logger.Error("computing feedback stats failed", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "failed to compute stats")
	}

	return c.JSON(stats)
}

// handleChatHistory returns a page of the chat log, newest first. In
// production the caller must present the admin token via the X-Admin-Token
// header (preferred) or the token query parameter.
func (s *Server) handleChatHistory(c *fiber.Ctx) error {
	cfg := s.snapshot()

	if !cfg.IsDevelopment() {
		adminToken := cfg.Server.AdminToken
		if adminToken == "" {
			return detail(c, fiber.StatusForbidden, "admin token is not configured")
		}

		provided := c.Get("X-Admin-Token")
		if provided == "" {
			provided = c.Query("token")
		}
		if provided != adminToken {
			return detail(c, fiber.StatusUnauthorized, "invalid access token")
		}
	}

	page, err := s.store.ListChats(c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		s.logger.Error("listing chat history failed", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "failed to list chat history")
	}

	return c.JSON(page)
}
