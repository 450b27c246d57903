package server

import (
	"strings"
	"time"

	"quoteit/internal/models"
	"quoteit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateQuote handles POST /api/quotes
func (s *Server) CreateQuote(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := viewerID(c)

	var req struct {
		Transcription string `json:"transcription"`
		Attribution   string `json:"attribution"`
		IsPrivate     bool   `json:"is_private"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Transcription) == "" {
		return badRequest(c, "Transcription is required")
	}

	var (
		quote *models.Quote
		err   error
	)
	if strings.TrimSpace(req.Attribution) != "" {
		quote, err = s.quoteService.SaveQuoteWithAttribution(ctx, userID, req.Transcription, req.Attribution, req.IsPrivate)
	} else {
		quote, err = s.quoteService.SaveQuote(ctx, userID, req.Transcription, req.IsPrivate)
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newQuoteResponse(*quote, time.Now()))
}

// UpdateQuote handles PUT /api/quotes/:id
func (s *Server) UpdateQuote(c *fiber.Ctx) error {
	var req service.QuoteUpdate
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	quote, err := s.quoteService.UpdateQuote(c.UserContext(), viewerID(c), c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newQuoteResponse(*quote, time.Now()))
}

// DeleteQuote handles DELETE /api/quotes/:id
func (s *Server) DeleteQuote(c *fiber.Ctx) error {
	if err := s.quoteService.DeleteQuote(c.UserContext(), viewerID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/quotes/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	quote, err := s.quoteService.ToggleLike(c.UserContext(), viewerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newQuoteResponse(*quote, time.Now()))
}

// HasLiked handles GET /api/quotes/:id/like
func (s *Server) HasLiked(c *fiber.Ctx) error {
	liked := s.quoteService.HasLiked(c.UserContext(), viewerID(c), c.Params("id"))
	return c.JSON(fiber.Map{"liked": liked})
}

// ReportQuote handles POST /api/quotes/:id/report
func (s *Server) ReportQuote(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	report, err := s.quoteService.ReportQuote(c.UserContext(), viewerID(c), c.Params("id"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}
