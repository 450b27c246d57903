package server

import (
	"quoteit/internal/models"
	"quoteit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCurrentUser handles GET /api/me
func (s *Server) GetCurrentUser(c *fiber.Ctx) error {
	user, err := s.userService.LoadCurrentUser(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// CreateProfile handles POST /api/me. The profile id is the token subject.
func (s *Server) CreateProfile(c *fiber.Ctx) error {
	var req service.CreateUserInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.ID = viewerID(c)

	user, err := s.userService.CreateUser(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// UpdateProfile handles PUT /api/me
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req service.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := s.userService.UpdateUserProfile(c.UserContext(), viewerID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// TogglePrivacy handles POST /api/me/privacy
func (s *Server) TogglePrivacy(c *fiber.Ctx) error {
	user, err := s.userService.TogglePrivacy(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// DeleteAccount handles DELETE /api/me
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	if err := s.userService.DeleteUser(c.UserContext(), viewerID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SearchUsers handles GET /api/users/search?q=. An empty query matches nobody.
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	return c.JSON(s.userService.SearchUser(c.UserContext(), c.Query("q")))
}

// GetUser handles GET /api/users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	user, err := s.userService.FetchUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUserByUsername handles GET /api/users/by-username/:username
func (s *Server) GetUserByUsername(c *fiber.Ctx) error {
	username := c.Params("username")
	user, err := s.userService.FetchUserByUsername(c.UserContext(), username)
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return respondError(c, models.NewNotFoundError("User", username))
	}
	return c.JSON(user)
}

// SuggestUsername handles GET /api/usernames/suggestion
func (s *Server) SuggestUsername(c *fiber.Ctx) error {
	username, err := s.userService.GenerateUsername(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"username": username})
}
