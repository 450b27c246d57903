package server

import (
	"github.com/gofiber/fiber/v2"
)

// ToggleFollow handles POST /api/users/:id/follow
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	following, err := s.followService.ToggleFollow(c.UserContext(), viewerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"following": following})
}

// IsFollowing handles GET /api/users/:id/follow
func (s *Server) IsFollowing(c *fiber.Ctx) error {
	following := s.followService.IsFollowing(c.UserContext(), viewerID(c), c.Params("id"))
	return c.JSON(fiber.Map{"following": following})
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	users, err := s.followService.GetFollowers(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	users, err := s.followService.GetFollowing(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}
