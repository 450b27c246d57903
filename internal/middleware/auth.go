// Package middleware provides authentication, logging and tracing middleware for the HTTP API.
package middleware

import (
	"errors"
	"strings"

	"quoteit/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ViewerIDLocal is the Fiber locals key holding the authenticated viewer id.
const ViewerIDLocal = "viewerID"

// AuthRequired enforces a bearer JWT signed with secret. The token's subject is
// the viewer id and is stored in Fiber locals under ViewerIDLocal.
func AuthRequired(secret string) fiber.Handler {
	return authenticate(secret, false)
}

// WebSocketAuthRequired accepts the token from the "token" query parameter,
// falling back to the Authorization header.
func WebSocketAuthRequired(secret string) fiber.Handler {
	return authenticate(secret, true)
}

func authenticate(secret string, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		if allowQuery {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			authHeader := c.Get("Authorization")
			if authHeader == "" {
				return unauthorized(c, "Authorization header required")
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return unauthorized(c, "Invalid authorization header format")
			}
			tokenString = parts[1]
		}

		viewerID, err := ParseViewerID(tokenString, secret)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		c.Locals(ViewerIDLocal, viewerID)
		c.SetUserContext(observability.WithViewerID(c.UserContext(), viewerID))
		return c.Next()
	}
}

// ParseViewerID validates an HMAC-signed token and returns its subject.
func ParseViewerID(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("Invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("Invalid token structure - missing subject")
	}
	return sub, nil
}

// ViewerID returns the authenticated viewer id from Fiber locals.
func ViewerID(c *fiber.Ctx) string {
	if id, ok := c.Locals(ViewerIDLocal).(string); ok {
		return id
	}
	return ""
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
	})
}
