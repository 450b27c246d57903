package server

import (
	"time"

	"quoteit/internal/middleware"
	"quoteit/internal/models"
	"quoteit/internal/timefmt"

	"github.com/gofiber/fiber/v2"
)

// quoteResponse is a quote as rendered to clients.
type quoteResponse struct {
	models.Quote
	RelativeTime string `json:"relative_time"`
}

func newQuoteResponse(q models.Quote, now time.Time) quoteResponse {
	return quoteResponse{Quote: q, RelativeTime: timefmt.Relative(now, q.CreatedAt)}
}

func newQuoteResponses(quotes []models.Quote) []quoteResponse {
	now := time.Now()
	out := make([]quoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, newQuoteResponse(q, now))
	}
	return out
}

// viewerID returns the authenticated viewer. AuthRequired guarantees it is set.
func viewerID(c *fiber.Ctx) string {
	return middleware.ViewerID(c)
}

// respondError writes err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msg))
}
