package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"quoteit/internal/middleware"
	"quoteit/internal/models"
	"quoteit/internal/observability"
	"quoteit/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Feed modes accepted by the feed stream.
const (
	feedModeRecommended = "recommended"
	feedModeUser        = "user"
	feedModeLiked       = "liked"
)

// GetRecommendedFeed handles GET /api/feed
func (s *Server) GetRecommendedFeed(c *fiber.Ctx) error {
	viewer := viewerID(c)
	quotes := s.feedService.NewSnapshotFeed(viewer, viewer).GetRecommendedQuotes(c.UserContext())
	return c.JSON(newQuoteResponses(quotes))
}

// GetUserQuotes handles GET /api/users/:id/quotes
func (s *Server) GetUserQuotes(c *fiber.Ctx) error {
	quotes := s.feedService.NewSnapshotFeed(c.Params("id"), viewerID(c)).GetQuotes(c.UserContext())
	return c.JSON(newQuoteResponses(quotes))
}

// GetLikedQuotes handles GET /api/me/likes
func (s *Server) GetLikedQuotes(c *fiber.Ctx) error {
	viewer := viewerID(c)
	quotes := s.feedService.NewSnapshotFeed(viewer, viewer).GetLikedQuotes(c.UserContext())
	return c.JSON(newQuoteResponses(quotes))
}

// feedStreamMessage is sent to stream clients. "feed" carries a full load,
// "feed_update" the list after a live change, "error" a rejected command.
type feedStreamMessage struct {
	Type   string          `json:"type"`
	Mode   string          `json:"mode,omitempty"`
	Quotes []quoteResponse `json:"quotes"`
	Error  string          `json:"error,omitempty"`
}

// feedStreamCommand asks the stream to (re)load a feed.
type feedStreamCommand struct {
	Type   string `json:"type"`
	Mode   string `json:"mode"`
	UserID string `json:"user_id"`
}

// feedStream serialises writes to one websocket connection.
type feedStream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (fs *feedStream) send(msg feedStreamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		observability.Logger.Debug("feed stream write failed", slog.String("error", err.Error()))
	}
}

func (s *Server) upgradeFeedStream(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// FeedStreamHandler handles GET /ws/feed. The first load follows the "mode" and
// "user_id" query parameters; clients switch feeds by sending a "load" command.
// Every live quote change is pushed as the updated list.
func (s *Server) FeedStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.FeedStreamConnections.Inc()
		defer observability.FeedStreamConnections.Dec()

		stream := &feedStream{conn: conn}
		viewer, _ := conn.Locals(middleware.ViewerIDLocal).(string)
		if viewer == "" {
			stream.send(feedStreamMessage{Type: "error", Error: "unauthorized"})
			_ = conn.Close()
			return
		}
		ctx := observability.WithViewerID(context.Background(), viewer)

		feed := s.feedService.NewFeed(viewer, viewer)
		defer feed.Close()
		feed.OnChange(func(quotes []models.Quote) {
			stream.send(feedStreamMessage{Type: "feed_update", Quotes: newQuoteResponses(quotes)})
		})

		s.loadFeed(ctx, feed, stream, feedStreamCommand{
			Type:   "load",
			Mode:   conn.Query("mode", feedModeRecommended),
			UserID: conn.Query("user_id"),
		})

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd feedStreamCommand
			if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type != "load" {
				stream.send(feedStreamMessage{Type: "error", Error: "unknown command"})
				continue
			}
			s.loadFeed(ctx, feed, stream, cmd)
		}
	})
}

func (s *Server) loadFeed(ctx context.Context, feed *service.Feed, stream *feedStream, cmd feedStreamCommand) {
	viewer := observability.ViewerIDFromContext(ctx)

	var quotes []models.Quote
	switch cmd.Mode {
	case feedModeUser:
		userID := cmd.UserID
		if userID == "" {
			userID = viewer
		}
		feed.SetUser(userID)
		quotes = feed.GetQuotes(ctx)
	case feedModeLiked:
		quotes = feed.GetLikedQuotes(ctx)
	case feedModeRecommended, "":
		cmd.Mode = feedModeRecommended
		quotes = feed.GetRecommendedQuotes(ctx)
	default:
		stream.send(feedStreamMessage{Type: "error", Error: "unknown feed mode " + cmd.Mode})
		return
	}

	stream.send(feedStreamMessage{Type: "feed", Mode: cmd.Mode, Quotes: newQuoteResponses(quotes)})
}
