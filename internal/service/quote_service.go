package service

import (
	"context"
	"log/slog"
	"strings"

	"quoteit/internal/models"
	"quoteit/internal/observability"
	"quoteit/internal/repository"
)

// QuotePublisher broadcasts the new state of a changed quote.
type QuotePublisher interface {
	PublishQuoteChanged(ctx context.Context, quote *models.Quote) error
}

// QuoteUpdate lists the quote fields an author may edit. Nil fields are left alone.
type QuoteUpdate struct {
	Title             *string `json:"title"`
	Transcription     *string `json:"transcription"`
	Attribution       *string `json:"attribution"`
	AttributionUserID *string `json:"attribution_user_id"`
	IsPrivate         *bool   `json:"is_private"`
}

// QuoteService provides publishing, editing, liking and reporting of quotes.
type QuoteService struct {
	quoteRepo  repository.QuoteRepository
	likeRepo   repository.LikeRepository
	userRepo   repository.UserRepository
	reportRepo repository.ReportRepository
	publisher  QuotePublisher
	likeBatch  int
}

// NewQuoteService returns a new QuoteService.
func NewQuoteService(
	quoteRepo repository.QuoteRepository,
	likeRepo repository.LikeRepository,
	userRepo repository.UserRepository,
	reportRepo repository.ReportRepository,
	publisher QuotePublisher,
) *QuoteService {
	return &QuoteService{
		quoteRepo:  quoteRepo,
		likeRepo:   likeRepo,
		userRepo:   userRepo,
		reportRepo: reportRepo,
		publisher:  publisher,
		likeBatch:  repository.DefaultLikeDeleteBatch,
	}
}

// SaveQuote publishes a transcription as a new quote with no attribution.
func (s *QuoteService) SaveQuote(ctx context.Context, userID, text string, private bool) (*models.Quote, error) {
	return s.save(ctx, &models.Quote{
		UserID:        userID,
		Transcription: text,
		IsPrivate:     private,
	})
}

// SaveQuoteWithAttribution publishes a transcription credited to attribution. When
// attribution names an existing username the quote also links that user; a failed
// lookup leaves the link empty.
func (s *QuoteService) SaveQuoteWithAttribution(ctx context.Context, userID, text, attribution string, private bool) (*models.Quote, error) {
	quote := &models.Quote{
		UserID:        userID,
		Transcription: text,
		IsPrivate:     private,
		Attribution:   strings.TrimSpace(attribution),
	}
	if quote.Attribution != "" {
		linked, err := s.userRepo.GetByUsername(ctx, quote.Attribution)
		switch {
		case err == nil:
			quote.AttributionUserID = linked.ID
		case !models.HasCode(err, models.CodeNotFound):
			observability.Logger.WarnContext(ctx, "attribution lookup failed",
				slog.String("attribution", quote.Attribution), slog.String("error", err.Error()))
		}
	}
	return s.save(ctx, quote)
}

func (s *QuoteService) save(ctx context.Context, quote *models.Quote) (*models.Quote, error) {
	if strings.TrimSpace(quote.UserID) == "" {
		return nil, models.NewValidationError("user id is required")
	}
	if strings.TrimSpace(quote.Transcription) == "" {
		return nil, models.NewValidationError("Quote text cannot be empty")
	}
	quote.Title = models.DefaultQuoteTitle
	quote.Likes = 0

	if err := s.quoteRepo.Create(ctx, quote); err != nil {
		return nil, err
	}
	s.adjustQuoteCount(ctx, quote.UserID, 1)
	return quote, nil
}

// UpdateQuote applies an author's edit and broadcasts the result.
func (s *QuoteService) UpdateQuote(ctx context.Context, actorID, quoteID string, in QuoteUpdate) (*models.Quote, error) {
	quote, err := s.quoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.UserID != actorID {
		return nil, models.NewUnauthorizedError("You can only edit your own quotes")
	}

	updates := map[string]any{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Transcription != nil {
		if strings.TrimSpace(*in.Transcription) == "" {
			return nil, models.NewValidationError("Quote text cannot be empty")
		}
		updates["transcription"] = *in.Transcription
	}
	if in.Attribution != nil {
		updates["attribution"] = *in.Attribution
	}
	if in.AttributionUserID != nil {
		updates["attribution_user_id"] = *in.AttributionUserID
	}
	if in.IsPrivate != nil {
		updates["is_private"] = *in.IsPrivate
	}
	if len(updates) == 0 {
		return quote, nil
	}

	updated, err := s.quoteRepo.Update(ctx, quoteID, updates)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, err
		}
		return nil, models.NewUpdateError("quote", err)
	}
	s.publish(ctx, updated)
	return updated, nil
}

// DeleteQuote removes an author's quote, then the likes that reference it.
// The like cleanup runs in independent batches; failures there are logged.
func (s *QuoteService) DeleteQuote(ctx context.Context, actorID, quoteID string) error {
	quote, err := s.quoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return err
	}
	if quote.UserID != actorID {
		return models.NewUnauthorizedError("You can only delete your own quotes")
	}

	if err := s.quoteRepo.Delete(ctx, quoteID); err != nil {
		return err
	}

	removed, err := s.likeRepo.DeleteByQuote(ctx, quoteID, s.likeBatch)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "like cleanup failed",
			slog.String("quote_id", quoteID),
			slog.Int64("removed", removed),
			slog.String("error", err.Error()),
		)
	}
	s.adjustQuoteCount(ctx, quote.UserID, -1)
	return nil
}

// ToggleLike likes the quote for userID, or unlikes it when already liked.
func (s *QuoteService) ToggleLike(ctx context.Context, userID, quoteID string) (*models.Quote, error) {
	quote, err := s.likeRepo.Toggle(ctx, userID, quoteID)
	if err != nil {
		return nil, err
	}
	broadcast := *quote
	broadcast.Liked = false
	s.publish(ctx, &broadcast)
	return quote, nil
}

// HasLiked reports whether userID likes quoteID. Lookup failures read as false.
func (s *QuoteService) HasLiked(ctx context.Context, userID, quoteID string) bool {
	ok, err := s.likeRepo.Exists(ctx, userID, quoteID)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "like lookup failed",
			slog.String("quote_id", quoteID), slog.String("error", err.Error()))
		return false
	}
	return ok
}

// ReportQuote files a moderation report against an existing quote.
func (s *QuoteService) ReportQuote(ctx context.Context, reporterID, quoteID, reason string) (*models.Report, error) {
	if _, err := s.quoteRepo.GetByID(ctx, quoteID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("A reason is required")
	}

	report := &models.Report{
		QuoteID: quoteID,
		Reason:  reason,
		UserID:  reporterID,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *QuoteService) publish(ctx context.Context, quote *models.Quote) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishQuoteChanged(ctx, quote); err != nil {
		observability.Logger.WarnContext(ctx, "quote change not broadcast",
			slog.String("quote_id", quote.ID), slog.String("error", err.Error()))
	}
}

func (s *QuoteService) adjustQuoteCount(ctx context.Context, userID string, delta int) {
	if err := s.userRepo.AdjustQuoteCount(ctx, userID, delta); err != nil {
		observability.CounterUpdateFailures.WithLabelValues("quote_count").Inc()
		observability.Logger.WarnContext(ctx, "quote count not updated",
			slog.String("user_id", userID), slog.Int("delta", delta), slog.String("error", err.Error()))
	}
}
